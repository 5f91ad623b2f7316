// Package ivf implements the IVF_FLAT vector index variant: vectors
// are assigned to the nearest of a small set of trained centroids, and
// a search only scans the inverted lists of the centroids closest to
// the query — trading FLAT's exactness for fewer distance
// computations. Grounded on
// original_source/test/test_vector_index_ivf_flat.cc's Train/Add/Search
// contract (Train is mandatory before Add; a too-small training set
// still succeeds by collapsing to a single list, while an empty one is
// rejected; an empty Add is a no-op success).
package ivf

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dingodb/region-engine/internal/rerr"
	"github.com/dingodb/region-engine/internal/vectorindex"
)

// DefaultNlistProbe is how many of the nearest centroid lists a Search
// scans; original_source calls this nprobe.
const DefaultNlistProbe = 8

const maxTrainIterations = 20

type record struct {
	id   uint64
	data []float32
}

// Index is the IVF_FLAT vector index.
type Index struct {
	mu sync.RWMutex

	dimension  int
	metric     vectorindex.MetricType
	normalize  bool
	ncentroids int
	nprobe     int

	trained   bool
	centroids [][]float32
	lists     [][]record // lists[c] holds every record assigned to centroid c

	byID    map[uint64]int // id -> list index, for Delete/Upsert-overwrite
	deleted int
}

func init() {
	vectorindex.Register(vectorindex.VariantIvfFlat, func(p vectorindex.Params) vectorindex.Index {
		return New(p.Dimension, p.Metric, p.Ncentroids)
	})
}

// New constructs an untrained IVF_FLAT index. ncentroids <= 0 is
// accepted and resolved lazily at Train time from the sample count.
func New(dimension int, metric vectorindex.MetricType, ncentroids int) *Index {
	return &Index{
		dimension:  dimension,
		metric:     metric,
		normalize:  metric == vectorindex.MetricCosine,
		ncentroids: ncentroids,
		nprobe:     DefaultNlistProbe,
		byID:       make(map[uint64]int),
	}
}

func (idx *Index) LockWrite()   { idx.mu.Lock() }
func (idx *Index) UnlockWrite() { idx.mu.Unlock() }

func (idx *Index) Dimension() int { return idx.dimension }

// Train fits centroids from samples via at most maxTrainIterations
// Lloyd's k-means iterations, stopping early once no sample changes
// centroid. A request for more centroids than samples
// collapses to a single centroid (nlist=1) rather than failing —
// matching the "data_base size < ncentroids" case, which the original
// accepts with OK.
func (idx *Index) Train(samples []vectorindex.Vector) error {
	if len(samples) == 0 {
		return rerr.New(rerr.VectorInvalid, "ivf_flat train requires at least one sample")
	}
	if err := vectorindex.ValidateDimension(samples, idx.dimension); err != nil {
		return err
	}

	nlist := idx.ncentroids
	if nlist <= 0 || nlist > len(samples) {
		nlist = 1
	}

	data := make([][]float32, len(samples))
	for i, s := range samples {
		v := make([]float32, len(s.Data))
		copy(v, s.Data)
		if idx.normalize {
			vectorindex.Normalize(v)
		}
		data[i] = v
	}

	centroids := kMeans(data, nlist, idx.metric)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.centroids = centroids
	idx.lists = make([][]record, len(centroids))
	idx.byID = make(map[uint64]int)
	idx.trained = true
	return nil
}

func kMeans(data [][]float32, nlist int, metric vectorindex.MetricType) [][]float32 {
	centroids := make([][]float32, nlist)
	for i := range centroids {
		centroids[i] = append([]float32(nil), data[i%len(data)]...)
	}
	if nlist == 1 {
		return centroids
	}

	assign := make([]int, len(data))
	for iter := 0; iter < maxTrainIterations; iter++ {
		changed := false
		for i, v := range data {
			best, bestDist := 0, float32(math.MaxFloat32)
			for c, centroid := range centroids {
				d := vectorindex.Distance(metric, v, centroid)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		dim := len(data[0])
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range data {
			c := assign[i]
			counts[c]++
			for d, f := range v {
				sums[c][d] += float64(f)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
		if !changed {
			break
		}
	}
	return centroids
}

func (idx *Index) nearestCentroids(v []float32, n int) []int {
	type scored struct {
		c int
		d float32
	}
	scores := make([]scored, len(idx.centroids))
	for c, centroid := range idx.centroids {
		scores[c] = scored{c, vectorindex.Distance(idx.metric, v, centroid)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].d < scores[j].d })
	if n > len(scores) {
		n = len(scores)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = scores[i].c
	}
	return out
}

// Add inserts vectors, failing ErrNotTrained if Train has not run yet.
// An empty batch is always accepted.
func (idx *Index) Add(vectors []vectorindex.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := vectorindex.ValidateDimension(vectors, idx.dimension); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.trained {
		return vectorindex.ErrNotTrained
	}
	for _, v := range vectors {
		idx.insertLocked(v)
	}
	return nil
}

// Upsert behaves like Add once trained; vectors presented before
// Train has run are rejected the same way Add rejects them, since
// there is nowhere to assign them yet.
func (idx *Index) Upsert(vectors []vectorindex.Vector) error {
	return idx.Add(vectors)
}

func (idx *Index) insertLocked(v vectorindex.Vector) {
	if li, ok := idx.byID[v.ID]; ok {
		idx.removeFromListLocked(li, v.ID)
	}
	data := make([]float32, len(v.Data))
	copy(data, v.Data)
	if idx.normalize {
		vectorindex.Normalize(data)
	}
	c := idx.nearestCentroids(data, 1)[0]
	idx.lists[c] = append(idx.lists[c], record{id: v.ID, data: data})
	idx.byID[v.ID] = c
}

func (idx *Index) removeFromListLocked(c int, id uint64) {
	list := idx.lists[c]
	for i, r := range list {
		if r.id == id {
			idx.lists[c] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (idx *Index) Delete(ids []uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		if c, ok := idx.byID[id]; ok {
			idx.removeFromListLocked(c, id)
			delete(idx.byID, id)
			idx.deleted++
		}
	}
	return nil
}

func (idx *Index) Search(queries []vectorindex.Vector, topk int, filters []vectorindex.Filter) ([][]vectorindex.WithDistance, error) {
	if err := vectorindex.ValidateDimension(queries, idx.dimension); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.trained {
		return nil, vectorindex.ErrNotTrained
	}

	out := make([][]vectorindex.WithDistance, len(queries))
	for qi, q := range queries {
		qv := make([]float32, len(q.Data))
		copy(qv, q.Data)
		if idx.normalize {
			vectorindex.Normalize(qv)
		}
		out[qi] = idx.searchOneLocked(qv, topk, filters)
	}
	return out, nil
}

func (idx *Index) searchOneLocked(q []float32, topk int, filters []vectorindex.Filter) []vectorindex.WithDistance {
	if topk <= 0 {
		return nil
	}
	probe := idx.nprobe
	if probe <= 0 || probe > len(idx.centroids) {
		probe = len(idx.centroids)
	}
	var hits []vectorindex.WithDistance
	for _, c := range idx.nearestCentroids(q, probe) {
		for _, r := range idx.lists[c] {
			if !passesFilters(r.id, filters) {
				continue
			}
			hits = append(hits, vectorindex.WithDistance{ID: r.id, Distance: vectorindex.Distance(idx.metric, q, r.data), Vector: r.data})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topk {
		hits = hits[:topk]
	}
	return hits
}

func passesFilters(id uint64, filters []vectorindex.Filter) bool {
	for _, f := range filters {
		if !f.Check(id) {
			return false
		}
	}
	return true
}

func (idx *Index) Count() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(len(idx.byID)), nil
}

func (idx *Index) DeletedCount() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(idx.deleted), nil
}

// GetMemorySize estimates resident bytes as the centroid table plus
// every live record's float32 payload.
func (idx *Index) GetMemorySize() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	size := uint64(len(idx.centroids)) * uint64(idx.dimension) * 4
	size += uint64(len(idx.byID)) * uint64(idx.dimension) * 4
	return size, nil
}

// IsTrained reports whether Train has built the centroid table yet.
func (idx *Index) IsTrained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trained
}

// NeedToRebuild reports true once the number of deletes outnumbers the
// live vectors. Deleted records are removed from their lists, so the
// count is the only trace a delete leaves.
func (idx *Index) NeedToRebuild() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.deleted > 0 && idx.deleted > len(idx.byID)
}

func (idx *Index) SupportSave() bool { return true }

const (
	metaFileName = "ivf.meta"
	dataFileName = "ivf.vec"
)

// Save writes centroids and every live record to path, plus the
// common index.sidecar header Load validates against before trusting
// the rest of the files.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return rerr.Wrap(rerr.Internal, err, "create ivf_flat index save directory")
	}

	if err := vectorindex.WriteSidecar(path, vectorindex.Sidecar{
		Variant:    vectorindex.VariantIvfFlat,
		Dimension:  idx.dimension,
		Count:      len(idx.byID),
		Ncentroids: idx.ncentroids,
	}); err != nil {
		return err
	}

	meta, err := os.Create(filepath.Join(path, metaFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "create ivf_flat meta file")
	}
	defer meta.Close()
	if err := writeUint64(meta, uint64(len(idx.centroids))); err != nil {
		return rerr.Wrap(rerr.Internal, err, "write ivf_flat centroid count")
	}
	for _, c := range idx.centroids {
		if err := writeVector(meta, c); err != nil {
			return rerr.Wrap(rerr.Internal, err, "write ivf_flat centroid")
		}
	}

	data, err := os.Create(filepath.Join(path, dataFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "create ivf_flat data file")
	}
	defer data.Close()
	for c, list := range idx.lists {
		for _, r := range list {
			if err := writeUint64(data, uint64(c)); err != nil {
				return rerr.Wrap(rerr.Internal, err, "write ivf_flat record list index")
			}
			if err := writeUint64(data, r.id); err != nil {
				return rerr.Wrap(rerr.Internal, err, "write ivf_flat record id")
			}
			if err := writeVector(data, r.data); err != nil {
				return rerr.Wrap(rerr.Internal, err, "write ivf_flat record vector")
			}
		}
	}
	return nil
}

// Load replaces the index's centroids and lists with the contents of
// path, rejecting an empty path or a sidecar that names a different
// variant or dimension before reading the rest of the files.
func (idx *Index) Load(path string) error {
	if _, err := vectorindex.ValidateLoad(path, vectorindex.VariantIvfFlat, idx.dimension); err != nil {
		return err
	}

	meta, err := os.Open(filepath.Join(path, metaFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "open ivf_flat meta file")
	}
	defer meta.Close()

	nc, err := readUint64(meta)
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "read ivf_flat centroid count")
	}
	centroids := make([][]float32, nc)
	for i := range centroids {
		v, err := readVector(meta)
		if err != nil {
			return rerr.Wrap(rerr.Internal, err, "read ivf_flat centroid")
		}
		centroids[i] = v
	}

	data, err := os.Open(filepath.Join(path, dataFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "open ivf_flat data file")
	}
	defer data.Close()

	lists := make([][]record, len(centroids))
	byID := make(map[uint64]int)
	for {
		c, err := readUint64(data)
		if err != nil {
			if err == io.EOF {
				break
			}
			return rerr.Wrap(rerr.Internal, err, "read ivf_flat record list index")
		}
		id, err := readUint64(data)
		if err != nil {
			return rerr.Wrap(rerr.Internal, err, "read ivf_flat record id")
		}
		v, err := readVector(data)
		if err != nil {
			return rerr.Wrap(rerr.Internal, err, "read ivf_flat record vector")
		}
		lists[c] = append(lists[c], record{id: id, data: v})
		byID[id] = int(c)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.centroids = centroids
	idx.lists = lists
	idx.byID = byID
	idx.deleted = 0
	idx.trained = true
	return nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeVector(w io.Writer, v []float32) error {
	if err := writeUint64(w, uint64(len(v))); err != nil {
		return err
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	_, err := w.Write(buf)
	return err
}

func readVector(r io.Reader) ([]float32, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
