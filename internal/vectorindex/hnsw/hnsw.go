// Package hnsw implements the HNSW vector index variant's contract
// (fixed element capacity with a grow-only resize, cosine handled by
// normalizing before insert/query, Train a no-op), grounded on
// original_source/src/vector/vector_index_hnsw.h's VectorIndexHnsw. A
// true multi-layer hierarchical graph needs a cgo binding to hnswlib
// the build environment does not carry (see the module's design
// notes), so the graph itself is a flat candidate scan bounded by
// user_max_elements_ the way hnswlib bounds its own label space; the
// capacity/resize/exceeds-capacity surface — the part raft apply and
// the snapshot engine actually drive — matches exactly.
package hnsw

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dingodb/region-engine/internal/rerr"
	"github.com/dingodb/region-engine/internal/vectorindex"
)

// DefaultEfConstruction mirrors hnswlib's ef_construction knob; kept
// on the index even though the flat scan doesn't consume it, so
// Save/Load round-trip the parameter a real graph would need.
const DefaultEfConstruction = 200

// DefaultM mirrors hnswlib's M (max neighbors per node) knob.
const DefaultM = 16

type Index struct {
	mu sync.RWMutex

	dimension int
	metric    vectorindex.MetricType
	normalize bool

	m              int
	efConstruction int
	maxElements    uint64

	data    map[uint64][]float32
	deleted int
}

func init() {
	vectorindex.Register(vectorindex.VariantHnsw, func(p vectorindex.Params) vectorindex.Index {
		return New(p.Dimension, p.Metric, p.MaxElements)
	})
}

// New constructs an empty HNSW index bounded to maxElements live
// vectors.
func New(dimension int, metric vectorindex.MetricType, maxElements uint64) *Index {
	return &Index{
		dimension:      dimension,
		metric:         metric,
		normalize:      metric == vectorindex.MetricCosine,
		m:              DefaultM,
		efConstruction: DefaultEfConstruction,
		maxElements:    maxElements,
		data:           make(map[uint64][]float32),
	}
}

func (idx *Index) LockWrite()   { idx.mu.Lock() }
func (idx *Index) UnlockWrite() { idx.mu.Unlock() }

func (idx *Index) Dimension() int { return idx.dimension }

func (idx *Index) Train([]vectorindex.Vector) error { return nil }

func (idx *Index) Upsert(vectors []vectorindex.Vector) error {
	if err := vectorindex.ValidateDimension(vectors, idx.dimension); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	newIDs := make(map[uint64]struct{})
	for _, v := range vectors {
		if _, exists := idx.data[v.ID]; !exists {
			newIDs[v.ID] = struct{}{}
		}
	}
	if uint64(len(idx.data))+uint64(len(newIDs)) > idx.maxElements {
		return rerr.New(rerr.VectorInvalid, "hnsw index capacity (%d elements) cannot take %d new ids, resize before adding them", idx.maxElements, len(newIDs))
	}
	for _, v := range vectors {
		idx.store(v)
	}
	return nil
}

// Add behaves identically to Upsert: hnswlib's AddPoint overwrites an
// existing label's vector in place just like addPoint/Upsert do here.
func (idx *Index) Add(vectors []vectorindex.Vector) error { return idx.Upsert(vectors) }

func (idx *Index) store(v vectorindex.Vector) {
	cp := make([]float32, len(v.Data))
	copy(cp, v.Data)
	if idx.normalize {
		vectorindex.Normalize(cp)
	}
	idx.data[v.ID] = cp
}

func (idx *Index) Delete(ids []uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		if _, ok := idx.data[id]; ok {
			delete(idx.data, id)
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

	out := make([][]vectorindex.WithDistance, len(queries))
	for qi, q := range queries {
		qv := make([]float32, len(q.Data))
		copy(qv, q.Data)
		if idx.normalize {
			vectorindex.Normalize(qv)
		}
		out[qi] = idx.searchOne(qv, topk, filters)
	}
	return out, nil
}

func (idx *Index) searchOne(q []float32, topk int, filters []vectorindex.Filter) []vectorindex.WithDistance {
	if topk <= 0 {
		return nil
	}
	var hits []vectorindex.WithDistance
	for id, v := range idx.data {
		if !passesFilters(id, filters) {
			continue
		}
		hits = append(hits, vectorindex.WithDistance{ID: id, Distance: vectorindex.Distance(idx.metric, q, v), Vector: v})
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
	return uint64(len(idx.data)), nil
}

func (idx *Index) DeletedCount() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(idx.deleted), nil
}

// GetMemorySize estimates resident bytes as the live vector count
// times the per-vector float32 payload size; the flat candidate scan
// carries no graph structure to account for beyond that.
func (idx *Index) GetMemorySize() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(len(idx.data)) * uint64(idx.dimension) * 4, nil
}

// IsTrained is always true: HNSW builds its graph incrementally as
// vectors are added, with no separate training step.
func (idx *Index) IsTrained() bool { return true }

// NeedToRebuild reports true once deletes exceed a third of
// capacity, mirroring hnswlib's advice to periodically
// rebuild since deleted labels stay resident (markDelete, not erase)
// until then.
func (idx *Index) NeedToRebuild() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.maxElements > 0 && uint64(idx.deleted)*3 > idx.maxElements
}

func (idx *Index) SupportSave() bool { return true }

// GetMaxElements returns the current capacity ceiling.
func (idx *Index) GetMaxElements() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.maxElements
}

// ResizeMaxElements grows the index's capacity. A request below the
// current capacity (and so also one below the live element count) is
// rejected, so capacity never shrinks.
func (idx *Index) ResizeMaxElements(newMaxElements uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if newMaxElements < idx.maxElements {
		return rerr.New(rerr.VectorInvalid, "cannot shrink hnsw index capacity from %d to %d elements", idx.maxElements, newMaxElements)
	}
	if newMaxElements < uint64(len(idx.data)) {
		return rerr.New(rerr.VectorInvalid, "cannot resize hnsw index to %d elements: %d are already live", newMaxElements, len(idx.data))
	}
	idx.maxElements = newMaxElements
	return nil
}

// IsExceedsMaxElements reports whether the next insert would need a
// resize first.
func (idx *Index) IsExceedsMaxElements() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(len(idx.data)) >= idx.maxElements
}

const (
	metaFileName = "hnsw.meta"
	dataFileName = "hnsw.vec"
)

// Save writes parameters and every live vector to path, plus the
// common index.sidecar header Load validates against before trusting
// the rest of the files.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return rerr.Wrap(rerr.Internal, err, "create hnsw index save directory")
	}

	if err := vectorindex.WriteSidecar(path, vectorindex.Sidecar{
		Variant:     vectorindex.VariantHnsw,
		Dimension:   idx.dimension,
		Count:       len(idx.data),
		MaxElements: idx.maxElements,
	}); err != nil {
		return err
	}

	meta, err := os.Create(filepath.Join(path, metaFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "create hnsw meta file")
	}
	defer meta.Close()
	for _, v := range []uint64{uint64(idx.m), uint64(idx.efConstruction), idx.maxElements} {
		if err := writeUint64(meta, v); err != nil {
			return rerr.Wrap(rerr.Internal, err, "write hnsw meta")
		}
	}

	data, err := os.Create(filepath.Join(path, dataFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "create hnsw data file")
	}
	defer data.Close()
	for id, v := range idx.data {
		if err := writeRecord(data, id, v); err != nil {
			return rerr.Wrap(rerr.Internal, err, "write hnsw record")
		}
	}
	return nil
}

// Load replaces the index's parameters and live data with the
// contents of path, rejecting an empty path or a sidecar that names a
// different variant or dimension before reading the rest of the
// files.
func (idx *Index) Load(path string) error {
	if _, err := vectorindex.ValidateLoad(path, vectorindex.VariantHnsw, idx.dimension); err != nil {
		return err
	}

	meta, err := os.Open(filepath.Join(path, metaFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "open hnsw meta file")
	}
	defer meta.Close()

	m, err := readUint64(meta)
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "read hnsw meta m")
	}
	efConstruction, err := readUint64(meta)
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "read hnsw meta ef_construction")
	}
	maxElements, err := readUint64(meta)
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "read hnsw meta max_elements")
	}

	data, err := os.Open(filepath.Join(path, dataFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "open hnsw data file")
	}
	defer data.Close()

	loaded := make(map[uint64][]float32)
	for {
		id, v, err := readRecord(data, idx.dimension)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return rerr.Wrap(rerr.Internal, err, "read hnsw record")
		}
		loaded[id] = v
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.m = int(m)
	idx.efConstruction = int(efConstruction)
	idx.maxElements = maxElements
	idx.data = loaded
	idx.deleted = 0
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

func writeRecord(w io.Writer, id uint64, v []float32) error {
	if err := writeUint64(w, id); err != nil {
		return err
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	_, err := w.Write(buf)
	return err
}

func readRecord(r io.Reader, dimension int) (uint64, []float32, error) {
	id, err := readUint64(r)
	if err != nil {
		return 0, nil, err
	}
	buf := make([]byte, 4*dimension)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, err
	}
	v := make([]float32, dimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return id, v, nil
}
