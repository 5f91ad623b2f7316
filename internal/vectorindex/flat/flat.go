// Package flat implements the FLAT vector index variant: a plain
// brute-force scan over every stored vector, the baseline variant
// against which IVF_FLAT and HNSW trade index-build cost for search
// speed. Grounded on original_source/src/vector/vector_index_flat.h's
// shape (no training, Upsert/Add/Delete backed by a single map, exact
// search via a full scan).
package flat

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dingodb/region-engine/internal/rerr"
	"github.com/dingodb/region-engine/internal/vectorindex"
)

// Index is the FLAT vector index: exact, unindexed, trivially
// correct — every Search is a full scan.
type Index struct {
	mu sync.RWMutex

	dimension int
	metric    vectorindex.MetricType
	normalize bool

	data    map[uint64][]float32
	deleted int
}

func init() {
	vectorindex.Register(vectorindex.VariantFlat, func(p vectorindex.Params) vectorindex.Index {
		return New(p.Dimension, p.Metric)
	})
}

// New constructs an empty FLAT index. New sets normalize when metric
// is MetricCosine, so every stored and queried vector is
// unit-length before distance is computed (the inner-product-as-cosine
// trick original_source applies before handing vectors to hnswlib/faiss).
func New(dimension int, metric vectorindex.MetricType) *Index {
	return &Index{
		dimension: dimension,
		metric:    metric,
		normalize: metric == vectorindex.MetricCosine,
		data:      make(map[uint64][]float32),
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
	for _, v := range vectors {
		idx.store(v)
	}
	return nil
}

// Add behaves identically to Upsert for FLAT: there is no trained
// structure that would make a fresh insert different from an
// overwrite.
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
// times the per-vector float32 payload size; FLAT keeps no auxiliary
// index structure beyond the map itself.
func (idx *Index) GetMemorySize() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(len(idx.data)) * uint64(idx.dimension) * 4, nil
}

// IsTrained is always true: FLAT has no training step.
func (idx *Index) IsTrained() bool { return true }

func (idx *Index) NeedToRebuild() bool { return false }
func (idx *Index) SupportSave() bool   { return true }

const dataFileName = "flat.vec"

// Save writes every live vector as a flat (id, dimension floats)
// sequence of records to path, plus the common index.sidecar header
// Load validates against before trusting the data file.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return rerr.Wrap(rerr.Internal, err, "create flat index save directory")
	}

	if err := vectorindex.WriteSidecar(path, vectorindex.Sidecar{
		Variant:   vectorindex.VariantFlat,
		Dimension: idx.dimension,
		Count:     len(idx.data),
	}); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(path, dataFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "create flat index data file")
	}
	defer f.Close()

	for id, v := range idx.data {
		if err := writeRecord(f, id, v); err != nil {
			return rerr.Wrap(rerr.Internal, err, "write flat index record")
		}
	}
	return nil
}

// Load replaces the index's live data with the contents of path,
// rejecting an empty path or a sidecar that names a different variant
// or dimension before reading the data file.
func (idx *Index) Load(path string) error {
	if _, err := vectorindex.ValidateLoad(path, vectorindex.VariantFlat, idx.dimension); err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(path, dataFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "open flat index data file")
	}
	defer f.Close()

	data := make(map[uint64][]float32)
	for {
		id, v, err := readRecord(f, idx.dimension)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return rerr.Wrap(rerr.Internal, err, "read flat index record")
		}
		data[id] = v
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.data = data
	idx.deleted = 0
	return nil
}
