package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/region-engine/internal/vectorindex"
)

func TestUpsertSearchFindsExactMatch(t *testing.T) {
	idx := New(3, vectorindex.MetricL2)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 0, 0}},
		{ID: 2, Data: []float32{0, 1, 0}},
		{ID: 3, Data: []float32{0, 0, 1}},
	}))

	results, err := idx.Search([]vectorindex.Vector{{Data: []float32{1, 0, 0}}}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0], 1)
	assert.Equal(t, uint64(1), results[0][0].ID)
	assert.InDelta(t, 0, results[0][0].Distance, 1e-6)
}

func TestDeleteRemovesFromSearchResults(t *testing.T) {
	idx := New(2, vectorindex.MetricL2)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 1}},
		{ID: 2, Data: []float32{2, 2}},
	}))
	require.NoError(t, idx.Delete([]uint64{1}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	deleted, err := idx.DeletedCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), deleted)

	results, err := idx.Search([]vectorindex.Vector{{Data: []float32{2, 2}}}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results[0], 1)
	assert.Equal(t, uint64(2), results[0][0].ID)
}

func TestDimensionMismatchRejected(t *testing.T) {
	idx := New(3, vectorindex.MetricL2)
	err := idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{1, 2}}})
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)
}

func TestEmptyVectorRejected(t *testing.T) {
	idx := New(3, vectorindex.MetricL2)
	err := idx.Upsert([]vectorindex.Vector{{ID: 1, Data: nil}})
	assert.ErrorIs(t, err, vectorindex.ErrEmptyVector)
}

func TestFilterExcludesCandidates(t *testing.T) {
	idx := New(2, vectorindex.MetricL2)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{0, 0}},
		{ID: 2, Data: []float32{1, 1}},
	}))

	blockID1 := filterFunc(func(id uint64) bool { return id != 1 })
	results, err := idx.Search([]vectorindex.Vector{{Data: []float32{0, 0}}}, 5, []vectorindex.Filter{blockID1})
	require.NoError(t, err)
	require.Len(t, results[0], 1)
	assert.Equal(t, uint64(2), results[0][0].ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := New(2, vectorindex.MetricL2)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 2}},
		{ID: 2, Data: []float32{3, 4}},
	}))
	require.NoError(t, idx.Save(dir))

	reloaded := New(2, vectorindex.MetricL2)
	require.NoError(t, reloaded.Load(dir))

	count, err := reloaded.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	results, err := reloaded.Search([]vectorindex.Vector{{Data: []float32{1, 2}}}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), results[0][0].ID)
}

func TestIsTrainedAlwaysTrueAndMemorySizeScalesWithCount(t *testing.T) {
	idx := New(2, vectorindex.MetricL2)
	assert.True(t, idx.IsTrained())

	size0, err := idx.GetMemorySize()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size0)

	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{1, 2}}}))
	size1, err := idx.GetMemorySize()
	require.NoError(t, err)
	assert.Greater(t, size1, size0)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	idx := New(2, vectorindex.MetricL2)
	err := idx.Load("")
	assert.Error(t, err)
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := New(2, vectorindex.MetricL2)
	require.NoError(t, idx.Save(dir))

	reloaded := New(3, vectorindex.MetricL2)
	err := reloaded.Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsVariantMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, vectorindex.WriteSidecar(dir, vectorindex.Sidecar{
		Variant:   vectorindex.VariantHnsw,
		Dimension: 2,
	}))

	idx := New(2, vectorindex.MetricL2)
	err := idx.Load(dir)
	assert.Error(t, err)
}

func TestCosineMetricNormalizesBeforeScoring(t *testing.T) {
	idx := New(2, vectorindex.MetricCosine)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{2, 0}},
		{ID: 2, Data: []float32{0, 2}},
	}))
	results, err := idx.Search([]vectorindex.Vector{{Data: []float32{5, 0}}}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), results[0][0].ID)
	assert.InDelta(t, -1, results[0][0].Distance, 1e-5)
}

type filterFunc func(id uint64) bool

func (f filterFunc) Check(id uint64) bool { return f(id) }
