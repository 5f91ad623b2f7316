package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/region-engine/internal/vectorindex"
)

func TestUpsertRejectsBeyondMaxElements(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 2)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 1}},
		{ID: 2, Data: []float32{2, 2}},
	}))
	err := idx.Upsert([]vectorindex.Vector{{ID: 3, Data: []float32{3, 3}}})
	assert.Error(t, err)
}

func TestUpsertOverwriteOfExistingIDDoesNotCountAgainstCapacity(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 1)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{1, 1}}}))
	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{5, 5}}}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestIsExceedsMaxElements(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 1)
	assert.False(t, idx.IsExceedsMaxElements())
	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{1, 1}}}))
	assert.True(t, idx.IsExceedsMaxElements())
}

func TestResizeMaxElementsGrows(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 1)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{1, 1}}}))
	require.NoError(t, idx.ResizeMaxElements(5))
	assert.Equal(t, uint64(5), idx.GetMaxElements())
	assert.False(t, idx.IsExceedsMaxElements())

	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 2, Data: []float32{2, 2}}}))
}

func TestResizeMaxElementsRejectsShrinkBelowLiveCount(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 5)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 1}},
		{ID: 2, Data: []float32{2, 2}},
	}))
	err := idx.ResizeMaxElements(1)
	assert.Error(t, err)
}

func TestDeleteFreesCapacityForReuse(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 1)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{1, 1}}}))
	require.NoError(t, idx.Delete([]uint64{1}))
	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 2, Data: []float32{2, 2}}}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	deleted, err := idx.DeletedCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), deleted)
}

func TestSearchReturnsNearestUnderCosineNormalization(t *testing.T) {
	idx := New(2, vectorindex.MetricCosine, 10)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 0}},
		{ID: 2, Data: []float32{0, 1}},
	}))
	results, err := idx.Search([]vectorindex.Vector{{Data: []float32{10, 0}}}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results[0], 1)
	assert.Equal(t, uint64(1), results[0][0].ID)
}

func TestSaveLoadRoundTripPreservesParamsAndData(t *testing.T) {
	dir := t.TempDir()
	idx := New(2, vectorindex.MetricL2, 10)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 2}},
		{ID: 2, Data: []float32{3, 4}},
	}))
	require.NoError(t, idx.ResizeMaxElements(20))
	require.NoError(t, idx.Save(dir))

	reloaded := New(2, vectorindex.MetricL2, 0)
	require.NoError(t, reloaded.Load(dir))
	assert.Equal(t, uint64(20), reloaded.GetMaxElements())

	count, err := reloaded.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestIsTrainedAlwaysTrueAndMemorySizeScalesWithCount(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 10)
	assert.True(t, idx.IsTrained())

	before, err := idx.GetMemorySize()
	require.NoError(t, err)

	require.NoError(t, idx.Upsert([]vectorindex.Vector{{ID: 1, Data: []float32{1, 2}}}))
	after, err := idx.GetMemorySize()
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 10)
	assert.Error(t, idx.Load(""))
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := New(2, vectorindex.MetricL2, 10)
	require.NoError(t, idx.Save(dir))

	reloaded := New(5, vectorindex.MetricL2, 10)
	assert.Error(t, reloaded.Load(dir))
}

func TestNeedToRebuildAfterEnoughDeletes(t *testing.T) {
	idx := New(2, vectorindex.MetricL2, 3)
	require.NoError(t, idx.Upsert([]vectorindex.Vector{
		{ID: 1, Data: []float32{1, 1}},
		{ID: 2, Data: []float32{2, 2}},
		{ID: 3, Data: []float32{3, 3}},
	}))
	assert.False(t, idx.NeedToRebuild())
	require.NoError(t, idx.Delete([]uint64{1, 2}))
	assert.True(t, idx.NeedToRebuild())
}
