package raftsnap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/region-engine/internal/region"
	"github.com/dingodb/region-engine/internal/regionconfig"
	"github.com/dingodb/region-engine/internal/storage"
)

func newTestRegion(t *testing.T, start, end string) *region.Region {
	t.Helper()
	reg := region.New(1)
	require.NoError(t, reg.SetRawRange(region.Range{StartKey: []byte(start), EndKey: []byte(end)}))
	return reg
}

func TestSaveLoadRoundTripScan(t *testing.T) {
	src := storage.NewFakeEngine()
	wb := storage.NewWriteBatch()
	for _, k := range []string{"a", "b", "c", "m", "z"} {
		wb.Set([]byte(k), []byte(k))
	}
	require.NoError(t, src.Write(wb))

	reg := newTestRegion(t, "a", "n")
	dir := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, Save(nil, nil, src, reg, dir, regionconfig.PolicyScan))

	dst := storage.NewFakeEngine()
	dstReg := newTestRegion(t, "a", "n")
	require.NoError(t, Load(nil, nil, dst, dstReg, dir, LoadOptions{}))

	for _, k := range []string{"a", "b", "c", "m"} {
		v, err := dst.Get([]byte(k))
		require.NoError(t, err)
		assert.Equal(t, []byte(k), v)
	}
	_, err := dst.Get([]byte("z"))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestSaveLoadRoundTripCheckpoint(t *testing.T) {
	src := storage.NewFakeEngine()
	wb := storage.NewWriteBatch()
	wb.Set([]byte("a"), []byte("1"))
	wb.Set([]byte("b"), []byte("2"))
	require.NoError(t, src.Write(wb))

	reg := newTestRegion(t, "a", "c")
	dir := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, Save(nil, nil, src, reg, dir, regionconfig.PolicyCheckpoint))

	dst := storage.NewFakeEngine()
	dstReg := newTestRegion(t, "a", "c")
	require.NoError(t, Load(nil, nil, dst, dstReg, dir, LoadOptions{}))

	v, err := dst.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestSaveEmptyRangeYieldsNoEntries(t *testing.T) {
	src := storage.NewFakeEngine()
	reg := newTestRegion(t, "a", "b")
	dir := filepath.Join(t.TempDir(), "snap")
	err := Save(nil, nil, src, reg, dir, regionconfig.PolicyScan)
	require.Error(t, err)
}

func TestLoadRejectsStaleEpoch(t *testing.T) {
	src := storage.NewFakeEngine()
	wb := storage.NewWriteBatch()
	wb.Set([]byte("a"), []byte("1"))
	require.NoError(t, src.Write(wb))

	reg := newTestRegion(t, "a", "b")
	dir := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, Save(nil, nil, src, reg, dir, regionconfig.PolicyCheckpoint))

	dst := storage.NewFakeEngine()
	dstReg := newTestRegion(t, "a", "b")
	require.NoError(t, dstReg.UpdateEpochVersion(5))

	err := Load(nil, nil, dst, dstReg, dir, LoadOptions{})
	require.Error(t, err)
}

func TestLoadAdvancesNewerEpochAndRange(t *testing.T) {
	src := storage.NewFakeEngine()
	wb := storage.NewWriteBatch()
	wb.Set([]byte("a"), []byte("1"))
	require.NoError(t, src.Write(wb))

	reg := newTestRegion(t, "a", "d")
	require.NoError(t, reg.UpdateEpochVersion(3))
	dir := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, Save(nil, nil, src, reg, dir, regionconfig.PolicyCheckpoint))

	dst := storage.NewFakeEngine()
	dstReg := newTestRegion(t, "a", "b")

	require.NoError(t, Load(nil, nil, dst, dstReg, dir, LoadOptions{}))
	assert.Equal(t, uint64(3), dstReg.Epoch().Version)
	assert.Equal(t, region.Range{StartKey: []byte("a"), EndKey: []byte("d")}, dstReg.RawRange())
}

func TestLoadSuspendHookFires(t *testing.T) {
	src := storage.NewFakeEngine()
	wb := storage.NewWriteBatch()
	wb.Set([]byte("a"), []byte("1"))
	require.NoError(t, src.Write(wb))

	reg := newTestRegion(t, "a", "b")
	dir := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, Save(nil, nil, src, reg, dir, regionconfig.PolicyCheckpoint))

	dst := storage.NewFakeEngine()
	dstReg := newTestRegion(t, "a", "b")

	called := false
	require.NoError(t, Load(nil, nil, dst, dstReg, dir, LoadOptions{Suspend: func() { called = true }}))
	assert.True(t, called)
}

// TestCheckpointSnapshotDoesNotLeakOtherRegionsData exercises spec
// scenario 4 against a shared multi-region engine: a checkpoint-policy
// snapshot of one region must not carry another region's data, even
// though the underlying engine's checkpoint spans the whole keyspace.
func TestCheckpointSnapshotDoesNotLeakOtherRegionsData(t *testing.T) {
	src := storage.NewFakeEngine()
	wb := storage.NewWriteBatch()
	for i := 0; i < 16; i++ {
		k := []byte{byte(i)}
		wb.Set(k, k)
	}
	require.NoError(t, src.Write(wb))

	reg := newTestRegionBytes(t, []byte{0x03}, []byte{0x05})
	dir := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, Save(nil, nil, src, reg, dir, regionconfig.PolicyCheckpoint))

	dst := storage.NewFakeEngine()
	dstReg := newTestRegionBytes(t, []byte{0x03}, []byte{0x05})
	require.NoError(t, Load(nil, nil, dst, dstReg, dir, LoadOptions{}))

	_, err := dst.Get([]byte{0x03})
	require.NoError(t, err)
	_, err = dst.Get([]byte{0x04})
	require.NoError(t, err)

	for _, outside := range [][]byte{{0x00}, {0x02}, {0x05}, {0x0f}} {
		_, err := dst.Get(outside)
		assert.ErrorIs(t, err, storage.ErrKeyNotFound, "key %x must not leak from another region's range", outside)
	}
}

func newTestRegionBytes(t *testing.T, start, end []byte) *region.Region {
	t.Helper()
	reg := region.New(1)
	require.NoError(t, reg.SetRawRange(region.Range{StartKey: start, EndKey: end}))
	return reg
}

func TestFilterSstFileKeepsLevelMinusOneAndOverlapping(t *testing.T) {
	files := []SstFileInfo{
		{Level: -1, Name: "checkpoint"},
		{Level: 0, Name: "overlap", StartKey: []byte("a"), EndKey: []byte("c")},
		{Level: 0, Name: "disjoint", StartKey: []byte("x"), EndKey: []byte("y")},
	}
	ranges := []region.Range{{StartKey: []byte("b"), EndKey: []byte("d")}}
	kept := FilterSstFile(files, ranges)
	var names []string
	for _, f := range kept {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"checkpoint", "overlap"}, names)
}
