package vecsnapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mkSnapshotDir(t *testing.T, root string, logID uint64) string {
	t.Helper()
	dir := filepath.Join(root, DirName(logID))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestNewSnapshotMetaParsesLogID(t *testing.T) {
	root := t.TempDir()
	dir := mkSnapshotDir(t, root, 42)

	m, err := NewSnapshotMeta(7, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), m.SnapshotLogID())
	assert.Equal(t, uint64(7), m.VectorIndexID())
	assert.Equal(t, filepath.Join(dir, "meta"), m.MetaPath())
}

func TestNewSnapshotMetaRejectsBadName(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "not_a_snapshot")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := NewSnapshotMeta(7, dir)
	require.Error(t, err)
}

func TestAddSnapshotNewestWins(t *testing.T) {
	root := t.TempDir()
	set := NewSnapshotMetaSet(zap.NewNop())

	d1 := mkSnapshotDir(t, root, 1)
	m1, err := NewSnapshotMeta(1, d1)
	require.NoError(t, err)
	assert.True(t, set.AddSnapshot(m1))

	d2 := mkSnapshotDir(t, root, 2)
	m2, err := NewSnapshotMeta(1, d2)
	require.NoError(t, err)
	assert.True(t, set.AddSnapshot(m2))

	// the first directory should have been removed as stale
	_, err = os.Stat(d1)
	assert.True(t, os.IsNotExist(err))

	last, ok := set.GetLastSnapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(2), last.SnapshotLogID())
	assert.Len(t, set.GetSnapshots(), 1)
}

func TestAddSnapshotDuplicateLogIDRejected(t *testing.T) {
	root := t.TempDir()
	set := NewSnapshotMetaSet(zap.NewNop())

	d1 := mkSnapshotDir(t, root, 5)
	m1, err := NewSnapshotMeta(1, d1)
	require.NoError(t, err)
	require.True(t, set.AddSnapshot(m1))

	m1Dup, err := NewSnapshotMeta(1, d1)
	require.NoError(t, err)
	assert.False(t, set.AddSnapshot(m1Dup))
	assert.Len(t, set.GetSnapshots(), 1)
}

func TestClearSnapshotRemovesDirectories(t *testing.T) {
	root := t.TempDir()
	set := NewSnapshotMetaSet(zap.NewNop())
	d1 := mkSnapshotDir(t, root, 9)
	m1, err := NewSnapshotMeta(1, d1)
	require.NoError(t, err)
	require.True(t, set.AddSnapshot(m1))

	set.ClearSnapshot()
	_, err = os.Stat(d1)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, set.IsExistLastSnapshot())
}

func TestIsExistSnapshot(t *testing.T) {
	root := t.TempDir()
	set := NewSnapshotMetaSet(zap.NewNop())
	d1 := mkSnapshotDir(t, root, 10)
	m1, err := NewSnapshotMeta(1, d1)
	require.NoError(t, err)
	require.True(t, set.AddSnapshot(m1))

	assert.True(t, set.IsExistSnapshot(5))
	assert.True(t, set.IsExistSnapshot(10))
	assert.False(t, set.IsExistSnapshot(11))
}
