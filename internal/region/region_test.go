package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochMonotone(t *testing.T) {
	r := New(1)
	require.NoError(t, r.UpdateEpochVersion(3))
	require.NoError(t, r.UpdateEpochVersion(3))
	require.NoError(t, r.UpdateEpochVersion(5))
	require.Error(t, r.UpdateEpochVersion(4))
	assert.Equal(t, uint64(5), r.Epoch().Version)
}

func TestTransitionDiagram(t *testing.T) {
	r := New(1)
	require.NoError(t, r.TransitionTo(StateStandby))
	require.NoError(t, r.TransitionTo(StateNormal))
	require.Error(t, r.TransitionTo(StateNew))
	require.NoError(t, r.TransitionTo(StateDeleting))
	require.NoError(t, r.TransitionTo(StateDeleted))
	require.NoError(t, r.TransitionTo(StateTombstone))
	require.Error(t, r.TransitionTo(StateNormal))
}

func TestOrphanFromAnyState(t *testing.T) {
	r := New(1)
	require.NoError(t, r.TransitionTo(StateOrphan))
	assert.Equal(t, StateOrphan, r.State())
}

func TestServes(t *testing.T) {
	r := New(1)
	assert.Equal(t, UnavailableRetry, r.Serves())
	require.NoError(t, r.TransitionTo(StateStandby))
	assert.Equal(t, UnavailableRetry, r.Serves())
	require.NoError(t, r.TransitionTo(StateNormal))
	assert.Equal(t, Serving, r.Serves())
	require.NoError(t, r.TransitionTo(StateDeleting))
	assert.Equal(t, UnavailablePermanent, r.Serves())
}

func TestPhysicsRangeSupersetsRawRange(t *testing.T) {
	r := New(1)
	require.NoError(t, r.SetRawRange(Range{StartKey: []byte{0x01}, EndKey: []byte{0x02}}))
	r.AddCFRange(Range{StartKey: []byte{0x01, 0x01}, EndKey: []byte{0x01, 0x02}})
	pr := r.PhysicsRange()
	require.Len(t, pr, 2)
	assert.Equal(t, r.RawRange(), pr[0])
}

func TestRegistryRefcount(t *testing.T) {
	reg := NewRegistry()
	r := New(42)
	reg.Put(r)

	got, ok := reg.Get(42)
	require.True(t, ok)
	assert.Same(t, r, got)
	reg.Release(42)

	require.True(t, reg.Remove(42))
	_, ok = reg.Get(42)
	assert.False(t, ok)
}

func TestWeakHandleDropsSilentlyWhenGone(t *testing.T) {
	reg := NewRegistry()
	handle := WeakHandle{ID: 7}
	_, ok := handle.Upgrade(reg)
	assert.False(t, ok)

	reg.Put(New(7))
	got, ok := handle.Upgrade(reg)
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.ID())
}
