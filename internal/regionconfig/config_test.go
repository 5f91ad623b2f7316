package regionconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestValidateClampsInvalidSnapshotPolicy(t *testing.T) {
	c := Defaults()
	c.RaftSnapshotPolicy = "bogus"
	c.Validate(zap.NewNop())
	assert.Equal(t, DefaultSnapshotPolicy, c.RaftSnapshotPolicy)
}

func TestValidateClampsOutOfRangeSplitRatios(t *testing.T) {
	c := Defaults()
	c.RegionSplitSizeRatio = 0.95
	c.RegionSplitKeysRatio = 0.01
	c.Validate(zap.NewNop())
	assert.Equal(t, DefaultSplitSizeRatio, c.RegionSplitSizeRatio)
	assert.Equal(t, DefaultSplitKeysRatio, c.RegionSplitKeysRatio)
}

func TestValidateClampsBelowFloor(t *testing.T) {
	c := Defaults()
	c.RegionMaxSize = 1024
	c.RegionSplitChunkSize = 1
	c.RegionSplitKeysNumber = 0
	c.Validate(zap.NewNop())
	assert.Equal(t, int64(defaultRegionMaxSize), c.RegionMaxSize)
	assert.Equal(t, int64(defaultSplitChunkSize), c.RegionSplitChunkSize)
	assert.Equal(t, int64(defaultSplitKeysNumber), c.RegionSplitKeysNumber)
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	c := Defaults()
	c.Validate(zap.NewNop())
	assert.Equal(t, Defaults(), c)
}

func TestValidateClampsNonPositiveElectionTimeout(t *testing.T) {
	c := Defaults()
	c.RaftElectionTimeoutS = 0
	c.Validate(zap.NewNop())
	assert.Equal(t, DefaultElectionTimeoutS, c.RaftElectionTimeoutS)
}
