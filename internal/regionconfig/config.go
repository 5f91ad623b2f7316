// Package regionconfig implements the typed configuration surface for
// raft and region-split tuning, with clamp-to-default validation
// mirroring original_source/src/config/config_helper.cc. This package
// only covers the keys this module's components actually consume, and
// can optionally be populated from a github.com/spf13/viper source.
package regionconfig

import (
	"go.uber.org/zap"
)

// SnapshotPolicy selects the C4 save strategy.
type SnapshotPolicy string

const (
	PolicyCheckpoint SnapshotPolicy = "checkpoint"
	PolicyScan       SnapshotPolicy = "scan"
)

// SplitStrategy selects how a split pre-creates the new region.
type SplitStrategy string

const (
	SplitPreCreateRegion SplitStrategy = "PRE_CREATE_REGION"
)

// Defaults.
const (
	DefaultSnapshotPolicy     = PolicyCheckpoint
	DefaultElectionTimeoutS   = 7
	DefaultSplitStrategy      = SplitPreCreateRegion
	DefaultSplitSizeRatio     = 0.3
	DefaultSplitKeysRatio     = 0.3
	minSplitRatio             = 0.1
	maxSplitRatio             = 0.9
	minRegionMaxSizeFloor     = 1 << 20  // 1MiB floor
	minSplitChunkSizeFloor    = 1 << 10  // 1KiB floor
	minSplitKeysNumberFloor   = 1
	defaultRegionMaxSize      = 256 << 20
	defaultSplitChunkSize     = 8 << 20
	defaultSplitKeysNumber    = 10000
)

// Config is the validated, in-scope configuration surface.
type Config struct {
	RaftSnapshotPolicy   SnapshotPolicy
	RaftElectionTimeoutS int

	RegionSplitStrategy   SplitStrategy
	RegionMaxSize         int64
	RegionSplitPolicy     string
	RegionSplitChunkSize  int64
	RegionSplitSizeRatio  float64
	RegionSplitKeysNumber int64
	RegionSplitKeysRatio  float64
}

// Defaults returns a Config populated entirely with built-in defaults.
func Defaults() Config {
	return Config{
		RaftSnapshotPolicy:    DefaultSnapshotPolicy,
		RaftElectionTimeoutS:  DefaultElectionTimeoutS,
		RegionSplitStrategy:   DefaultSplitStrategy,
		RegionMaxSize:         defaultRegionMaxSize,
		RegionSplitChunkSize:  defaultSplitChunkSize,
		RegionSplitSizeRatio:  DefaultSplitSizeRatio,
		RegionSplitKeysNumber: defaultSplitKeysNumber,
		RegionSplitKeysRatio:  DefaultSplitKeysRatio,
	}
}

// Validate resets every out-of-range field, including a size or count
// below its floor, to its default (never to the floor itself), logging a warning for each correction, mirroring config_helper.cc's
// GetSplitSizeRatio/GetElectionTimeoutS/etc.
func (c *Config) Validate(log *zap.Logger) {
	if c.RaftSnapshotPolicy != PolicyScan && c.RaftSnapshotPolicy != PolicyCheckpoint {
		log.Warn("raft.snapshot_policy invalid, using default", zap.String("value", string(c.RaftSnapshotPolicy)))
		c.RaftSnapshotPolicy = DefaultSnapshotPolicy
	}
	if c.RaftElectionTimeoutS <= 0 {
		log.Warn("raft.election_timeout_s too small, using default", zap.Int("value", c.RaftElectionTimeoutS))
		c.RaftElectionTimeoutS = DefaultElectionTimeoutS
	}
	if c.RegionMaxSize < minRegionMaxSizeFloor {
		log.Warn("region.region_max_size too small, clamped", zap.Int64("value", c.RegionMaxSize))
		c.RegionMaxSize = defaultRegionMaxSize
	}
	if c.RegionSplitChunkSize < minSplitChunkSizeFloor {
		log.Warn("region.split_chunk_size too small, clamped", zap.Int64("value", c.RegionSplitChunkSize))
		c.RegionSplitChunkSize = defaultSplitChunkSize
	}
	if c.RegionSplitSizeRatio < minSplitRatio || c.RegionSplitSizeRatio > maxSplitRatio {
		log.Warn("region.split_size_ratio out of range, using default", zap.Float64("value", c.RegionSplitSizeRatio))
		c.RegionSplitSizeRatio = DefaultSplitSizeRatio
	}
	if c.RegionSplitKeysNumber < minSplitKeysNumberFloor {
		log.Warn("region.split_keys_number too small, clamped", zap.Int64("value", c.RegionSplitKeysNumber))
		c.RegionSplitKeysNumber = defaultSplitKeysNumber
	}
	if c.RegionSplitKeysRatio < minSplitRatio || c.RegionSplitKeysRatio > maxSplitRatio {
		log.Warn("region.split_keys_ratio out of range, using default", zap.Float64("value", c.RegionSplitKeysRatio))
		c.RegionSplitKeysRatio = DefaultSplitKeysRatio
	}
}
