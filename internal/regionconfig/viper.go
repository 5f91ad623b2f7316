package regionconfig

import "github.com/spf13/viper"

// LoadFromViper overlays any recognized configuration keys present in v
// onto defaults. Call Validate afterwards to clamp/reject anything
// out-of-range, matching config_helper.cc's "fall back to defaults
// with a warning" behavior.
func LoadFromViper(v *viper.Viper) Config {
	cfg := Defaults()
	if v == nil {
		return cfg
	}
	if v.IsSet("raft.snapshot_policy") {
		cfg.RaftSnapshotPolicy = SnapshotPolicy(v.GetString("raft.snapshot_policy"))
	}
	if v.IsSet("raft.election_timeout_s") {
		cfg.RaftElectionTimeoutS = v.GetInt("raft.election_timeout_s")
	}
	if v.IsSet("region.split_strategy") {
		cfg.RegionSplitStrategy = SplitStrategy(v.GetString("region.split_strategy"))
	}
	if v.IsSet("region.region_max_size") {
		cfg.RegionMaxSize = v.GetInt64("region.region_max_size")
	}
	if v.IsSet("region.split_policy") {
		cfg.RegionSplitPolicy = v.GetString("region.split_policy")
	}
	if v.IsSet("region.split_chunk_size") {
		cfg.RegionSplitChunkSize = v.GetInt64("region.split_chunk_size")
	}
	if v.IsSet("region.split_size_ratio") {
		cfg.RegionSplitSizeRatio = v.GetFloat64("region.split_size_ratio")
	}
	if v.IsSet("region.split_keys_number") {
		cfg.RegionSplitKeysNumber = v.GetInt64("region.split_keys_number")
	}
	if v.IsSet("region.split_keys_ratio") {
		cfg.RegionSplitKeysRatio = v.GetFloat64("region.split_keys_ratio")
	}
	return cfg
}
