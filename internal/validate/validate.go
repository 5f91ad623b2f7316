// Package validate implements C7: request-entry gating against region
// epoch/range/read-only state, grounded directly on
// original_source/src/server/service_helper.cc.
package validate

import (
	"bytes"
	"sync/atomic"

	"github.com/dingodb/region-engine/internal/codec"
	"github.com/dingodb/region-engine/internal/region"
	"github.com/dingodb/region-engine/internal/rerr"
)

// ValidateRegionEpoch fails RegionVersion on any mismatch of either
// epoch component (service_helper.cc ValidateRegionEpoch).
func ValidateRegionEpoch(reqEpoch region.Epoch, r *region.Region) error {
	cur := r.Epoch()
	if cur.ConfVersion != reqEpoch.ConfVersion || cur.Version != reqEpoch.Version {
		return rerr.New(rerr.RegionVersion,
			"region(%d) epoch is not match, region_epoch(%d_%d) req_epoch(%d_%d)",
			r.ID(), cur.ConfVersion, cur.Version, reqEpoch.ConfVersion, reqEpoch.Version)
	}
	return nil
}

// ValidateRange fails IllegalParameters on empty keys, RangeInvalid
// when start >= end (service_helper.cc ValidateRange).
func ValidateRange(rg region.Range) error {
	if len(rg.StartKey) == 0 || len(rg.EndKey) == 0 {
		return rerr.New(rerr.IllegalParameters, "range key is empty")
	}
	if bytes.Compare(rg.StartKey, rg.EndKey) >= 0 {
		return rerr.New(rerr.RangeInvalid, "range [%s,%s) is invalid", codec.ToHex(rg.StartKey), codec.ToHex(rg.EndKey))
	}
	return nil
}

// ValidateKeyInRange uses half-open [start,end) (service_helper.cc
// ValidateKeyInRange).
func ValidateKeyInRange(rg region.Range, keys [][]byte) error {
	for _, key := range keys {
		if bytes.Compare(rg.StartKey, key) > 0 || (len(rg.EndKey) != 0 && bytes.Compare(rg.EndKey, key) <= 0) {
			return rerr.New(rerr.KeyOutOfRange, "key out of range, region range[%s-%s] key[%s]",
				codec.ToHex(rg.StartKey), codec.ToHex(rg.EndKey), codec.ToHex(key))
		}
	}
	return nil
}

// ValidateRangeInRange compares using truncated prefixes: the shorter
// side is lexicographically compared against the longer side
// truncated to the same length; when one side's end key is longer,
// that side is promoted via PrefixNext before comparison
// (service_helper.cc ValidateRangeInRange).
func ValidateRangeInRange(regionRange, reqRange region.Range) error {
	minStartLen := min(len(regionRange.StartKey), len(reqRange.StartKey))
	reqTruncStart := truncate(reqRange.StartKey, minStartLen)
	regionTruncStart := truncate(regionRange.StartKey, minStartLen)
	if bytes.Compare(reqTruncStart, regionTruncStart) < 0 {
		return outOfRangeErr(regionRange, reqRange)
	}

	reqEnd, regionEnd := reqRange.EndKey, regionRange.EndKey
	switch {
	case len(reqEnd) > len(regionEnd):
		minEndLen := len(regionEnd)
		reqEnd = codec.PrefixNext(truncate(reqRange.EndKey, minEndLen))
		regionEnd = truncate(regionRange.EndKey, minEndLen)
	case len(reqEnd) < len(regionEnd):
		minEndLen := len(reqEnd)
		regionEnd = codec.PrefixNext(truncate(regionRange.EndKey, minEndLen))
		reqEnd = truncate(reqRange.EndKey, minEndLen)
	}
	if bytes.Compare(reqEnd, regionEnd) > 0 {
		return outOfRangeErr(regionRange, reqRange)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if n > len(b) {
		n = len(b)
	}
	return b[:n]
}

func outOfRangeErr(regionRange, reqRange region.Range) error {
	return rerr.New(rerr.KeyOutOfRange, "key out of range, region range[%s-%s] req range[%s-%s]",
		codec.ToHex(regionRange.StartKey), codec.ToHex(regionRange.EndKey),
		codec.ToHex(reqRange.StartKey), codec.ToHex(reqRange.EndKey))
}

// ValidateClusterReadOnly consults a process-wide flag set by
// coordinator heartbeat and returns ClusterReadOnly if set
// (service_helper.cc ValidateClusterReadOnly). The coordinator RPC
// surface that flips the flag belongs to the coordinator heartbeat path; callers
// own a *ReadOnlyFlag instance and set it from wherever they terminate
// heartbeats.
type ReadOnlyFlag struct {
	readOnly atomic.Bool
}

func (f *ReadOnlyFlag) Set(v bool) { f.readOnly.Store(v) }

func ValidateClusterReadOnly(f *ReadOnlyFlag) error {
	if f != nil && f.readOnly.Load() {
		return rerr.New(rerr.ClusterReadOnly, "cluster is set to read-only from coordinator")
	}
	return nil
}
