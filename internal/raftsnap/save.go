package raftsnap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dingodb/region-engine/internal/obs"
	"github.com/dingodb/region-engine/internal/region"
	"github.com/dingodb/region-engine/internal/regionconfig"
	"github.com/dingodb/region-engine/internal/rerr"
	"github.com/dingodb/region-engine/internal/storage"
)

// currentMarkerName is left in a checkpoint-strategy snapshot
// directory, mirroring rocksdb's own CURRENT file; Load uses its
// presence to tell a checkpoint snapshot from a scan one without
// consulting config.
const currentMarkerName = "CURRENT"

// scanFileName returns the single generic-format data file name a
// scan-strategy snapshot writes via storage.ExportRange — named after
// the region id so a snapshot's sst is bit-exact and interoperable
// across regions sharing a transfer directory.
func scanFileName(regionID uint64) string {
	return fmt.Sprintf("%d.sst", regionID)
}

// Save generates a snapshot of reg's data (scoped to reg.PhysicsRange)
// from eng into dir, choosing the scan or checkpoint strategy per
// policy, mirroring SaveSnapshot's two code paths. metrics may be nil.
func Save(log *zap.Logger, metrics *obs.Metrics, eng storage.Engine, reg *region.Region, dir string, policy regionconfig.SnapshotPolicy) (err error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	defer func() { metrics.ObserveSnapshotSave(string(policy), time.Since(start), err) }()

	w, err := NewWriter(dir)
	if err != nil {
		return err
	}

	meta := RegionMeta{Epoch: reg.Epoch(), Range: reg.RawRange()}
	mf, _, err := w.Create(RegionMetaFileName)
	if err != nil {
		return err
	}
	encErr := meta.Encode(mf)
	closeErr := mf.Close()
	if encErr != nil {
		return rerr.Wrap(rerr.Internal, encErr, "write region meta")
	}
	if closeErr != nil {
		return rerr.Wrap(rerr.Internal, closeErr, "close region meta file")
	}

	ranges := reg.PhysicsRange()

	switch policy {
	case regionconfig.PolicyScan:
		var count int
		count, err = genSnapshotByScan(w, eng, reg.ID(), ranges)
		if err != nil {
			return err
		}
		if count == 0 {
			log.Info("snapshot scan produced no entries", zap.Uint64("region_id", reg.ID()))
			return rerr.New(rerr.NoEntries, "region %d has no data in range", reg.ID())
		}
	case regionconfig.PolicyCheckpoint:
		if err := genSnapshotByCheckpoint(w, eng, ranges); err != nil {
			return err
		}
	default:
		return rerr.New(rerr.IllegalParameters, "unknown snapshot policy %q", policy)
	}

	log.Info("generated raft snapshot", zap.Uint64("region_id", reg.ID()), zap.String("dir", dir), zap.String("policy", string(policy)))
	return nil
}

// genSnapshotByScan exports every physics-range slice via
// storage.ExportRange into a single generic-format data file named
// after regionID, mirroring GenSnapshotFileByScan's iterator-driven
// path.
func genSnapshotByScan(w *Writer, eng storage.Engine, regionID uint64, ranges []region.Range) (int, error) {
	f, _, err := w.Create(scanFileName(regionID))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	total := 0
	for _, rg := range ranges {
		n, err := storage.ExportRange(eng, f, rg.StartKey, rg.EndKey)
		if err != nil {
			return total, rerr.Wrap(rerr.Internal, err, "export range for snapshot")
		}
		total += n
	}
	return total, nil
}

// genSnapshotByCheckpoint asks eng for an atomic checkpoint into a
// scratch directory, filters the resulting files down to those
// overlapping ranges (or marked Level -1, always kept) via
// FilterSstFile, and hard-links the survivors into the snapshot
// directory via Writer.LinkFile, mirroring
// GenSnapshotFileByCheckpoint's checkpoint-then-filter-then-link path.
// The scratch directory, and any partially linked files, are removed
// if anything fails; the scratch directory is always removed once
// linking succeeds.
func genSnapshotByCheckpoint(w *Writer, eng storage.Engine, ranges []region.Range) (err error) {
	scratchDir, err := os.MkdirTemp("", "raftsnap-checkpoint-*")
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "create checkpoint scratch directory")
	}
	defer os.RemoveAll(scratchDir)

	checkpointFiles, err := eng.Checkpoint(scratchDir)
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "checkpoint engine for snapshot")
	}

	candidates := make([]SstFileInfo, len(checkpointFiles))
	for i, cf := range checkpointFiles {
		candidates[i] = SstFileInfo{
			Level:    cf.Level,
			Name:     filepath.Base(cf.Path),
			Path:     cf.Path,
			StartKey: cf.StartKey,
			EndKey:   cf.EndKey,
		}
	}
	kept := FilterSstFile(candidates, ranges)

	linked := make([]string, 0, len(kept))
	defer func() {
		if err != nil {
			for _, p := range linked {
				os.Remove(p)
			}
		}
	}()

	for _, info := range kept {
		dst, linkErr := w.LinkFile(info.Name, info.Path)
		if linkErr != nil {
			return rerr.Wrap(rerr.Internal, linkErr, "link checkpoint file into snapshot")
		}
		linked = append(linked, dst)
	}

	if _, err = w.WriteFile(currentMarkerName, []byte{}); err != nil {
		return err
	}
	return nil
}

// ListSstFiles describes the non-meta files in dir as SstFileInfo, for
// callers that want to apply FilterSstFile before transferring a
// snapshot over the wire. A checkpoint snapshot's file(s) are reported
// at Level -1 (always kept); a scan snapshot's single file is reported
// with the first of the given ranges (any later ranges are ignored) so
// FilterSstFile's overlap check applies.
func ListSstFiles(dir string, ranges []region.Range) ([]SstFileInfo, error) {
	r := NewReader(dir)
	paths, err := r.ListDataFiles()
	if err != nil {
		return nil, err
	}
	checkpoint := r.HasCurrentMarker()

	out := make([]SstFileInfo, 0, len(paths))
	for _, p := range paths {
		info := SstFileInfo{Name: filepath.Base(p), Path: p}
		if checkpoint {
			info.Level = -1
		} else {
			for _, rg := range ranges {
				info.StartKey = rg.StartKey
				info.EndKey = rg.EndKey
				break
			}
		}
		out = append(out, info)
	}
	return out, nil
}
