// Package vecsnapshot implements C6: the on-disk catalog of vector
// index snapshots a region keeps around for raft snapshot transfer.
// Directory naming, newest-wins replacement and the fields tracked
// per snapshot mirror
// original_source/src/vector/vector_index_snapshot.cc's SnapshotMeta
// and SnapshotMetaSet.
package vecsnapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/dingodb/region-engine/internal/rerr"
	"go.uber.org/zap"
)

var dirNamePattern = regexp.MustCompile(`^snapshot_(\d{20})$`)

// SnapshotMeta describes one vector index snapshot directory on disk,
// named "snapshot_<20-digit zero-padded log id>".
type SnapshotMeta struct {
	vectorIndexID uint64
	path          string
	logID         uint64
}

// NewSnapshotMeta parses the snapshot log id out of path's directory
// name. It fails if the name doesn't match the "snapshot_<20 digits>"
// form, matching SnapshotMeta::Init's strtoull-with-full-consumption
// check.
func NewSnapshotMeta(vectorIndexID uint64, path string) (*SnapshotMeta, error) {
	name := filepath.Base(path)
	m := dirNamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, rerr.New(rerr.IllegalParameters, "snapshot directory name %q does not match snapshot_<20 digits>", name)
	}
	logID, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return nil, rerr.Wrap(rerr.IllegalParameters, err, "parse snapshot log id from directory name")
	}
	return &SnapshotMeta{vectorIndexID: vectorIndexID, path: path, logID: logID}, nil
}

// DirName formats the canonical directory name for a given log id.
func DirName(logID uint64) string {
	return fmt.Sprintf("snapshot_%020d", logID)
}

func (m *SnapshotMeta) VectorIndexID() uint64 { return m.vectorIndexID }
func (m *SnapshotMeta) SnapshotLogID() uint64 { return m.logID }
func (m *SnapshotMeta) Path() string          { return m.path }

func (m *SnapshotMeta) MetaPath() string { return filepath.Join(m.path, "meta") }

func (m *SnapshotMeta) IndexDataPath() string {
	return filepath.Join(m.path, fmt.Sprintf("index_%d_%d.idx", m.vectorIndexID, m.logID))
}

// ListFileNames lists the snapshot directory's immediate entries.
func (m *SnapshotMeta) ListFileNames() ([]string, error) {
	entries, err := os.ReadDir(m.path)
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, err, "list vector index snapshot directory")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Remove deletes the snapshot's directory from disk. Callers must
// call this once a snapshot is no longer referenced by the set or any
// in-flight transfer, mirroring the refcounted deletion
// ~SnapshotMeta() performs in the original.
func (m *SnapshotMeta) Remove(log *zap.Logger) {
	if log != nil {
		log.Info("delete vector index snapshot directory", zap.String("path", m.path))
	}
	if err := os.RemoveAll(m.path); err != nil && log != nil {
		log.Warn("failed to delete vector index snapshot directory", zap.String("path", m.path), zap.Error(err))
	}
}

// SnapshotMetaSet tracks at most one retained snapshot per vector
// index: AddSnapshot only accepts a snapshot whose log id isn't
// already tracked, and on acceptance discards (and removes from disk)
// whatever was tracked before it — the catalog always holds the
// newest generation.
type SnapshotMetaSet struct {
	mu        sync.Mutex
	log       *zap.Logger
	snapshots map[uint64]*SnapshotMeta
}

func NewSnapshotMetaSet(log *zap.Logger) *SnapshotMetaSet {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotMetaSet{log: log, snapshots: make(map[uint64]*SnapshotMeta)}
}

// AddSnapshot accepts snapshot if its log id isn't already present,
// replacing (and removing from disk) any previously tracked
// snapshots. Returns false, without modifying the set, if the log id
// is already tracked.
func (s *SnapshotMetaSet) AddSnapshot(snapshot *SnapshotMeta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[snapshot.SnapshotLogID()]; ok {
		s.log.Warn("already exist vector index snapshot",
			zap.Uint64("vector_index_id", snapshot.VectorIndexID()),
			zap.Uint64("snapshot_log_id", snapshot.SnapshotLogID()))
		return false
	}

	for _, stale := range s.snapshots {
		stale.Remove(s.log)
	}
	s.snapshots = map[uint64]*SnapshotMeta{snapshot.SnapshotLogID(): snapshot}
	return true
}

// ClearSnapshot removes every tracked snapshot, deleting their
// directories, and empties the set.
func (s *SnapshotMetaSet) ClearSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range s.snapshots {
		snap.Remove(s.log)
	}
	s.snapshots = make(map[uint64]*SnapshotMeta)
}

// GetLastSnapshot returns the snapshot with the highest log id, or
// false if the set is empty.
func (s *SnapshotMetaSet) GetLastSnapshot() (*SnapshotMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *SnapshotMeta
	for _, snap := range s.snapshots {
		if best == nil || snap.SnapshotLogID() > best.SnapshotLogID() {
			best = snap
		}
	}
	return best, best != nil
}

// GetSnapshots returns all tracked snapshots, ordered by ascending
// log id.
func (s *SnapshotMetaSet) GetSnapshots() []*SnapshotMeta {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*SnapshotMeta, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SnapshotLogID() < result[j].SnapshotLogID() })
	return result
}

// IsExistSnapshot reports whether the set's newest snapshot is at
// least as new as logID.
func (s *SnapshotMetaSet) IsExistSnapshot(logID uint64) bool {
	last, ok := s.GetLastSnapshot()
	if !ok {
		return false
	}
	return logID <= last.SnapshotLogID()
}

// IsExistLastSnapshot reports whether the set has any snapshot at all.
func (s *SnapshotMetaSet) IsExistLastSnapshot() bool {
	_, ok := s.GetLastSnapshot()
	return ok
}
