// Package storage wraps the opaque key-value engine a region's raft
// snapshot and vector index machinery read and write through. The
// shapes here — a forward iterator, a buffered WriteBatch with a
// rollback-to-safe-point mark, and a delete-range-in-batches helper —
// are adapted from disksing-faketikv/raftstore/engine.go's
// Engines/WriteBatch and disksing-faketikv/rocksdb's SstFileIterator.
// Implementing an actual storage engine is out of scope; FakeEngine
// and BadgerEngine both adapt an already-existing store's primitives
// onto this interface rather than reimplementing one.
package storage

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/dingodb/region-engine/internal/rerr"
)

// Iterator walks an engine's keys in ascending order, mirroring
// SstFileIterator's SeekToFirst/Next/Key/Value/Valid/Err shape.
type Iterator interface {
	SeekToFirst()
	Seek(key []byte)
	Next()
	Key() []byte
	Value() []byte
	Valid() bool
	Err() error
	Close() error
}

type writeOp struct {
	key    []byte
	value  []byte
	delete bool
}

// WriteBatch buffers a set of puts/deletes for a single atomic write,
// with a safe-point mark for partial rollback, mirroring
// raftstore.WriteBatch's SetSafePoint/RollbackToSafePoint pair.
type WriteBatch struct {
	ops       []writeOp
	safePoint int
}

func NewWriteBatch() *WriteBatch { return &WriteBatch{} }

func (wb *WriteBatch) Set(key, value []byte) {
	wb.ops = append(wb.ops, writeOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (wb *WriteBatch) Delete(key []byte) {
	wb.ops = append(wb.ops, writeOp{key: append([]byte(nil), key...), delete: true})
}

func (wb *WriteBatch) Len() int { return len(wb.ops) }

func (wb *WriteBatch) SetSafePoint() { wb.safePoint = len(wb.ops) }

func (wb *WriteBatch) RollbackToSafePoint() { wb.ops = wb.ops[:wb.safePoint] }

func (wb *WriteBatch) Reset() {
	wb.ops = wb.ops[:0]
	wb.safePoint = 0
}

// delRangeBatchSize bounds how many keys BatchDeleteRange deletes per
// underlying write, matching disksing-faketikv/raftstore/engine.go's
// delRangeBatchSize constant.
const delRangeBatchSize = 4096

// CheckpointFile describes one artifact Checkpoint produced: its path
// on disk and, where the engine can report it, the half-open key
// range [StartKey, EndKey) it covers. Level -1 marks a file whose
// range cannot be narrowed after the fact (e.g. an opaque whole-engine
// backup stream) — raftsnap.FilterSstFile always keeps these.
type CheckpointFile struct {
	Level    int32
	Path     string
	StartKey []byte
	EndKey   []byte
}

// Engine is the opaque key-value collaborator region components read
// and write through: a point/range read path, atomic batched writes,
// a delete-range helper, and the raft snapshot primitives (Checkpoint
// / MergeCheckpointRange / IngestExternalFile).
type Engine interface {
	Get(key []byte) ([]byte, error)
	NewIterator() Iterator
	Write(wb *WriteBatch) error
	BatchDeleteRange(startKey, endKey []byte) error

	// Checkpoint materializes a point-in-time, engine-specific
	// snapshot artifact under dir, suitable for a later
	// IngestExternalFile or MergeCheckpointRange call (by this engine
	// or a peer running the same engine implementation). It reports
	// the files it produced so a caller can filter them by range
	// before linking them into a snapshot.
	Checkpoint(dir string) ([]CheckpointFile, error)

	// MergeCheckpointRange reads the checkpoint artifacts at
	// checkpointFiles (as produced by Checkpoint) and writes the
	// subset of records falling in [startKey, endKey) to w in the
	// generic WriteRecord format, returning the record count. This is
	// how a checkpoint snapshot's whole-engine (or whole-backup)
	// content gets narrowed to one region's physics range at load
	// time, since the checkpoint's own native format may not be
	// range-filterable in place.
	MergeCheckpointRange(checkpointFiles []string, startKey, endKey []byte, w io.Writer) (int, error)

	// IngestExternalFile merges the artifacts at the given paths
	// (each produced by Checkpoint) into the engine's live data.
	IngestExternalFile(paths []string) error

	Close() error
}

var ErrKeyNotFound = rerr.New(rerr.Internal, "key not found")

// WriteRecord appends one uvarint-length-prefixed (key, value) record
// to w. This is the generic, engine-agnostic on-disk record format
// ExportRange/ImportRecords use for the scan-based snapshot strategy,
// distinct from whatever native format a given Engine's
// Checkpoint/IngestExternalFile pair uses for the checkpoint
// strategy.
func WriteRecord(w io.Writer, key, value []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(key)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	n = binary.PutUvarint(lenBuf[:], uint64(len(value)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

// ReadRecord reads one record written by WriteRecord, returning
// io.EOF once r is exhausted between records.
func ReadRecord(r io.ByteReader) (key, value []byte, err error) {
	klen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, nil, err
	}
	key, err = readN(r, int(klen))
	if err != nil {
		return nil, nil, err
	}
	vlen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, nil, err
	}
	value, err = readN(r, int(vlen))
	if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

func readN(r io.ByteReader, n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// ExportRange scans eng's keys in [startKey, endKey) (endKey == nil
// means no upper bound) and writes them as WriteRecord entries to w.
// It returns the number of records written, so callers can tell an
// empty range apart from a write failure (on a zero count the raft
// snapshot scan strategy returns an error carrying the NoEntries code
// rather than an Internal failure).
func ExportRange(eng Engine, w io.Writer, startKey, endKey []byte) (int, error) {
	it := eng.NewIterator()
	defer it.Close()

	count := 0
	for it.Seek(startKey); it.Valid(); it.Next() {
		k := it.Key()
		if len(endKey) > 0 && bytes.Compare(k, endKey) >= 0 {
			break
		}
		if err := WriteRecord(w, k, it.Value()); err != nil {
			return count, rerr.Wrap(rerr.Internal, err, "write exported record")
		}
		count++
	}
	return count, it.Err()
}

// ImportRecords reads WriteRecord entries from r until EOF and
// applies them to eng as a single WriteBatch.
func ImportRecords(eng Engine, r io.Reader) error {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}
	wb := NewWriteBatch()
	for {
		key, value, err := ReadRecord(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return rerr.Wrap(rerr.Internal, err, "read imported record")
		}
		wb.Set(key, value)
	}
	return eng.Write(wb)
}

type byteReaderAdapter struct {
	r   io.Reader
	buf [1]byte
}

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	_, err := io.ReadFull(a.r, a.buf[:])
	return a.buf[0], err
}
