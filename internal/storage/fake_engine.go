package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dingodb/region-engine/internal/codec"
	"github.com/dingodb/region-engine/internal/rerr"
)

// FakeEngine is an in-memory Engine, the primary test double for
// raft snapshot and vector index code. Checkpoint/IngestExternalFile
// round-trip through a flat, length-prefixed key/value file rather
// than anything resembling a real SST — it exists to exercise the
// save/load contract, not to model rocksdb.
type FakeEngine struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{data: make(map[string][]byte)}
}

func (e *FakeEngine) Get(key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (e *FakeEngine) Write(wb *WriteBatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range wb.ops {
		if op.delete {
			delete(e.data, string(op.key))
		} else {
			e.data[string(op.key)] = op.value
		}
	}
	return nil
}

func (e *FakeEngine) BatchDeleteRange(startKey, endKey []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.data {
		kb := []byte(k)
		if bytes.Compare(kb, startKey) < 0 {
			continue
		}
		if len(endKey) > 0 && bytes.Compare(kb, endKey) >= 0 {
			continue
		}
		delete(e.data, k)
	}
	return nil
}

func (e *FakeEngine) NewIterator() Iterator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]string, 0, len(e.data))
	for k := range e.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snap := make([][2][]byte, len(keys))
	for i, k := range keys {
		snap[i] = [2][]byte{[]byte(k), append([]byte(nil), e.data[k]...)}
	}
	return &fakeIterator{entries: snap, pos: -1}
}

type fakeIterator struct {
	entries [][2][]byte
	pos     int
}

func (it *fakeIterator) SeekToFirst() { it.pos = 0 }

func (it *fakeIterator) Seek(key []byte) {
	it.pos = sort.Search(len(it.entries), func(i int) bool {
		return bytes.Compare(it.entries[i][0], key) >= 0
	})
}

func (it *fakeIterator) Next() {
	if it.pos < len(it.entries) {
		it.pos++
	}
}

func (it *fakeIterator) Key() []byte   { return it.entries[it.pos][0] }
func (it *fakeIterator) Value() []byte { return it.entries[it.pos][1] }
func (it *fakeIterator) Valid() bool   { return it.pos >= 0 && it.pos < len(it.entries) }
func (it *fakeIterator) Err() error    { return nil }
func (it *fakeIterator) Close() error  { return nil }

// checkpointChunkSize bounds how many sorted keys go into one
// checkpoint chunk file, so a checkpoint of a multi-region engine
// produces several range-tagged files rather than one opaque blob —
// the shape FilterSstFile needs to narrow a checkpoint down to one
// region's physics range.
const checkpointChunkSize = 4

// Checkpoint writes the engine's sorted key/value pairs to dir as a
// sequence of chunk files, each a flat run of uvarint-length-prefixed
// (key, value) records. Each chunk's StartKey/EndKey cover exactly the
// keys it contains, so FilterSstFile can keep only the chunks that
// overlap a given region's range.
func (e *FakeEngine) Checkpoint(dir string) ([]CheckpointFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rerr.Wrap(rerr.Internal, err, "create checkpoint directory")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]string, 0, len(e.data))
	for k := range e.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var files []CheckpointFile
	for i := 0; i < len(keys); i += checkpointChunkSize {
		end := i + checkpointChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]
		name := fmt.Sprintf("chunk_%05d.sst", len(files))
		path := filepath.Join(dir, name)

		f, err := os.Create(path)
		if err != nil {
			return nil, rerr.Wrap(rerr.Internal, err, "create checkpoint chunk file")
		}
		w := bufio.NewWriter(f)
		var writeErr error
		for _, k := range chunk {
			if writeErr = WriteRecord(w, []byte(k), e.data[k]); writeErr != nil {
				break
			}
		}
		if writeErr == nil {
			writeErr = w.Flush()
		}
		closeErr := f.Close()
		if writeErr != nil {
			return nil, rerr.Wrap(rerr.Internal, writeErr, "write checkpoint chunk file")
		}
		if closeErr != nil {
			return nil, rerr.Wrap(rerr.Internal, closeErr, "close checkpoint chunk file")
		}

		files = append(files, CheckpointFile{
			Path:     path,
			StartKey: []byte(chunk[0]),
			EndKey:   codec.PrefixNext([]byte(chunk[len(chunk)-1])),
		})
	}
	return files, nil
}

// MergeCheckpointRange reads the chunk files at checkpointFiles (each
// already in the generic WriteRecord format Checkpoint produces) and
// re-emits only the records falling in [startKey, endKey) to w.
func (e *FakeEngine) MergeCheckpointRange(checkpointFiles []string, startKey, endKey []byte, w io.Writer) (int, error) {
	count := 0
	for _, path := range checkpointFiles {
		n, err := mergeCheckpointFile(path, startKey, endKey, w)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

func mergeCheckpointFile(path string, startKey, endKey []byte, w io.Writer) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, rerr.Wrap(rerr.Internal, err, "open checkpoint file for merge")
	}
	defer f.Close()

	count := 0
	r := bufio.NewReader(f)
	for {
		key, value, err := ReadRecord(r)
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, rerr.Wrap(rerr.Internal, err, "read checkpoint record for merge")
		}
		if !codec.KeyInRange(key, startKey, endKey) {
			continue
		}
		if err := WriteRecord(w, key, value); err != nil {
			return count, rerr.Wrap(rerr.Internal, err, "write merged checkpoint record")
		}
		count++
	}
}

// IngestExternalFile merges records from files previously produced by
// Checkpoint (on this engine or a like one) into the live data set.
func (e *FakeEngine) IngestExternalFile(paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range paths {
		if err := e.ingestOne(p); err != nil {
			return err
		}
	}
	return nil
}

func (e *FakeEngine) ingestOne(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "open sst file for ingest")
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		key, value, err := ReadRecord(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return rerr.Wrap(rerr.Internal, err, "read sst record")
		}
		e.data[string(key)] = value
	}
}

func (e *FakeEngine) Close() error { return nil }
