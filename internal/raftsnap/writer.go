package raftsnap

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dingodb/region-engine/internal/rerr"
)

// Writer collects the files that make up one generated snapshot into
// a directory, hard-linking data files in place of copying them —
// mirroring raft_snapshot_handler.cc's use of link() to attach sst
// files to the snapshot directory without duplicating their bytes.
type Writer struct {
	dir string
}

// NewWriter prepares dir (creating it if absent) to receive a
// snapshot's files.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rerr.Wrap(rerr.Internal, err, "create snapshot directory")
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Dir() string { return w.dir }

// LinkFile hard-links src into the snapshot directory under name,
// falling back to a copy if the link fails (e.g. src and the
// snapshot directory are on different filesystems).
func (w *Writer) LinkFile(name, src string) (string, error) {
	dst := filepath.Join(w.dir, name)
	if err := os.Link(src, dst); err != nil {
		if err := copyFile(src, dst); err != nil {
			return "", rerr.Wrap(rerr.Internal, err, "attach snapshot file "+name)
		}
	}
	return dst, nil
}

// WriteFile writes data to name under the snapshot directory.
func (w *Writer) WriteFile(name string, data []byte) (string, error) {
	dst := filepath.Join(w.dir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", rerr.Wrap(rerr.Internal, err, "write snapshot file "+name)
	}
	return dst, nil
}

// Create opens name under the snapshot directory for writing.
func (w *Writer) Create(name string) (*os.File, string, error) {
	dst := filepath.Join(w.dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return nil, "", rerr.Wrap(rerr.Internal, err, "create snapshot file "+name)
	}
	return f, dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	buf := make([]byte, 32*1024)
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// Reader lists and opens the files a Writer previously produced.
type Reader struct {
	dir string
}

func NewReader(dir string) *Reader { return &Reader{dir: dir} }

func (r *Reader) Dir() string { return r.dir }

func (r *Reader) Path(name string) string { return filepath.Join(r.dir, name) }

// HasCurrentMarker reports whether the snapshot directory carries a
// CURRENT file, the signal left by a checkpoint-strategy snapshot
// (mirroring rocksdb's own CURRENT file) as opposed to a scan-strategy
// one.
func (r *Reader) HasCurrentMarker() bool {
	_, err := os.Stat(filepath.Join(r.dir, currentMarkerName))
	return err == nil
}

// ListDataFiles returns every file in the snapshot directory except
// the region meta record and the CURRENT marker.
func (r *Reader) ListDataFiles() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, err, "list snapshot directory")
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch e.Name() {
		case RegionMetaFileName, currentMarkerName:
			continue
		}
		out = append(out, filepath.Join(r.dir, e.Name()))
	}
	return out, nil
}
