// Package raftsnap implements C4: generating and loading the raft
// snapshot a region transfers to a lagging or new peer, grounded on
// original_source/src/handler/raft_snapshot_handler.cc.
package raftsnap

import (
	"encoding/binary"
	"io"

	"github.com/dingodb/region-engine/internal/codec"
	"github.com/dingodb/region-engine/internal/region"
	"github.com/dingodb/region-engine/internal/rerr"
)

// RegionMetaFileName is the snapshot file carrying the region's epoch
// and range at snapshot-generation time, read back on load to decide
// whether the receiving region's range/epoch needs to advance.
const RegionMetaFileName = "region_meta"

// SstFileInfo describes one data file bundled into a snapshot.
// Level -1 marks a file as exempt from FilterSstFile's range check —
// used for a whole-engine checkpoint artifact that can't be
// range-filtered after the fact.
type SstFileInfo struct {
	Level    int32
	Name     string
	Path     string
	StartKey []byte
	EndKey   []byte
}

// FilterSstFile keeps files whose range overlaps at least one of
// ranges, or that are marked Level -1 (always kept), mirroring
// raft_snapshot_handler.cc's free FilterSstFile function.
func FilterSstFile(files []SstFileInfo, ranges []region.Range) []SstFileInfo {
	kept := make([]SstFileInfo, 0, len(files))
	for _, f := range files {
		if f.Level == -1 {
			kept = append(kept, f)
			continue
		}
		for _, rg := range ranges {
			if codec.RangesOverlap(f.StartKey, f.EndKey, rg.StartKey, rg.EndKey) {
				kept = append(kept, f)
				break
			}
		}
	}
	return kept
}

// RegionMeta is the on-disk record of a region's epoch and range at
// the moment a snapshot was generated.
type RegionMeta struct {
	Epoch region.Epoch
	Range region.Range
}

// Encode writes m in a compact, self-delimiting binary form: two
// big-endian uint64s for the epoch, then uvarint-length-prefixed
// start/end keys.
func (m RegionMeta) Encode(w io.Writer) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], m.Epoch.ConfVersion)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(buf[:], m.Epoch.Version)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if err := writeBytes(w, m.Range.StartKey); err != nil {
		return err
	}
	return writeBytes(w, m.Range.EndKey)
}

// DecodeRegionMeta reads a RegionMeta written by Encode.
func DecodeRegionMeta(r io.Reader) (RegionMeta, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}

	var m RegionMeta
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return m, rerr.Wrap(rerr.Internal, err, "read region meta conf_version")
	}
	m.Epoch.ConfVersion = binary.BigEndian.Uint64(buf[:])
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return m, rerr.Wrap(rerr.Internal, err, "read region meta version")
	}
	m.Epoch.Version = binary.BigEndian.Uint64(buf[:])

	start, err := readBytes(br)
	if err != nil {
		return m, rerr.Wrap(rerr.Internal, err, "read region meta start key")
	}
	m.Range.StartKey = start

	end, err := readBytes(br)
	if err != nil {
		return m, rerr.Wrap(rerr.Internal, err, "read region meta end key")
	}
	m.Range.EndKey = end

	return m, nil
}

func writeBytes(w io.Writer, b []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.ByteReader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

type byteReaderAdapter struct {
	r   io.Reader
	buf [1]byte
}

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	_, err := io.ReadFull(a.r, a.buf[:])
	return a.buf[0], err
}
