package flat

import (
	"encoding/binary"
	"io"
	"math"
)

// writeRecord appends one (id, vector) pair as a fixed-layout record:
// an 8-byte id followed by len(v) little-endian float32s. The
// dimension is not stored per-record since Load already knows it from
// the index it's populating.
func writeRecord(w io.Writer, id uint64, v []float32) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], id)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	_, err := w.Write(buf)
	return err
}

func readRecord(r io.Reader, dimension int) (uint64, []float32, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	id := binary.LittleEndian.Uint64(hdr[:])

	buf := make([]byte, 4*dimension)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, err
	}
	v := make([]float32, dimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return id, v, nil
}
