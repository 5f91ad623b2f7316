// Package vectorindex defines the common contract every vector index
// variant (FLAT, IVF_FLAT, HNSW) implements, grounded on
// original_source/src/vector/vector_index.h's VectorIndex base class:
// a read/write-locked upsert/delete/search surface plus the
// save/load/resize/rebuild hooks the raft apply path and the snapshot
// engine drive.
package vectorindex

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/dingodb/region-engine/internal/rerr"
)

// MetricType selects the distance function used for both centroid
// assignment (IVF_FLAT) and search ranking.
type MetricType int

const (
	// MetricNone is the zero value, matching proto's METRIC_TYPE_NONE:
	// an index parameter that never set a metric type, rejected by
	// Build rather than silently defaulting to L2.
	MetricNone MetricType = iota
	MetricL2
	MetricInnerProduct
	MetricCosine
)

func (m MetricType) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricInnerProduct:
		return "INNER_PRODUCT"
	case MetricCosine:
		return "COSINE"
	default:
		return "NONE"
	}
}

// Vector is one indexed float32 embedding, keyed by a caller-assigned
// id (the same id space as the region's vector-id-encoded key range).
type Vector struct {
	ID   uint64
	Data []float32
}

// WithDistance pairs a search hit's id with its distance/score and the
// original vector payload, mirroring VectorWithDistanceResult.
type WithDistance struct {
	ID       uint64
	Distance float32
	Vector   []float32
}

// Filter narrows which candidate ids a search is allowed to return,
// consulted once per candidate at scoring time so an index can reject
// a hit before it displaces a better one already on the result heap —
// mirroring FilterFunctor::Check.
type Filter interface {
	Check(id uint64) bool
}

// Index is the surface every vector index variant implements.
type Index interface {
	// Upsert inserts new ids and overwrites existing ones.
	Upsert(vectors []Vector) error
	// Add inserts vectors, failing per variant-specific rules (e.g.
	// IVF_FLAT requires Train to have run first).
	Add(vectors []Vector) error
	// Delete removes ids that exist; missing ids are silently ignored.
	Delete(ids []uint64) error
	// Search returns, for each query vector, up to topk hits ordered
	// nearest-first, each required to pass every filter.
	Search(queries []Vector, topk int, filters []Filter) ([][]WithDistance, error)

	// Train fits variant-specific structure (IVF_FLAT's centroids) from
	// sample vectors. A no-op for variants that don't need it.
	Train(samples []Vector) error

	Save(path string) error
	Load(path string) error

	Dimension() int
	Count() (uint64, error)
	DeletedCount() (uint64, error)

	// GetMemorySize estimates the index's resident memory footprint in
	// bytes, used for eviction/compaction accounting.
	GetMemorySize() (uint64, error)

	// IsTrained reports whether the index's variant-specific structure
	// (IVF_FLAT's centroids) is ready to accept Add. Variants with no
	// training step always report true.
	IsTrained() bool

	// NeedToRebuild reports whether enough deletes have accumulated
	// that a rebuild-from-live-data pass would pay for itself.
	NeedToRebuild() bool
	SupportSave() bool

	LockWrite()
	UnlockWrite()
}

var (
	ErrDimensionMismatch = rerr.New(rerr.VectorInvalid, "vector dimension mismatch")
	ErrEmptyVector       = rerr.New(rerr.VectorInvalid, "vector data is empty")
	ErrNotTrained        = rerr.New(rerr.VectorInvalid, "index must be trained before Add")
)

// ValidateDimension fails VectorInvalid if any vector in vectors is
// empty or does not match dim, mirroring the dimension check every
// C++ variant's Add/Upsert/Search performs up front.
func ValidateDimension(vectors []Vector, dim int) error {
	for _, v := range vectors {
		if len(v.Data) == 0 {
			return ErrEmptyVector
		}
		if len(v.Data) != dim {
			return ErrDimensionMismatch
		}
	}
	return nil
}

// SidecarFileName is the small fixed-layout header every variant's
// Save writes alongside its own data files, recording enough about
// the index that a later Load can reject a mismatched target before
// it ever touches the variant-specific files.
const SidecarFileName = "index.sidecar"

// Sidecar is the on-disk header Save/Load round-trip: which variant
// produced the files, the vector dimension and live count at save
// time, and the variant-specific construction params (Ncentroids for
// IVF_FLAT, MaxElements for HNSW; zero and ignored otherwise).
type Sidecar struct {
	Variant     Variant
	Dimension   int
	Count       int
	Ncentroids  int
	MaxElements uint64
}

// WriteSidecar writes s to dir/index.sidecar.
func WriteSidecar(dir string, s Sidecar) error {
	f, err := os.Create(filepath.Join(dir, SidecarFileName))
	if err != nil {
		return rerr.Wrap(rerr.Internal, err, "create vector index sidecar file")
	}
	defer f.Close()

	if err := writeSidecarString(f, string(s.Variant)); err != nil {
		return rerr.Wrap(rerr.Internal, err, "write vector index sidecar variant")
	}
	for _, v := range []uint64{uint64(s.Dimension), uint64(s.Count), uint64(s.Ncentroids), s.MaxElements} {
		if err := writeSidecarUint64(f, v); err != nil {
			return rerr.Wrap(rerr.Internal, err, "write vector index sidecar field")
		}
	}
	return nil
}

// ReadSidecar reads a Sidecar previously written by WriteSidecar.
func ReadSidecar(dir string) (Sidecar, error) {
	f, err := os.Open(filepath.Join(dir, SidecarFileName))
	if err != nil {
		return Sidecar{}, rerr.Wrap(rerr.Internal, err, "open vector index sidecar file")
	}
	defer f.Close()

	variant, err := readSidecarString(f)
	if err != nil {
		return Sidecar{}, rerr.Wrap(rerr.Internal, err, "read vector index sidecar variant")
	}
	fields := make([]uint64, 4)
	for i := range fields {
		fields[i], err = readSidecarUint64(f)
		if err != nil {
			return Sidecar{}, rerr.Wrap(rerr.Internal, err, "read vector index sidecar field")
		}
	}
	return Sidecar{
		Variant:     Variant(variant),
		Dimension:   int(fields[0]),
		Count:       int(fields[1]),
		Ncentroids:  int(fields[2]),
		MaxElements: fields[3],
	}, nil
}

// ValidateLoad rejects an empty path up front, then reads and checks
// the sidecar at path against the variant/dimension of the index
// about to receive it, failing VectorInvalid on a mismatch the way
// every variant's Load must per the common Load contract.
func ValidateLoad(path string, wantVariant Variant, wantDimension int) (Sidecar, error) {
	if path == "" {
		return Sidecar{}, rerr.New(rerr.IllegalParameters, "vector index load path must not be empty")
	}
	s, err := ReadSidecar(path)
	if err != nil {
		return Sidecar{}, err
	}
	if s.Variant != wantVariant {
		return Sidecar{}, rerr.New(rerr.VectorInvalid, "vector index sidecar variant %q does not match %q", s.Variant, wantVariant)
	}
	if s.Dimension != wantDimension {
		return Sidecar{}, rerr.New(rerr.VectorInvalid, "vector index sidecar dimension %d does not match %d", s.Dimension, wantDimension)
	}
	return s, nil
}

func writeSidecarString(w io.Writer, s string) error {
	if err := writeSidecarUint64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readSidecarString(r io.Reader) (string, error) {
	n, err := readSidecarUint64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeSidecarUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readSidecarUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
