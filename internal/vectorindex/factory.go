package vectorindex

import "github.com/dingodb/region-engine/internal/rerr"

// Variant names the concrete index implementation a region's vector
// index parameter selects, mirroring pb.common.VectorIndexType.
type Variant string

const (
	VariantFlat    Variant = "FLAT"
	VariantIvfFlat Variant = "IVF_FLAT"
	VariantHnsw    Variant = "HNSW"
)

// Params carries the factory's construction inputs, mirroring the
// union of flat/ivf_flat/hnsw parameter messages VectorIndexFactory::New
// dispatches on.
type Params struct {
	Variant     Variant
	Dimension   int
	Metric      MetricType
	Ncentroids  int    // IVF_FLAT only; <= 0 resolves to nlist=1 at Train time.
	MaxElements uint64 // HNSW only.
}

// NewIndexFunc builds a concrete Index from Params, implemented by
// each variant subpackage's constructor; Build wires them together so
// callers only import this package rather than every variant.
type NewIndexFunc func(Params) Index

var constructors = make(map[Variant]NewIndexFunc)

// Register associates a variant name with its constructor. Variant
// subpackages call this from an init func so importing them for their
// side effect is enough to make Build recognize the variant, the same
// way database/sql drivers register themselves.
func Register(variant Variant, fn NewIndexFunc) {
	constructors[variant] = fn
}

// Build validates params and constructs the requested index variant,
// returning an error wherever VectorIndexFactory::New returns nullptr:
// a missing/zero dimension, a missing or NONE metric type, or an
// unregistered/unspecified variant.
func Build(params Params) (Index, error) {
	if params.Dimension <= 0 {
		return nil, rerr.New(rerr.VectorInvalid, "vector index dimension must be positive")
	}
	if params.Metric == MetricNone {
		return nil, rerr.New(rerr.VectorInvalid, "vector index metric type is required")
	}
	ctor, ok := constructors[params.Variant]
	if !ok {
		return nil, rerr.New(rerr.VectorInvalid, "unknown vector index variant %q", params.Variant)
	}
	return ctor(params), nil
}
