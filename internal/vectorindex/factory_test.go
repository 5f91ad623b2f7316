package vectorindex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/region-engine/internal/vectorindex"
	_ "github.com/dingodb/region-engine/internal/vectorindex/variants"
)

func TestBuildConstructsEachRegisteredVariant(t *testing.T) {
	for _, variant := range []vectorindex.Variant{vectorindex.VariantFlat, vectorindex.VariantIvfFlat, vectorindex.VariantHnsw} {
		idx, err := vectorindex.Build(vectorindex.Params{
			Variant:     variant,
			Dimension:   4,
			Metric:      vectorindex.MetricL2,
			Ncentroids:  2,
			MaxElements: 100,
		})
		require.NoError(t, err, "variant %s", variant)
		assert.Equal(t, 4, idx.Dimension())
	}
}

func TestBuildRejectsMissingDimension(t *testing.T) {
	_, err := vectorindex.Build(vectorindex.Params{Variant: vectorindex.VariantFlat, Metric: vectorindex.MetricL2})
	assert.Error(t, err)
}

func TestBuildRejectsMissingMetricType(t *testing.T) {
	_, err := vectorindex.Build(vectorindex.Params{Variant: vectorindex.VariantFlat, Dimension: 4})
	assert.Error(t, err)
}

func TestBuildRejectsUnknownVariant(t *testing.T) {
	_, err := vectorindex.Build(vectorindex.Params{Variant: "BOGUS", Dimension: 4, Metric: vectorindex.MetricL2})
	assert.Error(t, err)
}
