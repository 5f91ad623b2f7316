package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dingodb/region-engine/internal/region"
	"github.com/dingodb/region-engine/internal/rerr"
)

func TestValidateKeyInRange(t *testing.T) {
	rg := region.Range{StartKey: []byte{0x01}, EndKey: []byte{0x03}}

	require.NoError(t, ValidateKeyInRange(rg, [][]byte{{0x01}}))
	require.NoError(t, ValidateKeyInRange(rg, [][]byte{{0x02}}))
	err := ValidateKeyInRange(rg, [][]byte{{0x03}})
	require.Error(t, err)
	assert.Equal(t, rerr.KeyOutOfRange, rerr.CodeOf(err))

	err = ValidateKeyInRange(rg, [][]byte{{0x00}})
	require.Error(t, err)
	assert.Equal(t, rerr.KeyOutOfRange, rerr.CodeOf(err))
}

func TestValidateRange(t *testing.T) {
	require.NoError(t, ValidateRange(region.Range{StartKey: []byte{0x01}, EndKey: []byte{0x02}}))

	err := ValidateRange(region.Range{})
	require.Error(t, err)
	assert.Equal(t, rerr.IllegalParameters, rerr.CodeOf(err))

	err = ValidateRange(region.Range{StartKey: []byte{0x02}, EndKey: []byte{0x01}})
	require.Error(t, err)
	assert.Equal(t, rerr.RangeInvalid, rerr.CodeOf(err))
}

func TestValidateRangeInRange(t *testing.T) {
	regionRange := region.Range{StartKey: []byte("a"), EndKey: []byte("b00")}
	// [a, b) contained within [a, b00) must be accepted.
	require.NoError(t, ValidateRangeInRange(regionRange, region.Range{StartKey: []byte("a"), EndKey: []byte("b")}))

	// A request range extending past the region's end must be rejected.
	err := ValidateRangeInRange(regionRange, region.Range{StartKey: []byte("a"), EndKey: []byte("d")})
	require.Error(t, err)
	assert.Equal(t, rerr.KeyOutOfRange, rerr.CodeOf(err))

	// A request range starting before the region's start must be rejected.
	err = ValidateRangeInRange(regionRange, region.Range{StartKey: []byte("0"), EndKey: []byte("b")})
	require.Error(t, err)
}

func TestValidateRegionEpoch(t *testing.T) {
	r := region.New(1)
	require.NoError(t, r.UpdateEpochVersion(5))

	require.NoError(t, ValidateRegionEpoch(region.Epoch{Version: 5}, r))

	err := ValidateRegionEpoch(region.Epoch{Version: 6}, r)
	require.Error(t, err)
	assert.Equal(t, rerr.RegionVersion, rerr.CodeOf(err))
}

func TestValidateClusterReadOnly(t *testing.T) {
	var flag ReadOnlyFlag
	require.NoError(t, ValidateClusterReadOnly(&flag))
	flag.Set(true)
	err := ValidateClusterReadOnly(&flag)
	require.Error(t, err)
	assert.Equal(t, rerr.ClusterReadOnly, rerr.CodeOf(err))
}
