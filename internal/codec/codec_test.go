package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeVectorKey(t *testing.T) {
	key := EncodeVectorKey(1, 12345)
	id, ok := DecodeVectorID(key)
	assert.True(t, ok)
	assert.Equal(t, uint64(12345), id)

	_, ok = DecodeVectorID([]byte{0x02})
	assert.False(t, ok)
}

func TestKeyInRange(t *testing.T) {
	assert.True(t, KeyInRange([]byte("b"), []byte("a"), []byte("c")))
	assert.False(t, KeyInRange([]byte("c"), []byte("a"), []byte("c")))
	assert.True(t, KeyInRange([]byte("z"), []byte("a"), nil))
}

func TestPrefixNext(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x01}, PrefixNext([]byte{0x01, 0x00}))
	assert.Equal(t, []byte{0x02}, PrefixNext([]byte{0x01, 0xff}))
	assert.Equal(t, []byte{0xff, 0xff, 0x00}, PrefixNext([]byte{0xff, 0xff}))
}

func TestRangesOverlap(t *testing.T) {
	assert.True(t, RangesOverlap([]byte{0x00}, []byte{0x10}, []byte{0x03}, []byte{0x05}))
	assert.False(t, RangesOverlap([]byte{0x00}, []byte{0x03}, []byte{0x05}, []byte{0x10}))
	assert.True(t, RangesOverlap([]byte{0x00}, nil, []byte{0x05}, []byte{0x10}))
}
