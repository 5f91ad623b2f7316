// Package codec implements the range/key primitives used across the
// region engine: encoding a vector id into a data-column-family key,
// comparing half-open ranges, and hex-dumping key material for error
// messages. Grounded on disksing-faketikv/rocksdb's varint/key decode
// style and Yisaer-unistore/tikv/raftstore's EncStartKey/EncEndKey
// naming.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
)

// VectorIDPrefix tags a key as carrying an encoded vector id, so the
// vector-id column family can be distinguished from the plain data
// column family within one physics range.
const VectorIDPrefix = 0x01

// EncodeVectorKey builds the key a vector with the given id is stored
// under, scoped by regionID so distinct regions never collide.
func EncodeVectorKey(regionID uint64, vectorID uint64) []byte {
	buf := make([]byte, 1+8+8)
	buf[0] = VectorIDPrefix
	binary.BigEndian.PutUint64(buf[1:9], regionID)
	binary.BigEndian.PutUint64(buf[9:17], vectorID)
	return buf
}

// DecodeVectorID extracts the vector id from a key built by
// EncodeVectorKey. ok is false if key is not a well-formed vector key.
func DecodeVectorID(key []byte) (id uint64, ok bool) {
	if len(key) != 17 || key[0] != VectorIDPrefix {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[9:17]), true
}

// CompareRange orders two half-open ranges by start key, then end key,
// treating an empty end key as +infinity.
func CompareRange(aStart, aEnd, bStart, bEnd []byte) int {
	if c := bytes.Compare(aStart, bStart); c != 0 {
		return c
	}
	return compareEndKey(aEnd, bEnd)
}

func compareEndKey(a, b []byte) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return 1
	case len(b) == 0:
		return -1
	default:
		return bytes.Compare(a, b)
	}
}

// RangesOverlap reports whether half-open ranges [aStart,aEnd) and
// [bStart,bEnd) intersect. An empty end key means "no upper bound".
func RangesOverlap(aStart, aEnd, bStart, bEnd []byte) bool {
	if len(aEnd) != 0 && bytes.Compare(bStart, aEnd) >= 0 {
		return false
	}
	if len(bEnd) != 0 && bytes.Compare(aStart, bEnd) >= 0 {
		return false
	}
	return true
}

// KeyInRange reports whether key falls in the half-open range
// [start,end). An empty end means no upper bound.
func KeyInRange(key, start, end []byte) bool {
	if bytes.Compare(key, start) < 0 {
		return false
	}
	if len(end) != 0 && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

// PrefixNext returns the lexicographically smallest key strictly
// greater than every key sharing prefix key. It increments the last
// byte that isn't already 0xff, dropping any trailing 0xff bytes;
// an all-0xff input grows by one zero byte, matching the convention
// used for unbounded "no successor in the same length" prefixes.
func PrefixNext(key []byte) []byte {
	next := make([]byte, len(key))
	copy(next, key)
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] < 0xff {
			next[i]++
			return next[:i+1]
		}
	}
	// all bytes were 0xff
	return append(next, 0x00)
}

// ToHex renders key material as a hex string for error messages and
// logs, matching original_source's Helper::StringToHex convention.
func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}
