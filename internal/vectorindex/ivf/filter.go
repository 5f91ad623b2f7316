package ivf

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// ListFilter restricts a search to a caller-supplied set of ids,
// backed by a roaring bitmap so a scan request (one list filter per
// point query, built fresh from the query's "only these ids" clause)
// stays cheap even over millions of candidate ids. Grounded on
// original_source's IvfFlatListFilterFunctor, which the same test
// suite's Search-with-filter cases build from a caller id list.
type ListFilter struct {
	allow *roaring.Bitmap
}

// NewListFilter builds a filter that accepts exactly the given ids.
func NewListFilter(ids []uint64) *ListFilter {
	bm := roaring.New()
	for _, id := range ids {
		bm.Add(uint32(id))
	}
	return &ListFilter{allow: bm}
}

// Check reports whether id is in the allowed set. IDs above the
// 32-bit range the bitmap indexes never match, since no region's
// vector ids are expected to exceed it.
func (f *ListFilter) Check(id uint64) bool {
	if id > 0xFFFFFFFF {
		return false
	}
	return f.allow.Contains(uint32(id))
}
