package replay

import (
	"cmp"
	"slices"

	"github.com/joshuapare/mallockit/alloc"
)

// span is the payload extent [lo, hi) of one live block.
type span struct {
	lo, hi int
	id     int
}

// rangeIndex keeps live payload spans sorted by start address so overlap
// checks only look at the two neighbours of a new span.
type rangeIndex struct {
	spans []span
}

func (r *rangeIndex) reset() {
	r.spans = r.spans[:0]
}

func (r *rangeIndex) len() int {
	return len(r.spans)
}

func (r *rangeIndex) search(lo int) (int, bool) {
	return slices.BinarySearchFunc(r.spans, lo, func(s span, lo int) int {
		return cmp.Compare(s.lo, lo)
	})
}

// insert adds s unless it overlaps a live span, in which case the clashing
// span is returned.
func (r *rangeIndex) insert(s span) (span, bool) {
	i, found := r.search(s.lo)
	if found {
		return r.spans[i], false
	}
	if i > 0 && r.spans[i-1].hi > s.lo {
		return r.spans[i-1], false
	}
	if i < len(r.spans) && s.hi > r.spans[i].lo {
		return r.spans[i], false
	}
	r.spans = slices.Insert(r.spans, i, s)
	return span{}, true
}

// remove deletes the span starting at p and returns it.
func (r *rangeIndex) remove(p alloc.Ptr) (span, bool) {
	i, found := r.search(int(p))
	if !found {
		return span{}, false
	}
	s := r.spans[i]
	r.spans = slices.Delete(r.spans, i, i+1)
	return s, true
}

// lookup returns the span starting at p.
func (r *rangeIndex) lookup(p alloc.Ptr) (span, bool) {
	i, found := r.search(int(p))
	if !found {
		return span{}, false
	}
	return r.spans[i], true
}
