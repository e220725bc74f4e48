package arena

import "fmt"

// minHeapCap is the initial backing capacity of a Heap.
const minHeapCap = 64 << 10

// Heap is an Arena backed by an ordinary Go byte slice. Growing past the
// backing capacity moves the bytes, so offsets stay valid while slices
// obtained from Bytes do not.
//
// NOT thread-safe.
type Heap struct {
	data  []byte
	limit int
}

// NewHeap creates an empty Heap that refuses to grow beyond limit bytes.
// A non-positive limit selects DefaultMaxSize.
func NewHeap(limit int) *Heap {
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	return &Heap{limit: limit}
}

// Grow implements Arena.
func (h *Heap) Grow(n int) (int, error) {
	if n < 0 {
		return 0, ErrNegativeGrow
	}
	old := len(h.data)
	if n > h.limit-old {
		return 0, fmt.Errorf("%w: high=%d grow=%d limit=%d", ErrExhausted, old, n, h.limit)
	}
	need := old + n
	if need > cap(h.data) {
		newCap := max(2*cap(h.data), need, minHeapCap)
		newCap = min(newCap, h.limit)
		grown := make([]byte, need, newCap)
		copy(grown, h.data)
		h.data = grown
	} else {
		h.data = h.data[:need]
	}
	return old, nil
}

// Low implements Arena.
func (h *Heap) Low() int { return 0 }

// High implements Arena.
func (h *Heap) High() int { return len(h.data) }

// Limit implements Arena.
func (h *Heap) Limit() int { return h.limit }

// Bytes implements Arena.
func (h *Heap) Bytes() []byte { return h.data }

// Reset implements Arena. The backing storage is kept for reuse.
func (h *Heap) Reset() { h.data = h.data[:0] }

// Close implements Arena.
func (h *Heap) Close() error {
	h.data = nil
	return nil
}

var _ Arena = (*Heap)(nil)
