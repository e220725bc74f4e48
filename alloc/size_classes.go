package alloc

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/mallockit/internal/format"
)

// sizeClassTable maps request sizes to power-of-two block classes.
//
// Class c holds blocks of minBlock<<c bytes, header included, so the usable
// capacity of class c is (minBlock<<c) - HeaderSize.
type sizeClassTable struct {
	minShift   uint
	numClasses int
}

// newSizeClassTable builds the table for validated options.
func newSizeClassTable(minShift, numClasses int) *sizeClassTable {
	return &sizeClassTable{
		minShift:   uint(minShift),
		numClasses: numClasses,
	}
}

// blockSize returns the total block size of class c.
func (t *sizeClassTable) blockSize(c int) int {
	return 1 << (t.minShift + uint(c))
}

// capacity returns the usable payload bytes of class c.
func (t *sizeClassTable) capacity(c int) int {
	return t.blockSize(c) - format.HeaderSize
}

// minBlock returns the block size of class 0.
func (t *sizeClassTable) minBlock() int {
	return 1 << t.minShift
}

// maxClass returns the largest class index.
func (t *sizeClassTable) maxClass() int {
	return t.numClasses - 1
}

// maxSize returns the largest request the table can serve.
func (t *sizeClassTable) maxSize() int {
	return t.capacity(t.maxClass())
}

// classOf returns the smallest class whose capacity holds size bytes.
// The second result is false when size is negative or exceeds maxSize.
//
// Computed in O(1): q = ceil((size+HeaderSize)/minBlock) minimum blocks,
// class = bit length of q-1.
//
// Example (minBlock 32):
//
//	classOf(1)  = 0  (32-byte block)
//	classOf(24) = 0
//	classOf(25) = 1  (64-byte block)
//	classOf(57) = 2  (128-byte block)
func (t *sizeClassTable) classOf(size int) (int, bool) {
	if size < 0 || size > t.maxSize() {
		return 0, false
	}
	q := (size + format.HeaderSize + t.minBlock() - 1) >> t.minShift
	return bits.Len(uint(q - 1)), true
}

// String describes the table.
func (t *sizeClassTable) String() string {
	return fmt.Sprintf("%d classes, %d..%d byte blocks",
		t.numClasses, t.blockSize(0), t.blockSize(t.maxClass()))
}

// ClassInfo describes one size class.
type ClassInfo struct {
	Class     int // Class index
	BlockSize int // Total block size, header included
	Capacity  int // Usable payload bytes
}

// Classes returns the size class table for opts (DefaultOptions if nil).
func Classes(opts *Options) ([]ClassInfo, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	t := newSizeClassTable(opts.MinBlockShift, opts.NumClasses)
	out := make([]ClassInfo, t.numClasses)
	for c := range out {
		out[c] = ClassInfo{Class: c, BlockSize: t.blockSize(c), Capacity: t.capacity(c)}
	}
	return out, nil
}
