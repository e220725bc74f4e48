package alloc

import (
	"fmt"

	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/format"
)

// FixedBlockSize is the size of every FixedAllocator block.
const FixedBlockSize = 64

// FixedAllocator hands out headerless 64-byte blocks from a LIFO free list,
// growing the arena one block at a time. Requests larger than a block fail
// with ErrTooLarge. The free-list link lives in the first four bytes of a
// free block.
//
// NOT thread-safe.
type FixedAllocator struct {
	ar    arena.Arena
	start int
	head  uint32 // first free block, NoLink if none
	nfree int
	stats Stats
}

// NewFixed creates a FixedAllocator over ar and initializes it.
func NewFixed(ar arena.Arena) (*FixedAllocator, error) {
	if ar.Limit() > maxArenaSize {
		return nil, fmt.Errorf("%w: arena limit %d exceeds %d", ErrBadOptions, ar.Limit(), maxArenaSize)
	}
	fa := &FixedAllocator{ar: ar}
	if err := fa.Init(); err != nil {
		return nil, err
	}
	return fa, nil
}

// Init cache-aligns the high-water mark and empties the free list.
// Offset 0 is skipped so no block payload is ever Null.
func (fa *FixedAllocator) Init() error {
	fa.head = format.NoLink
	fa.nfree = 0
	fa.stats = Stats{}

	high := fa.ar.High()
	pad := format.Pad(high, format.CacheLine)
	if high+pad == 0 {
		pad = format.CacheLine
	}
	if _, err := fa.ar.Grow(pad); err != nil {
		return fmt.Errorf("%w: init padding %d: %w", ErrNoSpace, pad, err)
	}
	fa.start = fa.ar.High()
	return nil
}

// Alloc returns a 64-byte block for any size up to FixedBlockSize.
func (fa *FixedAllocator) Alloc(size int) (Ptr, error) {
	fa.stats.AllocCalls++
	if size < 0 || size > FixedBlockSize {
		return Null, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, FixedBlockSize)
	}
	if fa.head != format.NoLink {
		off := int(fa.head)
		fa.head = format.ReadU32(fa.ar.Bytes(), off)
		fa.nfree--
		fa.stats.AllocFromList++
		return Ptr(off), nil
	}
	off, err := fa.ar.Grow(FixedBlockSize)
	if err != nil {
		return Null, fmt.Errorf("%w: %w", ErrNoSpace, err)
	}
	fa.stats.AllocFromGrow++
	fa.stats.GrowCalls++
	fa.stats.GrowBytes += FixedBlockSize
	return Ptr(off), nil
}

// Free pushes the block onto the free list. Double frees are not detected.
func (fa *FixedAllocator) Free(p Ptr) error {
	if p == Null {
		return nil
	}
	fa.stats.FreeCalls++
	if err := fa.validate(p); err != nil {
		return err
	}
	format.PutU32(fa.ar.Bytes(), int(p), fa.head)
	fa.head = uint32(p)
	fa.nfree++
	return nil
}

// Realloc keeps p for any size that still fits a block.
func (fa *FixedAllocator) Realloc(p Ptr, size int) (Ptr, error) {
	fa.stats.ReallocCalls++
	if p == Null {
		return fa.Alloc(size)
	}
	if err := fa.validate(p); err != nil {
		return Null, err
	}
	if size == 0 {
		return Null, fa.Free(p)
	}
	if size < 0 || size > FixedBlockSize {
		return Null, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, FixedBlockSize)
	}
	fa.stats.ReallocInPlace++
	return p, nil
}

// Check verifies the heap is a whole number of blocks and the free list stays
// inside it without cycles.
func (fa *FixedAllocator) Check() error {
	span := fa.ar.High() - fa.start
	if span < 0 || span%FixedBlockSize != 0 {
		return corrupt(fa.start, "heap span %d is not a multiple of %d", span, FixedBlockSize)
	}
	blocks := span / FixedBlockSize
	n := 0
	b := fa.ar.Bytes()
	for cur := fa.head; cur != format.NoLink; cur = format.ReadU32(b, int(cur)) {
		if n >= blocks {
			return corrupt(int(cur), "free list longer than %d blocks (cycle?)", blocks)
		}
		if err := fa.validate(Ptr(cur)); err != nil {
			return &CheckError{Offset: int(cur), Msg: "bad free list entry", Err: err}
		}
		n++
	}
	if n != fa.nfree {
		return corrupt(-1, "free list holds %d blocks, count says %d", n, fa.nfree)
	}
	return nil
}

// UsableSize returns FixedBlockSize for any valid block pointer.
func (fa *FixedAllocator) UsableSize(p Ptr) int {
	if fa.validate(p) != nil {
		return 0
	}
	return FixedBlockSize
}

// Stats returns the allocator counters.
func (fa *FixedAllocator) Stats() Stats {
	return fa.stats
}

func (fa *FixedAllocator) validate(p Ptr) error {
	off := int(p)
	if off < fa.start || off+FixedBlockSize > fa.ar.High() || (off-fa.start)%FixedBlockSize != 0 {
		return fmt.Errorf("%w: %v", ErrBadPtr, p)
	}
	return nil
}

var _ Allocator = (*FixedAllocator)(nil)
