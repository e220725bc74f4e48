package alloc

import (
	"fmt"

	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/format"
)

// bumpFreed marks a freed block in its size header. Freed blocks become dead
// space; the bit only lets Free detect double frees.
const bumpFreed = 1 << 63

// BumpAllocator is an append-only allocator. Every allocation grows the
// arena by an 8-byte size header plus the 8-aligned request. Free never
// reuses memory and Realloc always moves.
//
// Its main use is as a baseline: it has zero fragmentation bookkeeping and
// its utilization is the floor every other allocator should beat.
//
// NOT thread-safe.
type BumpAllocator struct {
	ar    arena.Arena
	start int
	stats Stats
}

// NewBump creates a BumpAllocator over ar and initializes it.
func NewBump(ar arena.Arena) (*BumpAllocator, error) {
	if ar.Limit() > maxArenaSize {
		return nil, fmt.Errorf("%w: arena limit %d exceeds %d", ErrBadOptions, ar.Limit(), maxArenaSize)
	}
	ba := &BumpAllocator{ar: ar}
	if err := ba.Init(); err != nil {
		return nil, err
	}
	return ba, nil
}

// Init aligns the arena high-water mark to a cache line and forgets every
// previous allocation.
func (ba *BumpAllocator) Init() error {
	ba.stats = Stats{}
	pad := format.Pad(ba.ar.High(), format.CacheLine)
	if _, err := ba.ar.Grow(pad); err != nil {
		return fmt.Errorf("%w: init padding %d: %w", ErrNoSpace, pad, err)
	}
	ba.start = ba.ar.High()
	return nil
}

// Alloc appends a block of at least size bytes.
func (ba *BumpAllocator) Alloc(size int) (Ptr, error) {
	ba.stats.AllocCalls++
	if size < 0 || size > ba.ar.Limit() {
		return Null, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	total := format.Align8(format.SizeHeaderSize + size)
	off, err := ba.ar.Grow(total)
	if err != nil {
		return Null, fmt.Errorf("%w: %d bytes: %w", ErrNoSpace, total, err)
	}
	ba.stats.AllocFromGrow++
	ba.stats.GrowCalls++
	ba.stats.GrowBytes += int64(total)

	format.PutU64(ba.ar.Bytes(), off, uint64(size))
	return Ptr(off + format.SizeHeaderSize), nil
}

// Free marks the block dead. The memory is never reused.
func (ba *BumpAllocator) Free(p Ptr) error {
	if p == Null {
		return nil
	}
	ba.stats.FreeCalls++
	off, raw, err := ba.blockOf(p)
	if err != nil {
		return err
	}
	if raw&bumpFreed != 0 {
		return fmt.Errorf("%w: %v", ErrDoubleFree, p)
	}
	format.PutU64(ba.ar.Bytes(), off, raw|bumpFreed)
	return nil
}

// Realloc allocates a new block, copies min(old, new) bytes and frees p.
func (ba *BumpAllocator) Realloc(p Ptr, size int) (Ptr, error) {
	ba.stats.ReallocCalls++
	if p == Null {
		return ba.Alloc(size)
	}
	_, raw, err := ba.blockOf(p)
	if err != nil {
		return Null, err
	}
	if raw&bumpFreed != 0 {
		return Null, fmt.Errorf("%w: %v is free", ErrBadPtr, p)
	}
	if size == 0 {
		return Null, ba.Free(p)
	}

	q, err := ba.Alloc(size)
	if err != nil {
		return Null, err
	}
	b := ba.ar.Bytes()
	n := min(int(raw), size)
	copy(b[int(q):int(q)+n], b[int(p):int(p)+n])
	ba.stats.ReallocMove++
	return q, ba.Free(p)
}

// Check walks the size headers from the first block and verifies the walk
// ends exactly at the high-water mark.
func (ba *BumpAllocator) Check() error {
	b := ba.ar.Bytes()
	off := ba.start
	for off < len(b) {
		if off+format.SizeHeaderSize > len(b) {
			return corrupt(off, "truncated size header")
		}
		size := format.ReadU64(b, off) &^ bumpFreed
		if size > uint64(len(b)) {
			return corrupt(off, "size %d overruns heap", size)
		}
		off += format.Align8(format.SizeHeaderSize + int(size))
	}
	if off != len(b) {
		return corrupt(off, "walk ended past high %d", len(b))
	}
	return nil
}

// UsableSize returns the requested size recorded for p, or 0.
func (ba *BumpAllocator) UsableSize(p Ptr) int {
	_, raw, err := ba.blockOf(p)
	if err != nil || raw&bumpFreed != 0 {
		return 0
	}
	return int(raw)
}

// Stats returns the allocator counters.
func (ba *BumpAllocator) Stats() Stats {
	return ba.stats
}

// blockOf returns the header offset and raw size word of the block holding p.
func (ba *BumpAllocator) blockOf(p Ptr) (int, uint64, error) {
	off := int(p) - format.SizeHeaderSize
	b := ba.ar.Bytes()
	if off < ba.start || off+format.SizeHeaderSize > len(b) || !format.IsAligned(off, format.Alignment) {
		return 0, 0, fmt.Errorf("%w: %v outside heap", ErrBadPtr, p)
	}
	raw := format.ReadU64(b, off)
	if size := raw &^ bumpFreed; size > uint64(len(b)-off-format.SizeHeaderSize) {
		return 0, 0, fmt.Errorf("%w: %v has size %d past high", ErrBadPtr, p, size)
	}
	return off, raw, nil
}

var _ Allocator = (*BumpAllocator)(nil)
