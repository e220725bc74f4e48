package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/format"
)

// noBlock marks the absence of a top block.
const noBlock = -1

// BucketAllocator is a size-class allocator over an arena.
//
// Every block is a power-of-two multiple of the minimum block size and starts
// with an 8-byte header recording its class, its free flag and the class of the
// block before it. Free blocks sit in one address-ordered list per class.
// Allocation prefers an exact-class free block, then splits the smallest larger
// free block, then grows the arena. Freeing merges a block with free
// neighbours of the same class, repeatedly, before listing it.
//
// NOT thread-safe: callers must serialize access.
type BucketAllocator struct {
	ar      arena.Arena
	opts    Options
	classes *sizeClassTable
	lists   freeListTable

	// start is the offset of the first block, fixed by Init.
	start int

	// top is the offset of the block ending at the arena high-water mark.
	top int

	// pinned is a block that must not be relocated (the source of an
	// in-flight Realloc), noBlock otherwise.
	pinned int

	stats Stats
	log   *slog.Logger

	// beforeGrow is consulted when no free block can satisfy class c.
	// Returning true asks Alloc to retry the free lists before growing.
	beforeGrow func(c int) bool
}

// New creates a BucketAllocator over ar and initializes it.
// Pass nil opts for DefaultOptions.
func New(ar arena.Arena, opts *Options) (*BucketAllocator, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if ar.Limit() > maxArenaSize {
		return nil, fmt.Errorf("%w: arena limit %d exceeds %d", ErrBadOptions, ar.Limit(), maxArenaSize)
	}

	ba := &BucketAllocator{
		ar:      ar,
		opts:    *opts,
		classes: newSizeClassTable(opts.MinBlockShift, opts.NumClasses),
		lists:   newFreeListTable(opts.NumClasses, opts.ListOrder),
		top:     noBlock,
		pinned:  noBlock,
		log:     opts.Logger,
	}
	if ba.log == nil && logAlloc {
		ba.log = stderrLogger()
	}
	if err := ba.Init(); err != nil {
		return nil, err
	}
	return ba, nil
}

// Init resets the allocator and pads the arena high-water mark to the cache
// alignment. Blocks handed out before Init must not be used afterwards.
// Init is idempotent: calling it twice in a row leaves the same state.
func (ba *BucketAllocator) Init() error {
	ba.lists.reset()
	ba.top = noBlock
	ba.pinned = noBlock
	ba.stats = Stats{}

	pad := format.Pad(ba.ar.High(), ba.opts.CacheAlign)
	if _, err := ba.ar.Grow(pad); err != nil {
		return fmt.Errorf("%w: init padding %d: %w", ErrNoSpace, pad, err)
	}
	ba.start = ba.ar.High()

	if ba.log != nil {
		ba.log.Debug("init", "start", ba.start, "classes", ba.classes.String())
	}
	return nil
}

// Alloc returns a payload of at least size bytes. The payload is 8-byte
// aligned and lies inside the arena. Alloc(0) returns a minimum-class block.
//
// Returns ErrTooLarge for sizes beyond the largest class and ErrNoSpace when
// the arena cannot grow. In both cases the heap is unchanged.
func (ba *BucketAllocator) Alloc(size int) (Ptr, error) {
	ba.stats.AllocCalls++

	c, ok := ba.classes.classOf(size)
	if !ok {
		return Null, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, ba.classes.maxSize())
	}

	if off, ok := ba.takeFree(c); ok {
		return payloadOf(off), nil
	}
	if ba.beforeGrow != nil && ba.beforeGrow(c) {
		if off, ok := ba.takeFree(c); ok {
			return payloadOf(off), nil
		}
	}

	off, err := ba.growBlock(c)
	if err != nil {
		return Null, err
	}
	ba.stats.AllocFromGrow++
	return payloadOf(off), nil
}

// takeFree removes a free block of class c from the lists, splitting a larger
// one if needed, and marks it in use.
func (ba *BucketAllocator) takeFree(c int) (int, bool) {
	b := ba.ar.Bytes()
	if off, ok := ba.lists.pop(b, c); ok {
		format.SetFreeAt(b, off, false)
		ba.stats.AllocFromList++
		return off, true
	}

	k := ba.lists.firstNonEmpty(c + 1)
	if k < 0 {
		return 0, false
	}
	off, _ := ba.lists.pop(b, k)
	format.SetFreeAt(b, off, false)
	ba.release(b, ba.split(b, off, k, c))
	ba.stats.AllocFromSplit++

	if ba.log != nil {
		ba.log.Debug("split", "off", off, "from", k, "to", c)
	}
	return off, true
}

// growBlock appends a fresh in-use block of class c at the high-water mark.
func (ba *BucketAllocator) growBlock(c int) (int, error) {
	size := ba.classes.blockSize(c)
	off, err := ba.ar.Grow(size)
	if err != nil {
		if ba.log != nil {
			ba.log.Debug("grow failed", "class", c, "size", size, "high", ba.ar.High(), "err", err)
		}
		return 0, fmt.Errorf("%w: class %d (%d bytes): %w", ErrNoSpace, c, size, err)
	}
	ba.stats.GrowCalls++
	ba.stats.GrowBytes += int64(size)

	b := ba.ar.Bytes()
	prev := uint8(format.NoClass)
	if ba.top != noBlock {
		prev = format.ClassAt(b, ba.top)
	}
	format.WriteHeader(b, off, format.Header{
		Class:     uint8(c),
		PrevClass: prev,
		Next:      format.NoLink,
	})
	ba.top = off

	if ba.log != nil {
		ba.log.Debug("grow", "class", c, "off", off, "high", ba.ar.High())
	}
	return off, nil
}

// Free releases the block holding p, merging it with free neighbours.
//
// Free(Null) is a no-op. Returns ErrBadPtr for pointers that do not address a
// block payload and ErrDoubleFree for blocks already free.
func (ba *BucketAllocator) Free(p Ptr) error {
	if p == Null {
		return nil
	}
	ba.stats.FreeCalls++

	off, err := ba.blockOf(p)
	if err != nil {
		return err
	}
	b := ba.ar.Bytes()
	if format.FreeAt(b, off) {
		return fmt.Errorf("%w: %v", ErrDoubleFree, p)
	}
	ba.release(b, off)
	return nil
}

// Realloc resizes the block holding p to at least size bytes.
//
//   - Realloc(Null, n) behaves as Alloc(n).
//   - Realloc(p, 0) frees p and returns Null.
//   - A request that fits the current class keeps p. When it fits a smaller
//     class and ShrinkPolicy is ShrinkSplit, the tail is split off and freed.
//   - The top block grows in place by extending the arena.
//   - Otherwise a new block is allocated, min(capacity, size) bytes are
//     copied and the old block is freed.
//
// On error the original block is untouched.
func (ba *BucketAllocator) Realloc(p Ptr, size int) (Ptr, error) {
	ba.stats.ReallocCalls++
	if p == Null {
		return ba.Alloc(size)
	}

	off, err := ba.blockOf(p)
	if err != nil {
		return Null, err
	}
	b := ba.ar.Bytes()
	if format.FreeAt(b, off) {
		return Null, fmt.Errorf("%w: %v is free", ErrBadPtr, p)
	}
	if size == 0 {
		return Null, ba.Free(p)
	}

	c, ok := ba.classes.classOf(size)
	if !ok {
		return Null, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, ba.classes.maxSize())
	}
	k := int(format.ClassAt(b, off))

	switch {
	case c == k || (c < k && ba.opts.ShrinkPolicy == ShrinkKeep):
		ba.stats.ReallocInPlace++
		return p, nil

	case c < k:
		ba.release(b, ba.split(b, off, k, c))
		ba.stats.ReallocShrink++
		return p, nil

	case off == ba.top:
		delta := ba.classes.blockSize(c) - ba.classes.blockSize(k)
		if _, err := ba.ar.Grow(delta); err != nil {
			return Null, fmt.Errorf("%w: grow top by %d: %w", ErrNoSpace, delta, err)
		}
		ba.stats.GrowCalls++
		ba.stats.GrowBytes += int64(delta)
		format.SetClassAt(ba.ar.Bytes(), off, uint8(c))
		ba.stats.ReallocGrowTop++
		return p, nil
	}

	ba.pinned = off
	q, err := ba.Alloc(size)
	ba.pinned = noBlock
	if err != nil {
		return Null, err
	}

	b = ba.ar.Bytes()
	n := min(ba.classes.capacity(k), size)
	copy(b[int(q):int(q)+n], b[int(p):int(p)+n])
	ba.release(b, off)
	ba.stats.ReallocMove++
	return q, nil
}

// UsableSize returns the payload capacity of the live block holding p,
// or 0 if p does not address one.
func (ba *BucketAllocator) UsableSize(p Ptr) int {
	off, err := ba.blockOf(p)
	if err != nil {
		return 0
	}
	b := ba.ar.Bytes()
	if format.FreeAt(b, off) {
		return 0
	}
	return ba.classes.capacity(int(format.ClassAt(b, off)))
}

// Stats returns the allocator counters.
func (ba *BucketAllocator) Stats() Stats {
	return ba.stats
}

// Arena returns the arena the allocator carves blocks from.
func (ba *BucketAllocator) Arena() arena.Arena {
	return ba.ar
}

// MaxSize returns the largest request Alloc can serve.
func (ba *BucketAllocator) MaxSize() int {
	return ba.classes.maxSize()
}

// FreeBlocks returns the number of blocks in each class free list.
func (ba *BucketAllocator) FreeBlocks() []int {
	out := make([]int, len(ba.lists.counts))
	copy(out, ba.lists.counts)
	return out
}

// blockOf maps a payload pointer to its block offset, validating that the
// pointer lands on a block boundary inside the heap.
func (ba *BucketAllocator) blockOf(p Ptr) (int, error) {
	off := int(p) - format.HeaderSize
	high := ba.ar.High()
	if off < ba.start || off+format.HeaderSize > high {
		return 0, fmt.Errorf("%w: %v outside heap [%d, %d)", ErrBadPtr, p, ba.start, high)
	}
	if (off-ba.start)&(ba.classes.minBlock()-1) != 0 {
		return 0, fmt.Errorf("%w: %v not on a block boundary", ErrBadPtr, p)
	}
	b := ba.ar.Bytes()
	if !format.TaggedAt(b, off) {
		return 0, fmt.Errorf("%w: %v has no block header", ErrBadPtr, p)
	}
	c := int(format.ClassAt(b, off))
	if c >= ba.classes.numClasses || off+ba.classes.blockSize(c) > high {
		return 0, fmt.Errorf("%w: %v has invalid class %d", ErrBadPtr, p, c)
	}
	return off, nil
}

// payloadOf returns the payload pointer of the block at off.
func payloadOf(off int) Ptr {
	return Ptr(off + format.HeaderSize)
}

var _ Allocator = (*BucketAllocator)(nil)
