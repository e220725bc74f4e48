package alloc

import "fmt"

// Ptr addresses a payload as an offset from the start of the arena.
// Offset 0 never holds a payload, so the zero Ptr doubles as null.
type Ptr uint32

// Null is the pointer returned on failure and accepted as a no-op by Free.
const Null Ptr = 0

// maxArenaSize bounds arenas so every offset fits a Ptr and a free-list link.
const maxArenaSize = 1<<32 - 2

// String formats the pointer as a hex offset.
func (p Ptr) String() string {
	return fmt.Sprintf("0x%X", uint32(p))
}

// Allocator is the request interface shared by every allocator in this package.
//
// Implementations:
//   - BucketAllocator: size-class allocator with splitting and coalescing
//   - Compactor: BucketAllocator that relocates live blocks before growing
//   - BumpAllocator: append-only allocator with size headers
//   - FixedAllocator: fixed 64-byte blocks with a LIFO free list
type Allocator interface {
	// Init resets all allocator state and aligns the arena high-water mark.
	// It may be called any number of times.
	Init() error

	// Alloc returns a payload of at least size bytes aligned to 8.
	Alloc(size int) (Ptr, error)

	// Free releases p. Freeing Null is a no-op.
	Free(p Ptr) error

	// Realloc resizes p, preserving the first min(old, new) payload bytes.
	// On failure p is left untouched.
	Realloc(p Ptr, size int) (Ptr, error)

	// Check walks the heap and verifies its structural invariants.
	Check() error
}

// RelocateFunc is invoked before a live block is physically moved from old to
// new. It returns false when the object at old is already dead, in which case
// nothing is copied.
type RelocateFunc func(old, new Ptr) bool

// Relocator is implemented by allocators that may move live blocks.
type Relocator interface {
	SetRelocateFunc(fn RelocateFunc)
}

// Stats holds allocator counters. They are reset by Init.
type Stats struct {
	AllocCalls     int // Total Alloc() calls
	AllocFromList  int // Satisfied by an exact-class free block
	AllocFromSplit int // Satisfied by splitting a larger free block
	AllocFromGrow  int // Satisfied by growing the arena

	FreeCalls int // Total Free() calls

	ReallocCalls   int // Total Realloc() calls
	ReallocInPlace int // Fit without any change
	ReallocShrink  int // Shrunk in place, remainder split off
	ReallocGrowTop int // Grew the top block in place
	ReallocMove    int // Allocate, copy, free

	SplitCount       int // Halvings performed by the splitter
	CoalesceForward  int // Merges with the following block
	CoalesceBackward int // Merges with the preceding block
	Relocations      int // Live blocks moved by a Compactor

	GrowCalls int   // Arena growth calls (excluding init padding)
	GrowBytes int64 // Bytes added by those calls
}
