package alloc

import (
	"fmt"

	"github.com/joshuapare/mallockit/internal/format"
)

// CheckError describes the first invariant violation found by Check.
type CheckError struct {
	Offset int    // block offset where the violation was detected, -1 if global
	Msg    string // what is wrong
	Err    error  // underlying decode error, if any
}

func (e *CheckError) Error() string {
	s := fmt.Sprintf("heap check failed at %d: %s", e.Offset, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap makes every CheckError match ErrCorrupt.
func (e *CheckError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCorrupt, e.Err}
	}
	return []error{ErrCorrupt}
}

func corrupt(off int, msg string, args ...any) error {
	return &CheckError{Offset: off, Msg: fmt.Sprintf(msg, args...)}
}

// Check walks every block from the first to the high-water mark and verifies:
//   - each header decodes, with a known class and a block that fits the heap
//   - each prevClass names the class of the block before it
//   - the walk ends exactly at the high-water mark
//   - top is the last block
//   - every free list holds only free blocks of its class, without cycles,
//     in ascending address order when OrderAddress is configured
//   - the listed blocks are exactly the blocks flagged free
//
// Check does not modify the heap.
func (ba *BucketAllocator) Check() error {
	b := ba.ar.Bytes()
	high := len(b)
	if ba.start > high {
		return corrupt(-1, "start %d beyond high %d", ba.start, high)
	}

	var (
		prevClass = uint8(format.NoClass)
		last      = noBlock
		free      = 0
	)
	for off := ba.start; off < high; {
		h, err := format.ReadHeader(b, off)
		if err != nil {
			return &CheckError{Offset: off, Msg: "bad header", Err: err}
		}
		if int(h.Class) >= ba.classes.numClasses {
			return corrupt(off, "class %d out of range", h.Class)
		}
		if h.PrevClass != prevClass {
			return corrupt(off, "prevClass %d, preceding block has class %d", h.PrevClass, prevClass)
		}
		size := ba.classes.blockSize(int(h.Class))
		if off+size > high {
			return corrupt(off, "class %d block overruns high %d", h.Class, high)
		}
		if h.Free {
			free++
		}
		prevClass = h.Class
		last = off
		off += size
	}
	if last != ba.top {
		return corrupt(last, "top is %d, last block is %d", ba.top, last)
	}

	listed := 0
	for c := range ba.classes.numClasses {
		n, err := ba.checkList(b, c, free)
		if err != nil {
			return err
		}
		if n != ba.lists.len(c) {
			return corrupt(-1, "class %d list holds %d blocks, count says %d", c, n, ba.lists.len(c))
		}
		listed += n
	}
	if listed != free {
		return corrupt(-1, "%d blocks flagged free, %d listed", free, listed)
	}
	return nil
}

// checkList walks free list c. limit bounds the walk so a cycle is reported
// instead of looping forever.
func (ba *BucketAllocator) checkList(b []byte, c, limit int) (int, error) {
	n := 0
	prev := -1
	for cur := ba.lists.heads[c]; cur != format.NoLink; {
		off := int(cur)
		if n >= limit {
			return 0, corrupt(off, "class %d list longer than %d free blocks (cycle?)", c, limit)
		}
		if off < ba.start || off+format.HeaderSize > len(b) {
			return 0, corrupt(off, "class %d list entry outside heap", c)
		}
		if !format.TaggedAt(b, off) {
			return 0, corrupt(off, "class %d list entry has no header", c)
		}
		if !format.FreeAt(b, off) {
			return 0, corrupt(off, "class %d list entry is in use", c)
		}
		if got := int(format.ClassAt(b, off)); got != c {
			return 0, corrupt(off, "class %d list entry has class %d", c, got)
		}
		if ba.opts.ListOrder == OrderAddress && off <= prev {
			return 0, corrupt(off, "class %d list out of address order after %d", c, prev)
		}
		prev = off
		n++
		cur = format.NextAt(b, off)
	}
	return n, nil
}
