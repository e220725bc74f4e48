package alloc

import (
	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/format"
)

// Compactor is a BucketAllocator that moves live blocks to avoid growing the
// arena.
//
// When a class-c request finds no free block of class c or larger, the
// Compactor looks for a free class c-1 block F whose neighbour N is a live
// class c-1 block. N is copied into another free class c-1 block, the owner is
// told through the RelocateFunc, and N is freed so it merges with F into a
// free class c block. Without a RelocateFunc the Compactor behaves exactly like
// a BucketAllocator.
//
// Pointers returned earlier stay valid only until the RelocateFunc reports
// them moved.
type Compactor struct {
	*BucketAllocator
	relocate RelocateFunc
}

// NewCompactor creates a Compactor over ar. Pass nil opts for DefaultOptions.
func NewCompactor(ar arena.Arena, opts *Options) (*Compactor, error) {
	ba, err := New(ar, opts)
	if err != nil {
		return nil, err
	}
	cp := &Compactor{BucketAllocator: ba}
	ba.beforeGrow = cp.evacuate
	return cp, nil
}

// SetRelocateFunc installs the callback consulted before each move.
func (cp *Compactor) SetRelocateFunc(fn RelocateFunc) {
	cp.relocate = fn
}

// evacuate tries to produce a free class c block by relocating one live
// class c-1 block. Reports whether the free lists changed.
func (cp *Compactor) evacuate(c int) bool {
	h := c - 1
	if cp.relocate == nil || h < 0 || cp.lists.len(h) < 2 {
		return false
	}
	b := cp.ar.Bytes()
	sz := cp.classes.blockSize(h)

	for f := cp.lists.heads[h]; f != format.NoLink; f = format.NextAt(b, int(f)) {
		off := int(f)
		if n := off + sz; cp.movable(b, n, h) {
			return cp.move(b, n, off, h)
		}
		if int(format.PrevClassAt(b, off)) == h {
			if n := off - sz; cp.movable(b, n, h) {
				return cp.move(b, n, off, h)
			}
		}
	}
	return false
}

// movable reports whether off holds a live class h block that may move.
func (cp *Compactor) movable(b []byte, off, h int) bool {
	return off >= cp.start && off < len(b) && off != cp.pinned &&
		!format.FreeAt(b, off) && int(format.ClassAt(b, off)) == h
}

// move relocates the live block n into a free class h block other than
// keep, then frees n.
func (cp *Compactor) move(b []byte, n, keep, h int) bool {
	dst := cp.lists.heads[h]
	if int(dst) == keep {
		dst = format.NextAt(b, keep)
	}
	if dst == format.NoLink {
		return false
	}
	to := int(dst)
	cp.lists.remove(b, h, to)
	format.SetFreeAt(b, to, false)

	if cp.relocate(payloadOf(n), payloadOf(to)) {
		capacity := cp.classes.capacity(h)
		src := n + format.HeaderSize
		copy(b[to+format.HeaderSize:to+format.HeaderSize+capacity], b[src:src+capacity])
		cp.stats.Relocations++
		if cp.log != nil {
			cp.log.Debug("relocate", "from", n, "to", to, "class", h)
		}
	} else {
		cp.release(b, to)
	}
	cp.release(b, n)
	return true
}

var (
	_ Allocator = (*Compactor)(nil)
	_ Relocator = (*Compactor)(nil)
)
