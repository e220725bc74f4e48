package alloc

import "github.com/joshuapare/mallockit/internal/format"

// split halves the in-use block at off from class `from` down to class `to`,
// keeping the prefix at off.
//
// Each halving carves a suffix one class smaller than the previous one:
//
//	from=3:  [ off (to=0) | s0 (0) | s1 (1) | s2 (2) ]
//
// Inner suffixes go straight into the free lists. The outermost suffix
// (s2 above) is returned marked free but unlisted, because its right
// neighbour may be a free block of the same class; callers pass it to
// release so it gets a chance to merge.
//
// The header of the block following the original extent gets its prevClass
// rewritten, and top moves to the outermost suffix if off was top.
func (ba *BucketAllocator) split(b []byte, off, from, to int) int {
	outer := noBlock
	for k := from; k > to; k-- {
		half := k - 1
		sz := ba.classes.blockSize(half)
		sfx := off + sz
		format.WriteHeader(b, sfx, format.Header{
			Class:     uint8(half),
			Free:      true,
			PrevClass: uint8(half),
			Next:      format.NoLink,
		})
		if end := sfx + sz; end < len(b) {
			format.SetPrevClassAt(b, end, uint8(half))
		}
		if outer == noBlock {
			outer = sfx
			if ba.top == off {
				ba.top = sfx
			}
		} else {
			ba.lists.push(b, half, sfx)
		}
		ba.stats.SplitCount++
	}
	format.SetClassAt(b, off, uint8(to))
	return outer
}

// release marks the block at off free, merges it with free neighbours and
// links the result into its class list.
func (ba *BucketAllocator) release(b []byte, off int) {
	format.SetFreeAt(b, off, true)
	off = ba.coalesce(b, off)
	ba.lists.push(b, int(format.ClassAt(b, off)), off)
}

// coalesce repeatedly merges the unlisted free block at off with an adjacent
// free block of the same class, trying the right neighbour first. Each merge
// produces one block of the next class at the lower address. Returns the
// offset of the final block, still unlisted.
//
// Blocks of the largest class never merge.
func (ba *BucketAllocator) coalesce(b []byte, off int) int {
	for {
		c := int(format.ClassAt(b, off))
		if c >= ba.classes.maxClass() {
			return off
		}
		sz := ba.classes.blockSize(c)

		if next := off + sz; next < len(b) &&
			format.FreeAt(b, next) && int(format.ClassAt(b, next)) == c {
			ba.lists.remove(b, c, next)
			ba.merge(b, off, next, c)
			ba.stats.CoalesceForward++
			continue
		}

		if int(format.PrevClassAt(b, off)) == c {
			prev := off - sz
			if prev >= ba.start && format.FreeAt(b, prev) {
				ba.lists.remove(b, c, prev)
				ba.merge(b, prev, off, c)
				ba.stats.CoalesceBackward++
				off = prev
				continue
			}
		}
		return off
	}
}

// merge fuses the adjacent class-c blocks at left and right into one block of
// class c+1 at left.
func (ba *BucketAllocator) merge(b []byte, left, right, c int) {
	format.SetClassAt(b, left, uint8(c+1))
	format.SetFreeAt(b, left, true)
	if succ := left + ba.classes.blockSize(c+1); succ < len(b) {
		format.SetPrevClassAt(b, succ, uint8(c+1))
	}
	if ba.top == right {
		ba.top = left
	}
	if ba.log != nil {
		ba.log.Debug("coalesce", "left", left, "right", right, "class", c+1)
	}
}
