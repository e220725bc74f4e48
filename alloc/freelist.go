package alloc

import "github.com/joshuapare/mallockit/internal/format"

// freeListTable holds one singly linked list of free blocks per class.
// Links live in the block headers; the table keeps only heads and counts.
type freeListTable struct {
	heads  []uint32 // first free block per class, NoLink if empty
	counts []int    // list lengths
	order  ListOrder
}

func newFreeListTable(numClasses int, order ListOrder) freeListTable {
	l := freeListTable{
		heads:  make([]uint32, numClasses),
		counts: make([]int, numClasses),
		order:  order,
	}
	l.reset()
	return l
}

// reset empties every list.
func (l *freeListTable) reset() {
	for c := range l.heads {
		l.heads[c] = format.NoLink
		l.counts[c] = 0
	}
}

// push links the block at off into list c.
// OrderAddress walks to the insertion point, OrderLIFO inserts at the head.
func (l *freeListTable) push(b []byte, c, off int) {
	l.counts[c]++
	node := uint32(off)
	if l.order == OrderLIFO || l.heads[c] == format.NoLink || l.heads[c] > node {
		format.SetNextAt(b, off, l.heads[c])
		l.heads[c] = node
		return
	}
	prev := int(l.heads[c])
	for {
		next := format.NextAt(b, prev)
		if next == format.NoLink || next > node {
			format.SetNextAt(b, off, next)
			format.SetNextAt(b, prev, node)
			return
		}
		prev = int(next)
	}
}

// pop unlinks and returns the head of list c.
func (l *freeListTable) pop(b []byte, c int) (int, bool) {
	head := l.heads[c]
	if head == format.NoLink {
		return 0, false
	}
	l.heads[c] = format.NextAt(b, int(head))
	l.counts[c]--
	format.SetNextAt(b, int(head), format.NoLink)
	return int(head), true
}

// remove unlinks the block at off from list c.
// Returns false if the block is not in the list.
func (l *freeListTable) remove(b []byte, c, off int) bool {
	node := uint32(off)
	if l.heads[c] == node {
		l.pop(b, c)
		return true
	}
	for cur := l.heads[c]; cur != format.NoLink; {
		next := format.NextAt(b, int(cur))
		if next == node {
			format.SetNextAt(b, int(cur), format.NextAt(b, off))
			format.SetNextAt(b, off, format.NoLink)
			l.counts[c]--
			return true
		}
		cur = next
	}
	return false
}

// firstNonEmpty returns the smallest class >= from with a free block, or -1.
func (l *freeListTable) firstNonEmpty(from int) int {
	for c := from; c < len(l.heads); c++ {
		if l.heads[c] != format.NoLink {
			return c
		}
	}
	return -1
}

// len returns the length of list c.
func (l *freeListTable) len(c int) int {
	return l.counts[c]
}

// total returns the number of free blocks across all lists.
func (l *freeListTable) total() int {
	n := 0
	for _, cnt := range l.counts {
		n += cnt
	}
	return n
}
