package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/format"
)

// testArenaLimit keeps test heaps small enough to exhaust deliberately.
const testArenaLimit = 1 << 22

// newTestAllocator returns a BucketAllocator over a fresh heap arena.
func newTestAllocator(t testing.TB, opts *Options) *BucketAllocator {
	t.Helper()
	ba, err := New(arena.NewHeap(testArenaLimit), opts)
	require.NoError(t, err)
	return ba
}

// blockInfo is one entry of a heap walk.
type blockInfo struct {
	off   int
	class int
	free  bool
}

// walkBlocks returns every block from start to high in address order.
func walkBlocks(t testing.TB, ba *BucketAllocator) []blockInfo {
	t.Helper()
	b := ba.ar.Bytes()
	var out []blockInfo
	for off := ba.start; off < len(b); {
		h, err := format.ReadHeader(b, off)
		require.NoError(t, err, "block at %d", off)
		out = append(out, blockInfo{off: off, class: int(h.Class), free: h.Free})
		off += ba.classes.blockSize(int(h.Class))
	}
	return out
}

// mustAlloc allocates size bytes and fails the test on error.
func mustAlloc(t testing.TB, a Allocator, size int) Ptr {
	t.Helper()
	p, err := a.Alloc(size)
	require.NoError(t, err, "Alloc(%d)", size)
	require.NotEqual(t, Null, p)
	return p
}

// fill writes a pattern derived from seed into n bytes at p.
func fill(b []byte, p Ptr, n int, seed byte) {
	for j := range n {
		b[int(p)+j] = seed + byte(j)
	}
}

// requirePattern verifies the pattern written by fill.
func requirePattern(t testing.TB, b []byte, p Ptr, n int, seed byte) {
	t.Helper()
	for j := range n {
		if b[int(p)+j] != seed+byte(j) {
			require.Failf(t, "payload corrupted", "ptr %v byte %d: got 0x%02X want 0x%02X",
				p, j, b[int(p)+j], seed+byte(j))
		}
	}
}

// classOfPtr returns the class recorded in the header of p's block.
func classOfPtr(ba *BucketAllocator, p Ptr) int {
	return int(format.ClassAt(ba.ar.Bytes(), int(p)-format.HeaderSize))
}
