package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/format"
)

// Test_Bucket_ReuseThenMerge runs the canonical reuse/merge sequence:
// a freed block is reused before growing, and freeing both neighbours
// leaves one free block of the parent class.
func Test_Bucket_ReuseThenMerge(t *testing.T) {
	ba := newTestAllocator(t, nil)

	a := mustAlloc(t, ba, 40)
	b := mustAlloc(t, ba, 40)
	require.NoError(t, ba.Free(a))

	c := mustAlloc(t, ba, 40)
	assert.Equal(t, a, c, "freed block must be reused before growing")
	assert.Equal(t, 2, ba.Stats().GrowCalls)

	require.NoError(t, ba.Free(b))
	require.NoError(t, ba.Free(c))
	require.NoError(t, ba.Check())

	blocks := walkBlocks(t, ba)
	require.Len(t, blocks, 1)
	assert.Equal(t, blockInfo{off: ba.start, class: 2, free: true}, blocks[0])
	assert.Equal(t, ba.start, ba.top)
	assert.Equal(t, 1, ba.FreeBlocks()[2])
	assert.Equal(t, 1, ba.Stats().CoalesceForward)

	// Only the merged block can hold 100 bytes; serving it must not grow.
	high := ba.ar.High()
	d := mustAlloc(t, ba, 100)
	assert.Equal(t, Ptr(ba.start+format.HeaderSize), d)
	assert.Equal(t, high, ba.ar.High())
	assert.Equal(t, 2, ba.Stats().GrowCalls)
}

func Test_Bucket_AllocAlignmentAndContainment(t *testing.T) {
	ba := newTestAllocator(t, nil)
	for _, size := range []int{0, 1, 7, 8, 24, 25, 100, 1000, 4096, 65536} {
		p := mustAlloc(t, ba, size)
		assert.True(t, format.IsAligned(int(p), format.Alignment), "size %d ptr %v", size, p)
		assert.GreaterOrEqual(t, int(p), ba.start)
		assert.LessOrEqual(t, int(p)+size, ba.ar.High())
		assert.GreaterOrEqual(t, ba.UsableSize(p), size)
	}
	require.NoError(t, ba.Check())
}

func Test_Bucket_ZeroSizeGetsSmallestClass(t *testing.T) {
	ba := newTestAllocator(t, nil)
	p := mustAlloc(t, ba, 0)
	assert.Equal(t, 0, classOfPtr(ba, p))
	assert.Equal(t, 24, ba.UsableSize(p))
}

func Test_Bucket_TooLarge(t *testing.T) {
	ba := newTestAllocator(t, nil)
	high := ba.ar.High()

	_, err := ba.Alloc(ba.MaxSize() + 1)
	require.ErrorIs(t, err, ErrTooLarge)
	_, err = ba.Alloc(-1)
	require.ErrorIs(t, err, ErrTooLarge)

	assert.Equal(t, high, ba.ar.High(), "failed request must not grow the arena")
	require.NoError(t, ba.Check())
}

func Test_Bucket_ExhaustionLeavesHeapIntact(t *testing.T) {
	ba, err := New(arena.NewHeap(4096), nil)
	require.NoError(t, err)

	var ptrs []Ptr
	for range 4 {
		ptrs = append(ptrs, mustAlloc(t, ba, 1000))
	}
	fill(ba.ar.Bytes(), ptrs[1], 1000, 0x40)

	_, err = ba.Alloc(1000)
	require.ErrorIs(t, err, ErrNoSpace)
	require.ErrorIs(t, err, arena.ErrExhausted)
	require.NoError(t, ba.Check())
	requirePattern(t, ba.ar.Bytes(), ptrs[1], 1000, 0x40)

	require.NoError(t, ba.Free(ptrs[2]))
	p := mustAlloc(t, ba, 1000)
	assert.Equal(t, ptrs[2], p)
	require.NoError(t, ba.Check())
}

func Test_Bucket_SplitServesSmallerRequest(t *testing.T) {
	ba := newTestAllocator(t, nil)

	big := mustAlloc(t, ba, 200) // class 3, 256 bytes
	guard := mustAlloc(t, ba, 8)
	require.NoError(t, ba.Free(big))
	growBefore := ba.Stats().GrowCalls

	small := mustAlloc(t, ba, 10) // class 0
	assert.Equal(t, big, small, "split keeps the prefix")
	assert.Equal(t, growBefore, ba.Stats().GrowCalls)
	assert.Equal(t, 1, ba.Stats().AllocFromSplit)
	assert.Equal(t, 3, ba.Stats().SplitCount)
	require.NoError(t, ba.Check())

	blocks := walkBlocks(t, ba)
	require.Len(t, blocks, 5)
	assert.Equal(t, []blockInfo{
		{off: ba.start, class: 0},
		{off: ba.start + 32, class: 0, free: true},
		{off: ba.start + 64, class: 1, free: true},
		{off: ba.start + 128, class: 2, free: true},
		{off: ba.start + 256, class: 0},
	}, blocks)
	assert.Equal(t, int(guard)-format.HeaderSize, ba.top)
}

func Test_Bucket_SplitOfTopMovesTop(t *testing.T) {
	ba := newTestAllocator(t, nil)

	big := mustAlloc(t, ba, 500) // class 4, 512 bytes, top
	require.NoError(t, ba.Free(big))
	mustAlloc(t, ba, 20)

	assert.Equal(t, ba.start+256, ba.top)
	require.NoError(t, ba.Check())
}

func Test_Bucket_SplitRemainderMergesOnFree(t *testing.T) {
	ba := newTestAllocator(t, nil)

	a := mustAlloc(t, ba, 40) // class 1 at start
	b := mustAlloc(t, ba, 20) // class 0 at start+64
	mustAlloc(t, ba, 20)      // class 0 guard at start+96
	require.NoError(t, ba.Free(a))

	// Splitting a leaves a free class 0 remainder at start+32 between the
	// kept prefix and the live b.
	p := mustAlloc(t, ba, 8)
	assert.Equal(t, a, p)
	assert.Equal(t, []int{1, 0}, ba.FreeBlocks()[:2])
	require.NoError(t, ba.Check())

	// Freeing b merges it backwards with the remainder into class 1.
	require.NoError(t, ba.Free(b))
	require.NoError(t, ba.Check())
	assert.Equal(t, []int{0, 1}, ba.FreeBlocks()[:2])
	assert.Equal(t, 1, ba.Stats().CoalesceBackward)
	assert.Equal(t, blockInfo{off: ba.start + 32, class: 1, free: true}, walkBlocks(t, ba)[1])
}

func Test_Bucket_CoalesceBackward(t *testing.T) {
	ba := newTestAllocator(t, nil)

	a := mustAlloc(t, ba, 8)
	b := mustAlloc(t, ba, 8)
	mustAlloc(t, ba, 8)

	require.NoError(t, ba.Free(a))
	require.NoError(t, ba.Free(b))

	st := ba.Stats()
	assert.Equal(t, 0, st.CoalesceForward)
	assert.Equal(t, 1, st.CoalesceBackward)
	assert.Equal(t, []int{0, 1}, ba.FreeBlocks()[:2])
	require.NoError(t, ba.Check())
}

func Test_Bucket_CoalesceOnlySameClass(t *testing.T) {
	ba := newTestAllocator(t, nil)

	a := mustAlloc(t, ba, 8)
	b := mustAlloc(t, ba, 8)
	c := mustAlloc(t, ba, 8)
	mustAlloc(t, ba, 8)

	require.NoError(t, ba.Free(a))
	require.NoError(t, ba.Free(c))
	require.NoError(t, ba.Free(b))

	// b merges forward with c into class 1; a (class 0) stays separate.
	blocks := walkBlocks(t, ba)
	assert.Equal(t, blockInfo{off: ba.start, class: 0, free: true}, blocks[0])
	assert.Equal(t, blockInfo{off: ba.start + 32, class: 1, free: true}, blocks[1])
	require.NoError(t, ba.Check())
}

func Test_Bucket_CoalesceCascades(t *testing.T) {
	ba := newTestAllocator(t, nil)

	var ptrs [4]Ptr
	for i := range ptrs {
		ptrs[i] = mustAlloc(t, ba, 8)
	}
	mustAlloc(t, ba, 8)

	require.NoError(t, ba.Free(ptrs[0]))
	require.NoError(t, ba.Free(ptrs[1]))
	require.NoError(t, ba.Free(ptrs[2]))
	require.NoError(t, ba.Free(ptrs[3]))

	blocks := walkBlocks(t, ba)
	require.Len(t, blocks, 2)
	assert.Equal(t, blockInfo{off: ba.start, class: 2, free: true}, blocks[0])
	assert.Equal(t, 2, classOfPtr(ba, ptrs[0]))
	require.NoError(t, ba.Check())
}

func Test_Bucket_LargestClassNeverMerges(t *testing.T) {
	opts := DefaultOptions()
	opts.NumClasses = 2
	ba := newTestAllocator(t, opts)

	a := mustAlloc(t, ba, 56)
	b := mustAlloc(t, ba, 56)
	require.NoError(t, ba.Free(a))
	require.NoError(t, ba.Free(b))

	assert.Equal(t, 2, ba.FreeBlocks()[1])
	require.NoError(t, ba.Check())
}

func Test_Bucket_FreeTopKeepsTop(t *testing.T) {
	ba := newTestAllocator(t, nil)
	mustAlloc(t, ba, 40)
	b := mustAlloc(t, ba, 40)

	require.NoError(t, ba.Free(b))
	assert.Equal(t, int(b)-format.HeaderSize, ba.top)
	require.NoError(t, ba.Check())

	assert.Equal(t, b, mustAlloc(t, ba, 40))
}

func Test_Bucket_FreeErrors(t *testing.T) {
	ba := newTestAllocator(t, nil)
	p := mustAlloc(t, ba, 40)

	require.NoError(t, ba.Free(Null))
	require.ErrorIs(t, ba.Free(Ptr(3)), ErrBadPtr)
	require.ErrorIs(t, ba.Free(p+4), ErrBadPtr)
	require.ErrorIs(t, ba.Free(Ptr(ba.ar.High()+64)), ErrBadPtr)

	require.NoError(t, ba.Free(p))
	err := ba.Free(p)
	require.ErrorIs(t, err, ErrDoubleFree)
	require.NoError(t, ba.Check())
}

func Test_Bucket_InitIsIdempotent(t *testing.T) {
	ba := newTestAllocator(t, nil)
	mustAlloc(t, ba, 100)
	mustAlloc(t, ba, 5)

	require.NoError(t, ba.Init())
	high := ba.ar.High()
	start := ba.start
	require.NoError(t, ba.Init())

	assert.Equal(t, high, ba.ar.High())
	assert.Equal(t, start, ba.start)
	assert.Equal(t, noBlock, ba.top)
	assert.Equal(t, Stats{}, ba.Stats())
	assert.Zero(t, ba.lists.total())
	assert.True(t, format.IsAligned(ba.start, format.CacheLine))
	require.NoError(t, ba.Check())

	p := mustAlloc(t, ba, 8)
	assert.Equal(t, Ptr(start+format.HeaderSize), p)
}

func Test_Bucket_InitAlignsUnalignedArena(t *testing.T) {
	ar := arena.NewHeap(1 << 16)
	_, err := ar.Grow(13)
	require.NoError(t, err)

	ba, err := New(ar, nil)
	require.NoError(t, err)
	assert.Equal(t, 64, ba.start)
	require.NoError(t, ba.Check())
}

func Test_Bucket_InitPaddingExhausted(t *testing.T) {
	ar := arena.NewHeap(40)
	_, err := ar.Grow(13)
	require.NoError(t, err)

	_, err = New(ar, nil)
	require.ErrorIs(t, err, ErrNoSpace)
}

func Test_Bucket_NewRejectsBadOptions(t *testing.T) {
	_, err := New(arena.NewHeap(0), &Options{MinBlockShift: 5, NumClasses: 0, CacheAlign: 64})
	require.ErrorIs(t, err, ErrBadOptions)
}

func Test_Bucket_LIFOOrder(t *testing.T) {
	opts := DefaultOptions()
	opts.ListOrder = OrderLIFO
	ba := newTestAllocator(t, opts)

	var ptrs []Ptr
	for range 6 {
		ptrs = append(ptrs, mustAlloc(t, ba, 40))
		mustAlloc(t, ba, 8) // separator so nothing merges
	}
	require.NoError(t, ba.Free(ptrs[1]))
	require.NoError(t, ba.Free(ptrs[4]))
	require.NoError(t, ba.Check())

	assert.Equal(t, ptrs[4], mustAlloc(t, ba, 40))
}

func Test_Bucket_AddressOrderPrefersLowest(t *testing.T) {
	ba := newTestAllocator(t, nil)

	var ptrs []Ptr
	for range 6 {
		ptrs = append(ptrs, mustAlloc(t, ba, 40))
		mustAlloc(t, ba, 8)
	}
	require.NoError(t, ba.Free(ptrs[4]))
	require.NoError(t, ba.Free(ptrs[1]))
	require.NoError(t, ba.Free(ptrs[3]))

	assert.Equal(t, ptrs[1], mustAlloc(t, ba, 40))
	assert.Equal(t, ptrs[3], mustAlloc(t, ba, 40))
}

func Test_Bucket_UsableSize(t *testing.T) {
	ba := newTestAllocator(t, nil)
	p := mustAlloc(t, ba, 100)
	assert.Equal(t, 120, ba.UsableSize(p))
	assert.Zero(t, ba.UsableSize(Null))
	require.NoError(t, ba.Free(p))
	assert.Zero(t, ba.UsableSize(p))
}

func Test_Bucket_DebugLogger(t *testing.T) {
	var sink logSink
	opts := DefaultOptions()
	opts.Logger = sink.logger()
	ba := newTestAllocator(t, opts)

	a := mustAlloc(t, ba, 8)
	b := mustAlloc(t, ba, 8)
	require.NoError(t, ba.Free(a))
	require.NoError(t, ba.Free(b))

	out := sink.String()
	assert.Contains(t, out, "msg=grow")
	assert.Contains(t, out, "msg=coalesce")
}

func Test_CheckError_Unwrap(t *testing.T) {
	err := error(&CheckError{Offset: 64, Msg: "bad header", Err: format.ErrBadTag})
	assert.True(t, errors.Is(err, ErrCorrupt))
	assert.True(t, errors.Is(err, format.ErrBadTag))
	assert.Contains(t, err.Error(), "at 64: bad header")

	var ce *CheckError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 64, ce.Offset)
}
