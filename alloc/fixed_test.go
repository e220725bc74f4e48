package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/format"
)

func newTestFixed(t *testing.T, limit int) *FixedAllocator {
	t.Helper()
	fa, err := NewFixed(arena.NewHeap(limit))
	require.NoError(t, err)
	return fa
}

func Test_Fixed_FirstBlockIsNotNull(t *testing.T) {
	fa := newTestFixed(t, testArenaLimit)
	p := mustAlloc(t, fa, 1)
	assert.Equal(t, Ptr(format.CacheLine), p)
	assert.True(t, format.IsAligned(int(p), format.CacheLine))
}

func Test_Fixed_LIFOReuse(t *testing.T) {
	fa := newTestFixed(t, testArenaLimit)
	a := mustAlloc(t, fa, 64)
	b := mustAlloc(t, fa, 10)
	c := mustAlloc(t, fa, 0)
	assert.Equal(t, a+64, b)
	assert.Equal(t, b+64, c)

	require.NoError(t, fa.Free(a))
	require.NoError(t, fa.Free(c))
	require.NoError(t, fa.Check())

	assert.Equal(t, c, mustAlloc(t, fa, 8))
	assert.Equal(t, a, mustAlloc(t, fa, 8))
	assert.Equal(t, 2, fa.Stats().AllocFromList)
	require.NoError(t, fa.Check())
}

func Test_Fixed_TooLarge(t *testing.T) {
	fa := newTestFixed(t, testArenaLimit)
	_, err := fa.Alloc(65)
	require.ErrorIs(t, err, ErrTooLarge)

	p := mustAlloc(t, fa, 8)
	q, err := fa.Realloc(p, 64)
	require.NoError(t, err)
	assert.Equal(t, p, q)
	_, err = fa.Realloc(p, 65)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, FixedBlockSize, fa.UsableSize(p))
}

func Test_Fixed_Exhaustion(t *testing.T) {
	fa := newTestFixed(t, 192)
	mustAlloc(t, fa, 8)
	mustAlloc(t, fa, 8)
	_, err := fa.Alloc(8)
	require.ErrorIs(t, err, ErrNoSpace)
}

func Test_Fixed_BadPointer(t *testing.T) {
	fa := newTestFixed(t, testArenaLimit)
	p := mustAlloc(t, fa, 8)
	require.ErrorIs(t, fa.Free(p+8), ErrBadPtr)
	require.ErrorIs(t, fa.Free(Ptr(8)), ErrBadPtr)
	require.NoError(t, fa.Free(Null))
}

func Test_Fixed_CheckDetectsCycle(t *testing.T) {
	fa := newTestFixed(t, testArenaLimit)
	a := mustAlloc(t, fa, 8)
	mustAlloc(t, fa, 8)
	require.NoError(t, fa.Free(a))

	format.PutU32(fa.ar.Bytes(), int(a), uint32(a))
	require.ErrorIs(t, fa.Check(), ErrCorrupt)
}
