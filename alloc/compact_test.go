package alloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mallockit/arena"
)

type move struct{ old, new Ptr }

// fragmentedCompactor builds five class 0 blocks and frees the first, third
// and fifth, leaving live blocks b and d between free ones.
func fragmentedCompactor(t *testing.T) (*Compactor, [5]Ptr) {
	t.Helper()
	cp, err := NewCompactor(arena.NewHeap(testArenaLimit), nil)
	require.NoError(t, err)

	var ptrs [5]Ptr
	for i := range ptrs {
		ptrs[i] = mustAlloc(t, cp, 8)
	}
	require.NoError(t, cp.Free(ptrs[0]))
	require.NoError(t, cp.Free(ptrs[2]))
	require.NoError(t, cp.Free(ptrs[4]))
	require.NoError(t, cp.Check())
	return cp, ptrs
}

func Test_Compactor_RelocatesInsteadOfGrowing(t *testing.T) {
	cp, ptrs := fragmentedCompactor(t)
	fill(cp.ar.Bytes(), ptrs[1], 24, 0x21)
	growBefore := cp.Stats().GrowCalls

	var moves []move
	cp.SetRelocateFunc(func(old, new Ptr) bool {
		moves = append(moves, move{old, new})
		return true
	})

	p := mustAlloc(t, cp, 40)
	assert.Equal(t, ptrs[0], p, "evacuated pair starts at the first free block")
	assert.Equal(t, growBefore, cp.Stats().GrowCalls)
	assert.Equal(t, 1, cp.Stats().Relocations)
	require.Equal(t, []move{{ptrs[1], ptrs[2]}}, moves)
	requirePattern(t, cp.ar.Bytes(), ptrs[2], 24, 0x21)
	require.NoError(t, cp.Check())
}

func Test_Compactor_DeadObjectIsNotCopied(t *testing.T) {
	cp, ptrs := fragmentedCompactor(t)
	cp.SetRelocateFunc(func(old, new Ptr) bool { return false })

	// The dead block is freed in place and merges with the destination that
	// was handed back, so the request lands on the dead block.
	p := mustAlloc(t, cp, 40)
	assert.Equal(t, ptrs[1], p)
	assert.Zero(t, cp.Stats().Relocations)
	assert.Equal(t, []int{2, 0}, cp.FreeBlocks()[:2])
	require.NoError(t, cp.Check())
}

func Test_Compactor_WithoutCallbackGrows(t *testing.T) {
	cp, ptrs := fragmentedCompactor(t)
	high := cp.ar.High()

	p := mustAlloc(t, cp, 40)
	assert.Greater(t, int(p), int(ptrs[4]))
	assert.Equal(t, high+64, cp.ar.High())
	assert.Zero(t, cp.Stats().Relocations)
}

func Test_Compactor_NeedsTwoFreeBlocks(t *testing.T) {
	cp, err := NewCompactor(arena.NewHeap(testArenaLimit), nil)
	require.NoError(t, err)
	a := mustAlloc(t, cp, 8)
	mustAlloc(t, cp, 8)
	require.NoError(t, cp.Free(a))

	called := false
	cp.SetRelocateFunc(func(old, new Ptr) bool { called = true; return true })
	mustAlloc(t, cp, 40)
	assert.False(t, called)
}

func Test_Compactor_ReallocNeverMovesItsSource(t *testing.T) {
	cp, ptrs := fragmentedCompactor(t)
	fill(cp.ar.Bytes(), ptrs[1], 24, 0x51)

	var moves []move
	cp.SetRelocateFunc(func(old, new Ptr) bool {
		moves = append(moves, move{old, new})
		return true
	})

	q, err := cp.Realloc(ptrs[1], 40)
	require.NoError(t, err)
	for _, m := range moves {
		assert.NotEqual(t, ptrs[1], m.old, "realloc source relocated")
	}
	requirePattern(t, cp.ar.Bytes(), q, 24, 0x51)
	require.NoError(t, cp.Check())
}

// Test_Compactor_RandomWorkload tracks live objects through relocations and
// verifies payload contents survive every move.
func Test_Compactor_RandomWorkload(t *testing.T) {
	cp, err := NewCompactor(arena.NewHeap(1<<24), nil)
	require.NoError(t, err)

	live := make(map[Ptr]*liveBlock)
	cp.SetRelocateFunc(func(old, new Ptr) bool {
		lb, ok := live[old]
		if !ok {
			return false
		}
		delete(live, old)
		lb.p = new
		live[new] = lb
		return true
	})

	rng := rand.New(rand.NewSource(7))
	for step := range 3000 {
		if rng.Intn(3) > 0 || len(live) == 0 {
			size := rng.Intn(200)
			p := mustAlloc(t, cp, size)
			lb := &liveBlock{p: p, size: size, seed: byte(step)}
			fill(cp.ar.Bytes(), p, size, lb.seed)
			live[p] = lb
		} else {
			var victim Ptr
			for p := range live {
				if victim == Null || p < victim {
					victim = p
				}
			}
			require.NoError(t, cp.Free(victim))
			delete(live, victim)
		}
		require.NoError(t, cp.Check(), "step %d", step)
	}
	for p, lb := range live {
		require.Equal(t, p, lb.p)
		requirePattern(t, cp.ar.Bytes(), p, lb.size, lb.seed)
	}
}
