// Package trace reads, writes and generates allocator request traces.
//
// A trace file is plain text. Four header lines carry the suggested heap
// size, the number of distinct block ids, the number of operations and a
// scoring weight. Each following line is one operation:
//
//	a <id> <size>   allocate size bytes for block id
//	r <id> <size>   reallocate block id to size bytes
//	f <id>          free block id
//	w <id> <size>   overwrite the first size bytes of block id
//
// Blank lines and lines starting with '#' are ignored.
package trace

import (
	"errors"
	"fmt"
)

// OpKind identifies an operation.
type OpKind byte

const (
	OpAlloc   OpKind = 'a'
	OpRealloc OpKind = 'r'
	OpFree    OpKind = 'f'
	OpWrite   OpKind = 'w'
)

// String returns the one-letter trace mnemonic.
func (k OpKind) String() string {
	switch k {
	case OpAlloc, OpRealloc, OpFree, OpWrite:
		return string(rune(k))
	default:
		return fmt.Sprintf("OpKind(%d)", byte(k))
	}
}

// Op is one trace operation. Size is unused for OpFree.
type Op struct {
	Kind OpKind
	ID   int
	Size int
}

// Trace is a parsed trace.
type Trace struct {
	Name     string // file name, informational
	HeapHint int    // suggested heap size
	NumIDs   int    // ids range over [0, NumIDs)
	Weight   int    // scoring weight
	Ops      []Op
}

// MaxIDs bounds the number of distinct block ids a trace may declare.
const MaxIDs = 1 << 24

var (
	// ErrSemantic indicates a trace that parses but cannot be replayed.
	ErrSemantic = errors.New("trace: invalid operation sequence")
)

// ParseError reports a malformed line.
type ParseError struct {
	Line int    // 1-based line number
	Msg  string // what is wrong
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace: line %d: %s", e.Line, e.Msg)
}

// Validate checks that ids are in range, that only dead ids are allocated and
// that only live ids are reallocated, written or freed.
func (t *Trace) Validate() error {
	if t.NumIDs < 0 || t.NumIDs > MaxIDs {
		return fmt.Errorf("%w: %d block ids (max %d)", ErrSemantic, t.NumIDs, MaxIDs)
	}
	live := make([]bool, t.NumIDs)
	for i, op := range t.Ops {
		if op.ID < 0 || op.ID >= t.NumIDs {
			return fmt.Errorf("%w: op %d: id %d outside [0, %d)", ErrSemantic, i, op.ID, t.NumIDs)
		}
		if op.Size < 0 {
			return fmt.Errorf("%w: op %d: negative size %d", ErrSemantic, i, op.Size)
		}
		switch op.Kind {
		case OpAlloc:
			if live[op.ID] {
				return fmt.Errorf("%w: op %d: id %d allocated twice", ErrSemantic, i, op.ID)
			}
			live[op.ID] = true
		case OpRealloc, OpWrite, OpFree:
			if !live[op.ID] {
				return fmt.Errorf("%w: op %d: %v of dead id %d", ErrSemantic, i, op.Kind, op.ID)
			}
			if op.Kind == OpFree {
				live[op.ID] = false
			}
		default:
			return fmt.Errorf("%w: op %d: unknown kind %v", ErrSemantic, i, op.Kind)
		}
	}
	return nil
}

// Stats summarizes a trace.
type Stats struct {
	Allocs, Reallocs, Frees, Writes int

	// PeakLiveBytes is the largest sum of requested sizes live at once:
	// the least memory any allocator could use for this trace.
	PeakLiveBytes int
}

// Stats computes summary counts. The trace should be valid.
func (t *Trace) Stats() Stats {
	var s Stats
	sizes := make([]int, t.NumIDs)
	live := 0
	for _, op := range t.Ops {
		if op.ID < 0 || op.ID >= t.NumIDs {
			continue
		}
		switch op.Kind {
		case OpAlloc:
			s.Allocs++
			live += op.Size
			sizes[op.ID] = op.Size
		case OpRealloc:
			s.Reallocs++
			live += op.Size - sizes[op.ID]
			sizes[op.ID] = op.Size
		case OpFree:
			s.Frees++
			live -= sizes[op.ID]
			sizes[op.ID] = 0
		case OpWrite:
			s.Writes++
		}
		s.PeakLiveBytes = max(s.PeakLiveBytes, live)
	}
	return s
}
