package replay

import (
	"fmt"

	"github.com/joshuapare/mallockit/trace"
)

// Validation failure types.
const (
	TypeInit        = "Init"
	TypeAlloc       = "Alloc"
	TypeAlignment   = "Alignment"
	TypeContainment = "Containment"
	TypeOverlap     = "Overlap"
	TypeData        = "Data"
	TypeCheck       = "Check"
)

// ValidationError describes the first failure found while replaying a trace.
type ValidationError struct {
	Type    string       // failure category, one of the Type* constants
	Op      int          // index of the failing op, -1 before the first op
	Kind    trace.OpKind // kind of the failing op
	ID      int          // block id of the failing op
	Message string       // human-readable description
	Err     error        // allocator error, if any
}

func (e *ValidationError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Op >= 0 {
		s = fmt.Sprintf("op %d (%v %d): %s", e.Op, e.Kind, e.ID, s)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ValidationError) Unwrap() error { return e.Err }
