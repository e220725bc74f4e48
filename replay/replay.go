// Package replay drives an allocator through a trace and validates every
// result the way a malloc test driver does: payloads must be 8-byte aligned,
// lie inside the arena, never overlap another live payload, and keep their
// contents across realloc and relocation.
//
// Each payload byte j of block id is filled with pattern(id, j) when it is
// allocated, so a realloc that loses or mixes up data is detected by
// re-reading the preserved prefix.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshuapare/mallockit/alloc"
	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/buf"
	"github.com/joshuapare/mallockit/internal/format"
	"github.com/joshuapare/mallockit/internal/logger"
	"github.com/joshuapare/mallockit/trace"
)

// cancelStride is how many ops run between context checks.
const cancelStride = 256

// Options configures a Harness.
type Options struct {
	// CheckEvery runs the allocator's Check after every N ops.
	// 0 checks only once, after the last op.
	CheckEvery int

	// Logger receives per-trace summaries. Default: logger.L
	Logger *slog.Logger
}

// Result holds the outcome of one successful replay.
type Result struct {
	Trace       string        // trace name
	Ops         int           // operations replayed
	PeakPayload int           // largest sum of live requested bytes
	ArenaBytes  int           // arena high-water mark after the run
	Utilization float64       // PeakPayload / ArenaBytes
	Relocations int           // blocks moved through the relocation callback
	Elapsed     time.Duration // wall time of the op loop
	AllocStats  *alloc.Stats  // allocator counters, if the allocator exposes them
}

// statser is implemented by allocators that keep Stats.
type statser interface {
	Stats() alloc.Stats
}

// Harness replays traces against one allocator and arena.
//
// NOT thread-safe.
type Harness struct {
	ar   arena.Arena
	a    alloc.Allocator
	opts Options
	log  *slog.Logger

	ptrs   []alloc.Ptr
	sizes  []int
	index  rangeIndex
	moved  int
	relErr *ValidationError
}

// New creates a Harness. If a implements alloc.Relocator, the harness
// registers a callback that follows moved blocks.
func New(ar arena.Arena, a alloc.Allocator, opts *Options) *Harness {
	h := &Harness{ar: ar, a: a}
	if opts != nil {
		h.opts = *opts
	}
	h.log = h.opts.Logger
	if h.log == nil {
		h.log = logger.L
	}
	if r, ok := a.(alloc.Relocator); ok {
		r.SetRelocateFunc(h.relocate)
	}
	return h
}

// Run resets the arena, initializes the allocator and replays t.
// It returns a *ValidationError for any correctness failure and ctx.Err()
// if the context is cancelled between ops.
func (h *Harness) Run(ctx context.Context, t *trace.Trace) (*Result, error) {
	h.ar.Reset()
	if err := h.a.Init(); err != nil {
		return nil, &ValidationError{Type: TypeInit, Op: -1, Message: "allocator init failed", Err: err}
	}

	if t.NumIDs < 0 || t.NumIDs > trace.MaxIDs {
		return nil, &ValidationError{Type: TypeAlloc, Op: -1, Message: fmt.Sprintf("trace declares %d block ids (max %d)", t.NumIDs, trace.MaxIDs)}
	}

	h.ptrs = make([]alloc.Ptr, t.NumIDs)
	h.sizes = make([]int, t.NumIDs)
	h.index.reset()
	h.moved = 0
	h.relErr = nil

	live, peak := 0, 0
	start := time.Now()

	for i, op := range t.Ops {
		if i%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if op.ID < 0 || op.ID >= t.NumIDs {
			return nil, h.fail(TypeAlloc, i, op, fmt.Sprintf("id outside [0, %d)", t.NumIDs), nil)
		}

		var err error
		switch op.Kind {
		case trace.OpAlloc:
			err = h.alloc(i, op)
			live += op.Size
		case trace.OpRealloc:
			live -= h.sizes[op.ID]
			err = h.realloc(i, op)
			live += h.sizes[op.ID]
		case trace.OpWrite:
			err = h.write(i, op)
		case trace.OpFree:
			live -= h.sizes[op.ID]
			err = h.free(i, op)
		default:
			err = h.fail(TypeAlloc, i, op, "unknown op", nil)
		}
		if err != nil {
			return nil, err
		}
		if h.relErr != nil {
			h.relErr.Op, h.relErr.Kind, h.relErr.ID = i, op.Kind, op.ID
			return nil, h.relErr
		}
		peak = max(peak, live)

		if h.opts.CheckEvery > 0 && (i+1)%h.opts.CheckEvery == 0 {
			if err := h.a.Check(); err != nil {
				return nil, h.fail(TypeCheck, i, op, "heap check failed", err)
			}
		}
	}
	elapsed := time.Since(start)

	if err := h.a.Check(); err != nil {
		return nil, &ValidationError{Type: TypeCheck, Op: -1, Message: "final heap check failed", Err: err}
	}

	res := &Result{
		Trace:       t.Name,
		Ops:         len(t.Ops),
		PeakPayload: peak,
		ArenaBytes:  h.ar.High(),
		Relocations: h.moved,
		Elapsed:     elapsed,
	}
	if res.ArenaBytes > 0 {
		res.Utilization = float64(peak) / float64(res.ArenaBytes)
	}
	if s, ok := h.a.(statser); ok {
		st := s.Stats()
		res.AllocStats = &st
	}

	h.log.Info("replay done",
		"trace", res.Trace,
		"ops", res.Ops,
		"peak_payload", res.PeakPayload,
		"arena_bytes", res.ArenaBytes,
		"utilization", fmt.Sprintf("%.3f", res.Utilization),
		"elapsed", res.Elapsed)
	return res, nil
}

func (h *Harness) alloc(i int, op trace.Op) error {
	p, err := h.a.Alloc(op.Size)
	if err != nil {
		return h.fail(TypeAlloc, i, op, fmt.Sprintf("alloc %d bytes", op.Size), err)
	}
	if err := h.place(i, op, p, op.Size); err != nil {
		return err
	}
	fillPattern(h.ar.Bytes(), p, op.ID, 0, op.Size)
	h.ptrs[op.ID], h.sizes[op.ID] = p, op.Size
	return nil
}

func (h *Harness) realloc(i int, op trace.Op) error {
	old, oldSize := h.ptrs[op.ID], h.sizes[op.ID]
	h.index.remove(old)

	q, err := h.a.Realloc(old, op.Size)
	if err != nil {
		return h.fail(TypeAlloc, i, op, fmt.Sprintf("realloc %v to %d bytes", old, op.Size), err)
	}
	if op.Size == 0 {
		if q != alloc.Null {
			return h.fail(TypeAlloc, i, op, fmt.Sprintf("realloc to 0 returned %v, want null", q), nil)
		}
		h.ptrs[op.ID], h.sizes[op.ID] = alloc.Null, 0
		return nil
	}
	if err := h.place(i, op, q, op.Size); err != nil {
		return err
	}

	b := h.ar.Bytes()
	keep := min(oldSize, op.Size)
	if j, ok := checkPattern(b, q, op.ID, keep); !ok {
		return h.fail(TypeData, i, op, fmt.Sprintf("byte %d of %v not preserved (%d of %d bytes kept)", j, q, keep, op.Size), nil)
	}
	fillPattern(b, q, op.ID, keep, op.Size)
	h.ptrs[op.ID], h.sizes[op.ID] = q, op.Size
	return nil
}

func (h *Harness) write(i int, op trace.Op) error {
	p := h.ptrs[op.ID]
	n := min(op.Size, h.sizes[op.ID])
	if n == 0 {
		return nil
	}
	if s, ok := h.index.lookup(p); !ok || s.id != op.ID || s.hi-s.lo < n {
		return h.fail(TypeData, i, op, fmt.Sprintf("no live span for id %d at %v", op.ID, p), nil)
	}
	b := h.ar.Bytes()
	if j, ok := checkPattern(b, p, op.ID, n); !ok {
		return h.fail(TypeData, i, op, fmt.Sprintf("byte %d of %v clobbered", j, p), nil)
	}
	fillPattern(b, p, op.ID, 0, n)
	return nil
}

func (h *Harness) free(i int, op trace.Op) error {
	p := h.ptrs[op.ID]
	h.index.remove(p)
	if err := h.a.Free(p); err != nil {
		return h.fail(TypeAlloc, i, op, fmt.Sprintf("free %v", p), err)
	}
	h.ptrs[op.ID], h.sizes[op.ID] = alloc.Null, 0
	return nil
}

// place validates a new payload and records it in the range index.
func (h *Harness) place(i int, op trace.Op, p alloc.Ptr, size int) error {
	if msg, typ := h.checkSpan(p, size); msg != "" {
		return h.fail(typ, i, op, msg, nil)
	}
	if other, ok := h.index.insert(span{lo: int(p), hi: int(p) + size, id: op.ID}); !ok {
		return h.fail(TypeOverlap, i, op,
			fmt.Sprintf("payload [%d, %d) overlaps id %d at [%d, %d)", int(p), int(p)+size, other.id, other.lo, other.hi), nil)
	}
	return nil
}

// checkSpan returns a failure message and type for a misplaced payload.
func (h *Harness) checkSpan(p alloc.Ptr, size int) (string, string) {
	switch {
	case p == alloc.Null:
		return "allocator returned null", TypeAlloc
	case !format.IsAligned(int(p), format.Alignment):
		return fmt.Sprintf("payload %v not %d-byte aligned", p, format.Alignment), TypeAlignment
	case !buf.Within(int(p), size, h.ar.Low(), h.ar.High()):
		return fmt.Sprintf("payload [%d, %d) outside arena [%d, %d)", int(p), int(p)+size, h.ar.Low(), h.ar.High()), TypeContainment
	}
	return "", ""
}

// relocate follows a block the allocator is about to move.
func (h *Harness) relocate(old, new alloc.Ptr) bool {
	s, ok := h.index.remove(old)
	if !ok {
		return false
	}
	size := s.hi - s.lo
	if msg, typ := h.checkSpan(new, size); msg != "" && h.relErr == nil {
		h.relErr = &ValidationError{Type: typ, Message: "relocation: " + msg}
	}
	if other, ok := h.index.insert(span{lo: int(new), hi: int(new) + size, id: s.id}); !ok && h.relErr == nil {
		h.relErr = &ValidationError{Type: TypeOverlap,
			Message: fmt.Sprintf("relocation of id %d to %v overlaps id %d", s.id, new, other.id)}
	}
	h.ptrs[s.id] = new
	h.moved++
	return true
}

func (h *Harness) fail(typ string, i int, op trace.Op, msg string, err error) *ValidationError {
	return &ValidationError{Type: typ, Op: i, Kind: op.Kind, ID: op.ID, Message: msg, Err: err}
}

// pattern is the byte expected at offset j of block id.
func pattern(id, j int) byte {
	return byte(j) ^ byte(id*31)
}

func fillPattern(b []byte, p alloc.Ptr, id, from, to int) {
	base := int(p)
	for j := from; j < to; j++ {
		b[base+j] = pattern(id, j)
	}
}

// checkPattern verifies the first n bytes; on mismatch it returns the offset.
func checkPattern(b []byte, p alloc.Ptr, id, n int) (int, bool) {
	base := int(p)
	for j := range n {
		if b[base+j] != pattern(id, j) {
			return j, false
		}
	}
	return 0, true
}
