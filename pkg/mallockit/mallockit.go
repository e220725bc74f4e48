package mallockit

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshuapare/mallockit/alloc"
	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/replay"
	"github.com/joshuapare/mallockit/trace"
)

// ErrUnknownKind indicates an allocator or arena name that is not supported.
var ErrUnknownKind = errors.New("mallockit: unknown kind")

// NewArena creates an arena of the given kind with growth limit maxSize.
func NewArena(kind string, maxSize int) (arena.Arena, error) {
	switch kind {
	case ArenaHeap, "":
		return arena.NewHeap(maxSize), nil
	case ArenaMmap:
		m, err := arena.NewMapped(maxSize)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: arena %q", ErrUnknownKind, kind)
	}
}

// NewAllocator creates and initializes an allocator of the given kind over ar.
// opts only applies to the bucket and compact allocators.
func NewAllocator(kind string, ar arena.Arena, opts *alloc.Options) (alloc.Allocator, error) {
	var (
		a   alloc.Allocator
		err error
	)
	switch kind {
	case KindBucket, "":
		a, err = alloc.New(ar, opts)
	case KindCompact:
		a, err = alloc.NewCompactor(ar, opts)
	case KindBump:
		a, err = alloc.NewBump(ar)
	case KindFixed:
		a, err = alloc.NewFixed(ar)
	default:
		return nil, fmt.Errorf("%w: allocator %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Session pairs one arena with one allocator and a replay harness.
//
// NOT thread-safe.
type Session struct {
	opts Options
	ar   arena.Arena
	a    alloc.Allocator
	h    *replay.Harness
}

// Open builds the arena and allocator named by opts. Pass nil for
// DefaultOptions. The caller must Close the session.
func Open(opts *Options) (*Session, error) {
	o := opts.withDefaults()

	ar, err := NewArena(o.Arena, o.MaxSize)
	if err != nil {
		return nil, err
	}
	a, err := NewAllocator(o.Allocator, ar, o.Alloc)
	if err != nil {
		_ = ar.Close()
		return nil, fmt.Errorf("%s allocator: %w", o.Allocator, err)
	}

	return &Session{
		opts: o,
		ar:   ar,
		a:    a,
		h:    replay.New(ar, a, &replay.Options{CheckEvery: o.CheckEvery, Logger: o.Logger}),
	}, nil
}

// Allocator returns the session's allocator.
func (s *Session) Allocator() alloc.Allocator { return s.a }

// Arena returns the session's arena.
func (s *Session) Arena() arena.Arena { return s.ar }

// Run replays t, honoring Options.Timeout.
func (s *Session) Run(ctx context.Context, t *trace.Trace) (*replay.Result, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.h.Run(ctx, t)
}

// RunFile parses the trace at path and replays it.
func (s *Session) RunFile(ctx context.Context, path string) (*replay.Result, error) {
	t, err := trace.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, t)
}

// Close releases the arena.
func (s *Session) Close() error {
	return s.ar.Close()
}

// RunFiles replays each trace file in order on a single session and stops at
// the first failure. Results for the traces that passed are returned along
// with the error, which names the failing file.
func RunFiles(ctx context.Context, paths []string, opts *Options) ([]*replay.Result, error) {
	s, err := Open(opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	results := make([]*replay.Result, 0, len(paths))
	for _, path := range paths {
		t, err := trace.ParseFile(path)
		if err != nil {
			return results, err
		}
		res, err := s.Run(ctx, t)
		if err != nil {
			return results, fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, res)
	}
	return results, nil
}
