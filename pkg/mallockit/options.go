package mallockit

import (
	"log/slog"
	"time"

	"github.com/joshuapare/mallockit/alloc"
	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/config"
	"github.com/joshuapare/mallockit/internal/logger"
)

// Allocator and arena kind names.
const (
	KindBucket  = "bucket"
	KindCompact = "compact"
	KindBump    = "bump"
	KindFixed   = "fixed"

	ArenaHeap = "heap"
	ArenaMmap = "mmap"
)

// Options selects and tunes a Session.
type Options struct {
	// Allocator is the allocator kind. Default: "bucket"
	Allocator string

	// Arena is the arena kind. Default: "heap"
	Arena string

	// MaxSize is the arena growth limit in bytes. Default: arena.DefaultMaxSize
	MaxSize int

	// Alloc tunes the bucket and compact allocators; ignored by bump and fixed.
	// If nil, alloc.DefaultOptions() is used.
	Alloc *alloc.Options

	// CheckEvery runs the heap checker every N replayed ops (0 = at the end only).
	CheckEvery int

	// Timeout bounds each replay (0 = no limit).
	Timeout time.Duration

	// Logger receives replay summaries. Default: logger.L
	Logger *slog.Logger
}

// DefaultOptions returns options for a bucket allocator over a heap arena.
func DefaultOptions() *Options {
	return &Options{
		Allocator: KindBucket,
		Arena:     ArenaHeap,
		MaxSize:   arena.DefaultMaxSize,
	}
}

// FromConfig converts a loaded configuration file.
func FromConfig(cfg *config.Config) (*Options, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ao, err := cfg.AllocOptions()
	if err != nil {
		return nil, err
	}
	if cfg.Log.AllocDebug {
		ao.Logger = logger.L
	}
	return &Options{
		Allocator:  cfg.Allocator.Kind,
		Arena:      cfg.Arena.Kind,
		MaxSize:    int(cfg.Arena.MaxSize),
		Alloc:      ao,
		CheckEvery: cfg.Replay.CheckEvery,
		Timeout:    cfg.Replay.Timeout.Duration,
	}, nil
}

func (o *Options) withDefaults() Options {
	out := *DefaultOptions()
	if o == nil {
		return out
	}
	if o.Allocator != "" {
		out.Allocator = o.Allocator
	}
	if o.Arena != "" {
		out.Arena = o.Arena
	}
	if o.MaxSize > 0 {
		out.MaxSize = o.MaxSize
	}
	out.Alloc = o.Alloc
	out.CheckEvery = o.CheckEvery
	out.Timeout = o.Timeout
	out.Logger = o.Logger
	return out
}
