// Package config loads the YAML configuration shared by mallocctl commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/mallockit/alloc"
	"github.com/joshuapare/mallockit/arena"
	"github.com/joshuapare/mallockit/internal/logger"
)

// ErrInvalid indicates a configuration value out of range.
var ErrInvalid = errors.New("config: invalid")

// Allocator kinds.
var AllocatorKinds = []string{"bucket", "compact", "bump", "fixed"}

// Arena kinds.
var ArenaKinds = []string{"heap", "mmap"}

// Config represents the top-level configuration structure.
type Config struct {
	Allocator AllocatorConfig `yaml:"allocator"`
	Arena     ArenaConfig     `yaml:"arena"`
	Replay    ReplayConfig    `yaml:"replay"`
	Log       LogConfig       `yaml:"log"`
}

// AllocatorConfig selects and tunes the allocator under test.
type AllocatorConfig struct {
	Kind          string `yaml:"kind"`            // bucket, compact, bump, fixed
	MinBlockShift int    `yaml:"min_block_shift"` // log2 of the smallest block
	NumClasses    int    `yaml:"num_classes"`     // number of size classes
	ListOrder     string `yaml:"list_order"`      // address, lifo
	ShrinkPolicy  string `yaml:"shrink_policy"`   // split, keep
	CacheAlign    int    `yaml:"cache_align"`     // init alignment of the high-water mark
}

// ArenaConfig selects the backing arena.
type ArenaConfig struct {
	Kind    string   `yaml:"kind"`     // heap, mmap
	MaxSize ByteSize `yaml:"max_size"` // growth limit, e.g. "64MiB"
}

// ReplayConfig controls the trace replay harness.
type ReplayConfig struct {
	CheckEvery int      `yaml:"check_every"` // run Check every N ops, 0 = only after the last op
	Timeout    Duration `yaml:"timeout"`     // per-trace deadline, 0 = none
}

// LogConfig controls CLI logging.
type LogConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	JSON       bool   `yaml:"json"`        // JSON lines output
	AllocDebug bool   `yaml:"alloc_debug"` // route allocator debug events to the log
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "5s", "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// ByteSize is a byte count unmarshalled from a plain integer or a string with
// a binary suffix: "4096", "64KiB", "16MiB", "1GiB".
type ByteSize int

var byteSuffixes = []struct {
	suffix string
	mult   int
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

// ParseByteSize parses the ByteSize text form.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	mult := 1
	for _, bs := range byteSuffixes {
		if strings.HasSuffix(s, bs.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, bs.suffix))
			mult = bs.mult
			break
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: byte size %q", ErrInvalid, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative byte size %d", ErrInvalid, n)
	}
	return ByteSize(n * mult), nil
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	opts := alloc.DefaultOptions()
	return &Config{
		Allocator: AllocatorConfig{
			Kind:          "bucket",
			MinBlockShift: opts.MinBlockShift,
			NumClasses:    opts.NumClasses,
			ListOrder:     opts.ListOrder.String(),
			ShrinkPolicy:  opts.ShrinkPolicy.String(),
			CacheAlign:    opts.CacheAlign,
		},
		Arena: ArenaConfig{
			Kind:    "heap",
			MaxSize: arena.DefaultMaxSize,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML configuration file from the specified path.
// Fields absent from the file keep their Default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks kinds, enums and ranges.
func (c *Config) Validate() error {
	if !slices.Contains(AllocatorKinds, c.Allocator.Kind) {
		return fmt.Errorf("%w: allocator.kind %q (want one of %v)", ErrInvalid, c.Allocator.Kind, AllocatorKinds)
	}
	if !slices.Contains(ArenaKinds, c.Arena.Kind) {
		return fmt.Errorf("%w: arena.kind %q (want one of %v)", ErrInvalid, c.Arena.Kind, ArenaKinds)
	}
	if c.Arena.MaxSize <= 0 {
		return fmt.Errorf("%w: arena.max_size must be positive", ErrInvalid)
	}
	if c.Replay.CheckEvery < 0 {
		return fmt.Errorf("%w: replay.check_every %d", ErrInvalid, c.Replay.CheckEvery)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	_, err := c.AllocOptions()
	return err
}

// AllocOptions converts the allocator section to alloc.Options.
func (c *Config) AllocOptions() (*alloc.Options, error) {
	order, err := alloc.ParseListOrder(c.Allocator.ListOrder)
	if err != nil {
		return nil, err
	}
	shrink, err := alloc.ParseShrinkPolicy(c.Allocator.ShrinkPolicy)
	if err != nil {
		return nil, err
	}
	opts := &alloc.Options{
		MinBlockShift: c.Allocator.MinBlockShift,
		NumClasses:    c.Allocator.NumClasses,
		ListOrder:     order,
		ShrinkPolicy:  shrink,
		CacheAlign:    c.Allocator.CacheAlign,
	}
	if _, err := alloc.Classes(opts); err != nil {
		return nil, err
	}
	return opts, nil
}
