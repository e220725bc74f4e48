package alloc

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshuapare/mallockit/internal/format"
)

// ListOrder selects how freed blocks are inserted into their class list.
type ListOrder int

const (
	// OrderAddress keeps each list sorted by address so the lowest block is
	// reused first and blocks near the top stay free for in-place growth.
	OrderAddress ListOrder = iota

	// OrderLIFO pushes freed blocks at the head.
	OrderLIFO
)

// String returns the configuration name of the order.
func (o ListOrder) String() string {
	switch o {
	case OrderAddress:
		return "address"
	case OrderLIFO:
		return "lifo"
	default:
		return fmt.Sprintf("ListOrder(%d)", int(o))
	}
}

// ParseListOrder parses "address" or "lifo".
func ParseListOrder(s string) (ListOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "address":
		return OrderAddress, nil
	case "lifo":
		return OrderLIFO, nil
	default:
		return 0, fmt.Errorf("%w: unknown list order %q", ErrBadOptions, s)
	}
}

// ShrinkPolicy selects what Realloc does when a block shrinks into a smaller class.
type ShrinkPolicy int

const (
	// ShrinkSplit returns the unused tail to the free lists immediately.
	ShrinkSplit ShrinkPolicy = iota

	// ShrinkKeep leaves the block oversized.
	ShrinkKeep
)

// String returns the configuration name of the policy.
func (p ShrinkPolicy) String() string {
	switch p {
	case ShrinkSplit:
		return "split"
	case ShrinkKeep:
		return "keep"
	default:
		return fmt.Sprintf("ShrinkPolicy(%d)", int(p))
	}
}

// ParseShrinkPolicy parses "split" or "keep".
func ParseShrinkPolicy(s string) (ShrinkPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "split":
		return ShrinkSplit, nil
	case "keep":
		return ShrinkKeep, nil
	default:
		return 0, fmt.Errorf("%w: unknown shrink policy %q", ErrBadOptions, s)
	}
}

// Options configures a BucketAllocator.
type Options struct {
	// MinBlockShift is log2 of the smallest block size (header included).
	// Default: 5 (32-byte blocks, 24 usable bytes)
	MinBlockShift int

	// NumClasses is the number of size classes. Class i holds blocks of
	// 2^(MinBlockShift+i) bytes.
	// Default: 25 (largest block 512 MiB)
	NumClasses int

	// ListOrder selects free-list insertion order.
	// Default: OrderAddress
	ListOrder ListOrder

	// ShrinkPolicy selects Realloc behaviour on shrink.
	// Default: ShrinkSplit
	ShrinkPolicy ShrinkPolicy

	// CacheAlign is the alignment applied to the arena high-water mark by Init.
	// Must be a power of two no smaller than 8.
	// Default: 64
	CacheAlign int

	// Logger receives debug events. Nil disables logging unless
	// MALLOCKIT_LOG_ALLOC is set.
	Logger *slog.Logger
}

// DefaultOptions returns the recommended allocator configuration.
func DefaultOptions() *Options {
	return &Options{
		MinBlockShift: 5,
		NumClasses:    25,
		ListOrder:     OrderAddress,
		ShrinkPolicy:  ShrinkSplit,
		CacheAlign:    format.CacheLine,
	}
}

// validate checks the option ranges.
func (o *Options) validate() error {
	switch {
	case o.MinBlockShift < 4:
		return fmt.Errorf("%w: MinBlockShift %d < 4", ErrBadOptions, o.MinBlockShift)
	case o.NumClasses < 1 || o.NumClasses >= format.MaxClasses:
		return fmt.Errorf("%w: NumClasses %d out of range", ErrBadOptions, o.NumClasses)
	case o.MinBlockShift+o.NumClasses-1 > 30:
		return fmt.Errorf("%w: largest block 2^%d exceeds 2^30",
			ErrBadOptions, o.MinBlockShift+o.NumClasses-1)
	case o.CacheAlign < format.Alignment || o.CacheAlign&(o.CacheAlign-1) != 0:
		return fmt.Errorf("%w: CacheAlign %d is not a power of two >= %d",
			ErrBadOptions, o.CacheAlign, format.Alignment)
	case o.ListOrder != OrderAddress && o.ListOrder != OrderLIFO:
		return fmt.Errorf("%w: %v", ErrBadOptions, o.ListOrder)
	case o.ShrinkPolicy != ShrinkSplit && o.ShrinkPolicy != ShrinkKeep:
		return fmt.Errorf("%w: %v", ErrBadOptions, o.ShrinkPolicy)
	}
	return nil
}
