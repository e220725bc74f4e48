// Package arena provides the growable byte range every allocator carves blocks
// from. An arena only ever grows at its high end until Reset; bytes handed out
// by Grow have unspecified contents.
//
// Addresses are offsets from the start of the arena: Low is always 0 and High
// is the current high-water mark. Bytes returns a view of [Low, High) that is
// only valid until the next Grow, so callers re-fetch it after growing.
package arena

import "errors"

// DefaultMaxSize is the default growth limit (1 GiB).
const DefaultMaxSize = 1 << 30

var (
	// ErrExhausted indicates growth would exceed the arena limit.
	ErrExhausted = errors.New("arena: exhausted")

	// ErrNegativeGrow indicates a negative growth request.
	ErrNegativeGrow = errors.New("arena: negative grow")

	// ErrClosed indicates use of a closed arena.
	ErrClosed = errors.New("arena: closed")
)

// Arena is a contiguous, monotonically growable byte range.
type Arena interface {
	// Grow appends n bytes at the high end and returns the offset of the
	// first new byte. On failure the arena is unchanged.
	Grow(n int) (int, error)

	// Low returns the lowest valid offset (always 0).
	Low() int

	// High returns the current high-water mark (exclusive).
	High() int

	// Limit returns the maximum High the arena can reach.
	Limit() int

	// Bytes returns the bytes in [Low, High).
	Bytes() []byte

	// Reset restores the arena to empty.
	Reset()

	// Close releases any OS resources held by the arena.
	Close() error
}
