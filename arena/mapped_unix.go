//go:build linux || darwin

package arena

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mapped is an Arena backed by a single anonymous memory reservation of
// Limit bytes. Pages are committed lazily by the OS as the high-water mark
// advances, and the backing bytes never move, so slices from Bytes stay valid
// across Grow.
//
// NOT thread-safe.
type Mapped struct {
	raw      []byte // whole mapping, as returned by mmap
	mem      []byte // raw[:limit]
	high     int
	pageSize int
}

// NewMapped reserves limit bytes (rounded up to the OS page size) of private
// anonymous memory. A non-positive limit selects DefaultMaxSize.
func NewMapped(limit int) (*Mapped, error) {
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	pageSize := unix.Getpagesize()
	size := (limit + pageSize - 1) &^ (pageSize - 1)

	mem, err := unix.Mmap(
		-1,
		0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE,
	)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", size, err)
	}
	return &Mapped{raw: mem, mem: mem[:limit:limit], pageSize: pageSize}, nil
}

// Grow implements Arena.
func (m *Mapped) Grow(n int) (int, error) {
	if m.mem == nil {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, ErrNegativeGrow
	}
	old := m.high
	if n > len(m.mem)-old {
		return 0, fmt.Errorf("%w: high=%d grow=%d limit=%d", ErrExhausted, old, n, len(m.mem))
	}
	m.high += n
	return old, nil
}

// Low implements Arena.
func (m *Mapped) Low() int { return 0 }

// High implements Arena.
func (m *Mapped) High() int { return m.high }

// Limit implements Arena.
func (m *Mapped) Limit() int { return len(m.mem) }

// Bytes implements Arena.
func (m *Mapped) Bytes() []byte { return m.mem[:m.high] }

// Reset implements Arena. Touched pages are handed back to the OS.
func (m *Mapped) Reset() {
	if m.mem == nil || m.high == 0 {
		m.high = 0
		return
	}
	used := (m.high + m.pageSize - 1) &^ (m.pageSize - 1)
	used = min(used, len(m.raw))
	// Advice is best effort; the arena is logically empty either way.
	_ = unix.Madvise(m.raw[:used], unix.MADV_DONTNEED)
	m.high = 0
}

// Close implements Arena. Closing twice is a no-op.
func (m *Mapped) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.raw)
	m.raw = nil
	m.mem = nil
	m.high = 0
	return err
}

var _ Arena = (*Mapped)(nil)
