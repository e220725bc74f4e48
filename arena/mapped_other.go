//go:build !linux && !darwin

package arena

// Mapped falls back to a Heap where anonymous mappings are not wired up.
type Mapped struct {
	Heap
}

// NewMapped returns a heap-backed arena with the given limit.
func NewMapped(limit int) (*Mapped, error) {
	return &Mapped{Heap: *NewHeap(limit)}, nil
}

var _ Arena = (*Mapped)(nil)
