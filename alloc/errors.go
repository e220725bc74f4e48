package alloc

import "errors"

var (
	// ErrTooLarge indicates the request exceeds the largest size class.
	ErrTooLarge = errors.New("alloc: request exceeds largest size class")

	// ErrNoSpace indicates the arena could not grow to satisfy a request.
	ErrNoSpace = errors.New("alloc: arena growth failed")

	// ErrBadPtr indicates a pointer that does not address a live block payload.
	ErrBadPtr = errors.New("alloc: bad pointer")

	// ErrDoubleFree indicates an attempt to free a block that is already free.
	ErrDoubleFree = errors.New("alloc: double free")

	// ErrCorrupt indicates Check found a structural invariant violation.
	ErrCorrupt = errors.New("alloc: heap corrupt")

	// ErrBadOptions indicates an invalid allocator configuration.
	ErrBadOptions = errors.New("alloc: invalid options")
)
