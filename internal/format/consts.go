// Package format describes the in-band block header layout shared by the
// allocators. Headers are read and written through offset arithmetic on the
// arena byte slice; nothing here holds pointers into the arena.
package format

import "math"

const (
	// HeaderSize is the number of bytes preceding every block payload.
	//
	// Layout (little-endian):
	//
	//	Offset  Size  Description
	//	0x00    1     Size class of this block.
	//	0x01    1     Flags. Bit 0 set => block is free.
	//	0x02    1     Size class of the block immediately before this one in
	//	              address order, or NoClass for the first block.
	//	0x03    1     Tag. Always BlockTag for a well-formed header.
	//	0x04    4     Free-list link: offset of the next free block of the same
	//	              class, or NoLink. Meaningless while the block is in use.
	HeaderSize = 8

	// Alignment is the payload alignment every allocator guarantees.
	Alignment = 8

	// AlignmentMask is Alignment-1, for rounding.
	AlignmentMask = Alignment - 1

	// CacheLine is the alignment applied to the arena high-water mark on init.
	CacheLine = 64

	// CacheLineMask is CacheLine-1, for rounding.
	CacheLineMask = CacheLine - 1

	// NoClass marks the absence of a predecessor block.
	NoClass = 0xFF

	// MaxClasses bounds the number of size classes a header can describe
	// (NoClass is reserved).
	MaxClasses = NoClass

	// NoLink terminates a free list.
	NoLink = math.MaxUint32

	// BlockTag identifies a header written by the bucket allocator.
	BlockTag = 0xB7
)

// Header field offsets.
const (
	ClassOffset     = 0x00
	FlagsOffset     = 0x01
	PrevClassOffset = 0x02
	TagOffset       = 0x03
	NextOffset      = 0x04
)

// Flag bits.
const (
	FlagFree = 1 << 0
)

// SizeHeaderSize is the header used by the size-prefixed bump allocator:
// one little-endian uint64 holding the requested payload size.
const SizeHeaderSize = 8
