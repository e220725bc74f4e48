package format

import (
	"fmt"

	"github.com/joshuapare/mallockit/internal/buf"
)

// Header is the decoded form of a block header.
type Header struct {
	Class     uint8  // size class of this block
	Free      bool   // true while the block sits in a free list
	PrevClass uint8  // class of the preceding block, NoClass if none
	Next      uint32 // free-list link, NoLink if none
}

// ReadHeader decodes and validates the header at off.
func ReadHeader(b []byte, off int) (Header, error) {
	raw, ok := buf.Slice(b, off, HeaderSize)
	if !ok {
		return Header{}, fmt.Errorf("header at %d: %w", off, ErrTruncated)
	}
	if raw[TagOffset] != BlockTag {
		return Header{}, fmt.Errorf("header at %d: %w (0x%02X)", off, ErrBadTag, raw[TagOffset])
	}
	flags := raw[FlagsOffset]
	if flags&^FlagFree != 0 {
		return Header{}, fmt.Errorf("header at %d: %w (0x%02X)", off, ErrBadFlags, flags)
	}
	return Header{
		Class:     raw[ClassOffset],
		Free:      flags&FlagFree != 0,
		PrevClass: raw[PrevClassOffset],
		Next:      buf.U32LE(raw[NextOffset:]),
	}, nil
}

// WriteHeader encodes h at off. The caller guarantees off+HeaderSize <= len(b).
func WriteHeader(b []byte, off int, h Header) {
	var flags byte
	if h.Free {
		flags = FlagFree
	}
	b[off+ClassOffset] = h.Class
	b[off+FlagsOffset] = flags
	b[off+PrevClassOffset] = h.PrevClass
	b[off+TagOffset] = BlockTag
	PutU32(b, off+NextOffset, h.Next)
}

// The accessors below skip validation and are used on the hot paths once a
// header is known to be well formed.

// ClassAt returns the class byte of the header at off.
func ClassAt(b []byte, off int) uint8 { return b[off+ClassOffset] }

// SetClassAt overwrites the class byte of the header at off.
func SetClassAt(b []byte, off int, c uint8) { b[off+ClassOffset] = c }

// FreeAt reports whether the header at off is marked free.
func FreeAt(b []byte, off int) bool { return b[off+FlagsOffset]&FlagFree != 0 }

// SetFreeAt sets or clears the free flag of the header at off.
func SetFreeAt(b []byte, off int, free bool) {
	if free {
		b[off+FlagsOffset] |= FlagFree
	} else {
		b[off+FlagsOffset] &^= FlagFree
	}
}

// PrevClassAt returns the predecessor class recorded in the header at off.
func PrevClassAt(b []byte, off int) uint8 { return b[off+PrevClassOffset] }

// SetPrevClassAt overwrites the predecessor class of the header at off.
func SetPrevClassAt(b []byte, off int, c uint8) { b[off+PrevClassOffset] = c }

// NextAt returns the free-list link stored in the header at off.
func NextAt(b []byte, off int) uint32 { return ReadU32(b, off+NextOffset) }

// SetNextAt overwrites the free-list link stored in the header at off.
func SetNextAt(b []byte, off int, next uint32) { PutU32(b, off+NextOffset, next) }

// TaggedAt reports whether off holds a header tag. It does not check bounds.
func TaggedAt(b []byte, off int) bool { return b[off+TagOffset] == BlockTag }
