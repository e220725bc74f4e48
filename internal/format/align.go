package format

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
func Align8(n int) int {
	return (n + AlignmentMask) & ^AlignmentMask
}

// AlignCache returns n aligned up to the next cache-line boundary.
//
// Example:
//
//	AlignCache(0)  = 0
//	AlignCache(1)  = 64
//	AlignCache(65) = 128
func AlignCache(n int) int {
	return (n + CacheLineMask) & ^CacheLineMask
}

// AlignUp returns n aligned up to a multiple of align, which must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) & ^(align - 1)
}

// Pad returns the number of bytes needed to move n up to a multiple of align.
func Pad(n, align int) int {
	return AlignUp(n, align) - n
}

// IsAligned reports whether n is a multiple of align (a power of two).
func IsAligned(n, align int) bool {
	return n&(align-1) == 0
}
