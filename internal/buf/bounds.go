package buf

import "math"

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, false
	}
	return b[off:end:end], true
}

// Within reports whether the half-open range [off, off+n) lies inside [lo, hi).
// A zero-length range is within bounds when lo <= off <= hi.
func Within(off, n, lo, hi int) bool {
	if n < 0 || off < lo {
		return false
	}
	end, ok := AddOverflowSafe(off, n)
	return ok && end <= hi
}
