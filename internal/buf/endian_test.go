package buf

import "testing"

func TestU32LE(t *testing.T) {
	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89}

	if got := U32LE(data); got != 0x67452301 {
		t.Fatalf("U32LE = 0x%x, want 0x67452301", got)
	}
	if got := U32LE(data[1:]); got != 0x89674523 {
		t.Fatalf("U32LE = 0x%x, want 0x89674523", got)
	}
	if U32LE([]byte{0xAA}) != 0 {
		t.Fatalf("short reads should return 0")
	}
}
