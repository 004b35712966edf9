package mem

import (
	"unsafe"
)

// Alignment is the byte alignment of every allocation (one cache line, and
// the width of an AVX-512 register).
const Alignment = 64

// AllocAligned allocates a byte slice of the given size with 64-byte alignment.
// Returns nil when size <= 0.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}

	buf := make([]byte, size+Alignment)

	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // alignment needs the address
	offset := int((Alignment - (addr & (Alignment - 1))) & (Alignment - 1))

	return buf[offset : offset+size : offset+size]
}

// AllocAlignedFloat32 allocates a zeroed float32 slice of length size, 64-byte aligned.
// Returns nil when size <= 0.
func AllocAlignedFloat32(size int) []float32 {
	if size <= 0 {
		return nil
	}

	b := AllocAligned(size * 4)
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), size) //nolint:gosec // AllocAligned guarantees 4-byte alignment
}

// GrowFloat32 returns a slice with the contents of s and room for at least
// extra more elements. When s already has the room it is returned unchanged;
// otherwise a new aligned backing array is allocated with doubling growth.
// The returned slice has the same length as s.
func GrowFloat32(s []float32, extra int) []float32 {
	need := len(s) + extra
	if need <= cap(s) {
		return s
	}

	newCap := max(need, 2*cap(s), 64)
	grown := AllocAlignedFloat32(newCap)
	copy(grown, s)
	return grown[:len(s)]
}
