package persistence

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// nativeLittleEndian reports whether raw slice memory already has the file's
// byte order.
var nativeLittleEndian = isLittleEndian()

func isLittleEndian() bool {
	var test uint16 = 0x0001
	return *(*byte)(unsafe.Pointer(&test)) == 1
}

func float32Bytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}

func uint64Bytes(s []uint64) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
}

// putFloat32s writes s into dst in file byte order. dst must hold 4*len(s).
func putFloat32s(dst []byte, s []float32) {
	if nativeLittleEndian {
		copy(dst, float32Bytes(s))
		return
	}
	for i, f := range s {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func putUint64s(dst []byte, s []uint64) {
	if nativeLittleEndian {
		copy(dst, uint64Bytes(s))
		return
	}
	for i, k := range s {
		binary.LittleEndian.PutUint64(dst[i*8:], k)
	}
}

// getFloat32s fills dst from src in file byte order. src must hold 4*len(dst).
func getFloat32s(dst []float32, src []byte) {
	if nativeLittleEndian {
		copy(float32Bytes(dst), src)
		return
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

func getUint64s(dst []uint64, src []byte) {
	if nativeLittleEndian {
		copy(uint64Bytes(dst), src)
		return
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(src[i*8:])
	}
}
