// Package persistence implements the binary codec of the vector buffer.
//
// Layout (little-endian, no padding):
//
//	offset 0         u64 dim
//	offset 8         u64 n
//	offset 16        dim*n f32 values, vector-major
//	offset 16+4*d*n  n u64 keys, slot order
//
// A file holding n vectors of dimension d is exactly 16 + 4*d*n + 8*n bytes.
// The codec writes no magic number, version or checksum; only the derived
// state of the buffer (norms, key map, sequence numbers) is rebuilt on load.
//
// On little-endian platforms the float and key arrays are written and read
// through byte views of the slices without per-element conversion.
package persistence
