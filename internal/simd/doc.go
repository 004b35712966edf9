// Package simd provides the float32 kernels behind every distance computation.
//
// The kernels are portable Go loops unrolled into independent accumulators so
// the compiler can keep them in registers and schedule the multiply-adds in
// parallel. The unroll width (lanes) is picked once at init from the CPU
// features reported by golang.org/x/sys/cpu:
//
//   - Generic: 4 lanes
//   - NEON / AVX2: 8 lanes (one 256-bit register of float32, or two 128-bit)
//   - SVE2 / AVX-512: 16 lanes
//
// Set VECACHE_SIMD=generic|neon|sve2|avx2|avx512 to force a selection. An
// override naming an ISA the CPU lacks is ignored.
//
// Every kernel produces results within float32 rounding of the scalar
// reference loop; accumulation order differs between lane widths, so results
// are not bit-identical across machines.
package simd
