package simd

import "math"

var (
	dotImpl       = dot4
	squaredL2Impl = squaredL24
)

// useKernels binds the kernel set for isa.
func useKernels(isa ISA) {
	dotImpl, squaredL2Impl = kernelsFor(isa)
}

func kernelsFor(isa ISA) (dot, squaredL2 func(a, b []float32) float32) {
	switch isa.Lanes() {
	case 16:
		return dot16, squaredL216
	case 8:
		return dot8, squaredL28
	default:
		return dot4, squaredL24
	}
}

// Dot calculates the dot product of two vectors.
//
// SAFETY: This function assumes len(a) == len(b). Only the first len(a)
// elements of b are read; a shorter b panics.
func Dot(a, b []float32) float32 {
	return dotImpl(a, b)
}

// SquaredL2 calculates the squared L2 distance.
//
// SAFETY: This function assumes len(a) == len(b). Only the first len(a)
// elements of b are read; a shorter b panics.
func SquaredL2(a, b []float32) float32 {
	return squaredL2Impl(a, b)
}

// DotBatch calculates dot products for a batch of vectors.
// targets is a flattened array of N vectors, each of dimension dim.
// out receives min(len(out), len(targets)/dim) results.
func DotBatch(query []float32, targets []float32, dim int, out []float32) {
	batch(dotImpl, query, targets, dim, out)
}

// SquaredL2Batch calculates squared L2 distance for a batch of vectors.
// targets is a flattened array of N vectors, each of dimension dim.
// out receives min(len(out), len(targets)/dim) results.
func SquaredL2Batch(query []float32, targets []float32, dim int, out []float32) {
	batch(squaredL2Impl, query, targets, dim, out)
}

func batch(kernel func(a, b []float32) float32, query []float32, targets []float32, dim int, out []float32) {
	if dim <= 0 || len(out) == 0 || len(query) < dim {
		return
	}

	q := query[:dim]
	n := min(len(out), len(targets)/dim)

	for i := 0; i < n; i++ {
		offset := i * dim
		out[i] = kernel(q, targets[offset:offset+dim:offset+dim])
	}
}

// Sqrt returns the float32 square root of x.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// DotReference is the scalar reference loop that every kernel is tested against.
func DotReference(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

// SquaredL2Reference is the scalar reference loop for SquaredL2.
func SquaredL2Reference(a, b []float32) float32 {
	var ret float32
	for i := range a {
		d := a[i] - b[i]
		ret += d * d
	}
	return ret
}

func dot4(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		x := a[i : i+4 : i+4]
		y := b[i : i+4 : i+4]
		s0 += x[0] * y[0]
		s1 += x[1] * y[1]
		s2 += x[2] * y[2]
		s3 += x[3] * y[3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

func dot8(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i+8 <= n; i += 8 {
		x := a[i : i+8 : i+8]
		y := b[i : i+8 : i+8]
		s0 += x[0] * y[0]
		s1 += x[1] * y[1]
		s2 += x[2] * y[2]
		s3 += x[3] * y[3]
		s4 += x[4] * y[4]
		s5 += x[5] * y[5]
		s6 += x[6] * y[6]
		s7 += x[7] * y[7]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return ((s0 + s1) + (s2 + s3)) + ((s4 + s5) + (s6 + s7))
}

func dot16(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var acc [16]float32
	i := 0
	for ; i+16 <= n; i += 16 {
		x := a[i : i+16 : i+16]
		y := b[i : i+16 : i+16]
		for j := range acc {
			acc[j] += x[j] * y[j]
		}
	}
	for ; i < n; i++ {
		acc[0] += a[i] * b[i]
	}
	return reduce16(&acc)
}

func squaredL24(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		x := a[i : i+4 : i+4]
		y := b[i : i+4 : i+4]
		d0 := x[0] - y[0]
		d1 := x[1] - y[1]
		d2 := x[2] - y[2]
		d3 := x[3] - y[3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3)
}

func squaredL28(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i+8 <= n; i += 8 {
		x := a[i : i+8 : i+8]
		y := b[i : i+8 : i+8]
		d0 := x[0] - y[0]
		d1 := x[1] - y[1]
		d2 := x[2] - y[2]
		d3 := x[3] - y[3]
		d4 := x[4] - y[4]
		d5 := x[5] - y[5]
		d6 := x[6] - y[6]
		d7 := x[7] - y[7]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
		s4 += d4 * d4
		s5 += d5 * d5
		s6 += d6 * d6
		s7 += d7 * d7
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return ((s0 + s1) + (s2 + s3)) + ((s4 + s5) + (s6 + s7))
}

func squaredL216(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var acc [16]float32
	i := 0
	for ; i+16 <= n; i += 16 {
		x := a[i : i+16 : i+16]
		y := b[i : i+16 : i+16]
		for j := range acc {
			d := x[j] - y[j]
			acc[j] += d * d
		}
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		acc[0] += d * d
	}
	return reduce16(&acc)
}

// reduce16 sums the accumulators pairwise to keep the rounding error low.
func reduce16(acc *[16]float32) float32 {
	for w := 8; w > 0; w /= 2 {
		for j := 0; j < w; j++ {
			acc[j] += acc[j+w]
		}
	}
	return acc[0]
}
