package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hupe1980/vecache/internal/simd"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return simd.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return simd.SquaredL2(a, b)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return simd.Sqrt(simd.Dot(v, v))
}

// Cosine calculates the cosine similarity of two vectors.
// Returns 0 if either vector has zero norm.
func Cosine(a, b []float32) float32 {
	return CosineWithNorms(a, b, Norm(a), Norm(b))
}

// CosineWithNorms calculates the cosine similarity using precomputed norms.
// Returns 0 if either norm is zero.
func CosineWithNorms(a, b []float32, normA, normB float32) float32 {
	denom := normA * normB
	if denom == 0 {
		return 0
	}
	return simd.Dot(a, b) / denom
}

// SquaredL2Batch writes the squared L2 distance between query and each
// dim-sized row of targets into out.
func SquaredL2Batch(query, targets []float32, dim int, out []float32) {
	simd.SquaredL2Batch(query, targets, dim, out)
}

// CosineBatch writes the cosine similarity between query and each dim-sized
// row of targets into out. norms holds the precomputed norm of each row; when
// norms is nil the row norms are computed on the fly.
func CosineBatch(query, targets []float32, norms []float32, dim int, out []float32) {
	if dim <= 0 || len(query) < dim {
		return
	}
	simd.DotBatch(query, targets, dim, out)

	qn := Norm(query[:dim])
	n := min(len(out), len(targets)/dim)

	for i := 0; i < n; i++ {
		var rn float32
		if norms != nil {
			rn = norms[i]
		} else {
			off := i * dim
			rn = Norm(targets[off : off+dim])
		}
		denom := qn * rn
		if denom == 0 {
			out[i] = 0
			continue
		}
		out[i] /= denom
	}
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := simd.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	simd.ScaleInPlace(v, 1/simd.Sqrt(norm2))
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the scoring function used for vector comparison.
type Metric int

const (
	// MetricL2 scores by squared Euclidean distance (lower is better).
	MetricL2 Metric = iota
	// MetricCosine scores by cosine similarity (higher is better).
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses "l2" or "cosine" (case-insensitive).
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "squaredl2", "euclidean":
		return MetricL2, nil
	case "cosine", "cos":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricL2 || m == MetricCosine
}

// IsSimilarity reports whether higher scores are better under m.
func (m Metric) IsSimilarity() bool {
	return m == MetricCosine
}

// Better reports whether score a ranks strictly ahead of score b.
func (m Metric) Better(a, b float32) bool {
	if m.IsSimilarity() {
		return a > b
	}
	return a < b
}

// Worst returns a score that every real score beats or ties.
func (m Metric) Worst() float32 {
	if m.IsSimilarity() {
		return float32(math.Inf(-1))
	}
	return float32(math.Inf(1))
}

// Func is a function type for scoring two vectors.
type Func func(a, b []float32) float32

// Provider returns the scoring function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine:
		return Cosine, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
