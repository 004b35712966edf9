package testutil

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/vecache/distance"
)

// SearchResult is a ground-truth search hit.
type SearchResult struct {
	Key   uint64
	Score float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

func (r *RNG) vectors(num, dim int, gen func() float32) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range num {
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = gen()
		}
		vectors[i] = vec
	}
	return vectors
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	return r.vectors(num, dimensions, func() float32 { return r.rand.Float32() })
}

// UniformRangeVectors generates random vectors with values in range [-1, 1).
func (r *RNG) UniformRangeVectors(num int, dimensions int) [][]float32 {
	return r.vectors(num, dimensions, func() float32 { return r.rand.Float32()*2 - 1 })
}

// GaussianVectors generates random vectors with values from a standard normal distribution.
func (r *RNG) GaussianVectors(num int, dimensions int) [][]float32 {
	return r.vectors(num, dimensions, func() float32 { return float32(r.rand.NormFloat64()) })
}

// UnitVectors generates L2-normalized random vectors, uniform on the
// hypersphere. Embedding models emit vectors of this shape.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	vectors := r.GaussianVectors(num, dimensions)
	for _, vec := range vectors {
		if !distance.NormalizeL2InPlace(vec) {
			vec[0] = 1
		}
	}
	return vectors
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dimensions int) []float32 {
	return r.UnitVectors(1, dimensions)[0]
}

// ClusteredVectors generates vectors clustered around random unit centroids.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)

	i := 0
	return r.vectors(num, dim, func() float32 {
		c := centroids[(i/dim)%clusters]
		v := c[i%dim] + float32(r.rand.NormFloat64())*spread
		i++
		return v
	})
}

// Perturb returns a copy of v with Gaussian noise of the given scale added.
// Useful for simulating a near-duplicate cache lookup.
func (r *RNG) Perturb(v []float32, scale float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x + float32(r.rand.NormFloat64())*scale
	}
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
// Cache lookups follow this shape: a few entries are hit most of the time.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// ExactTopK computes ground truth by scoring every vector. keys[i] names
// vectors[i]; ties keep index order.
func ExactTopK(query []float32, vectors [][]float32, keys []uint64, k int, m distance.Metric) []SearchResult {
	score, err := distance.Provider(m)
	if err != nil {
		return nil
	}

	all := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		all[i] = SearchResult{Key: keys[i], Score: score(query, v)}
	}
	slices.SortStableFunc(all, func(a, b SearchResult) int {
		if m.IsSimilarity() {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Score, b.Score)
	})
	return all[:min(k, len(all))]
}

// ComputeRecall computes recall@k by comparing results against ground truth.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[uint64]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].Key] = struct{}{}
	}

	hits := 0
	for _, r := range approximate[:k] {
		if _, ok := truthSet[r.Key]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}

// SequentialKeys returns the keys start, start+1, ... of length n.
func SequentialKeys(start uint64, n int) []uint64 {
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = start + uint64(i)
	}
	return keys
}
