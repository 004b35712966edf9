package flat

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecache/distance"
	"github.com/hupe1980/vecache/index"
	"github.com/hupe1980/vecache/searcher"
	"github.com/hupe1980/vecache/vectorstore"
)

func exampleBuffer(t *testing.T) *vectorstore.Buffer {
	t.Helper()

	b := vectorstore.New(0, 0)
	_, err := b.Append(1, []float32{1, 0})
	require.NoError(t, err)
	_, err = b.Append(2, []float32{0, 1})
	require.NoError(t, err)
	_, err = b.Append(3, []float32{1, 1})
	require.NoError(t, err)
	return b
}

func randomBuffer(t testing.TB, n, dim int, seed int64) *vectorstore.Buffer {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	b := vectorstore.New(dim, n)
	v := make([]float32, dim)
	for i := range n {
		for j := range v {
			// Few distinct values so ties show up.
			v[j] = float32(rng.Intn(4))
		}
		_, err := b.Append(uint64(1000+i), v)
		require.NoError(t, err)
	}
	return b
}

func bruteForce(v vectorstore.View, q []float32, k int, m distance.Metric) []searcher.Candidate {
	fn, _ := distance.Provider(m)
	all := make([]searcher.Candidate, v.Len())
	for i := range all {
		all[i] = searcher.Candidate{Key: v.Keys[i], Score: fn(q, v.Row(i)), Seq: v.Seqs[i]}
	}
	top := searcher.NewTopK(k, m)
	slices.SortStableFunc(all, top.Compare)
	return all[:min(k, len(all))]
}

func resultKeys(cs []searcher.Candidate) []uint64 {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		out[i] = c.Key
	}
	return out
}

func TestSearchL2(t *testing.T) {
	f := New()
	b := exampleBuffer(t)

	res, err := f.Search(b.Scan(), index.Request{Query: []float32{1, 0}, K: 2, Metric: distance.MetricL2})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, uint64(1), res[0].Key)
	assert.Equal(t, float32(0), res[0].Score)
	assert.Equal(t, uint64(3), res[1].Key)
	assert.Equal(t, float32(1), res[1].Score)
}

func TestSearchCosine(t *testing.T) {
	f := New()
	b := exampleBuffer(t)

	res, err := f.Search(b.Scan(), index.Request{Query: []float32{2, 0}, K: 10, Metric: distance.MetricCosine})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 2}, resultKeys(res))
	assert.InDelta(t, 1, res[0].Score, 1e-6)
	assert.InDelta(t, 0, res[2].Score, 1e-6)
}

func TestSearchValidation(t *testing.T) {
	f := New()
	b := exampleBuffer(t)

	_, err := f.Search(b.Scan(), index.Request{Query: []float32{1, 0}, K: 0})
	require.ErrorIs(t, err, index.ErrInvalidArgument)

	_, err = f.Search(b.Scan(), index.Request{Query: []float32{1, 0}, K: 1, Metric: distance.Metric(9)})
	require.ErrorIs(t, err, index.ErrInvalidArgument)

	_, err = f.Search(b.Scan(), index.Request{Query: []float32{1, 0, 0}, K: 1})
	var dm *vectorstore.ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
}

func TestSearchEmptyView(t *testing.T) {
	f := New()
	b := vectorstore.New(3, 0)

	res, err := f.Search(b.Scan(), index.Request{Query: []float32{1, 0, 0}, K: 1})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchFilter(t *testing.T) {
	f := New()
	b := exampleBuffer(t)

	allow := roaring64.BitmapOf(2, 3)
	res, err := f.Search(b.Scan(), index.Request{Query: []float32{1, 0}, K: 3, Metric: distance.MetricL2, Filter: allow})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, resultKeys(res))

	res, err = f.Search(b.Scan(), index.Request{
		Query:  []float32{1, 0},
		K:      3,
		Metric: distance.MetricCosine,
		Filter: index.FilterFunc(func(key uint64) bool { return key == 1 }),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, resultKeys(res))
}

func TestSearchMatchesBruteForce(t *testing.T) {
	const dim = 13
	b := randomBuffer(t, 3000, dim, 11)
	view := b.Scan()
	rng := rand.New(rand.NewSource(12))

	q := make([]float32, dim)
	for i := range q {
		q[i] = float32(rng.Intn(4))
	}

	for _, m := range []distance.Metric{distance.MetricL2, distance.MetricCosine} {
		for _, k := range []int{1, 10, 3000, 5000} {
			want := bruteForce(view, q, k, m)

			got, err := New().Search(view, index.Request{Query: q, K: k, Metric: m})
			require.NoError(t, err)
			assert.Equal(t, resultKeys(want), resultKeys(got), "%s k=%d", m, k)
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	const dim = 8
	b := randomBuffer(t, 5000, dim, 3)
	view := b.Scan()

	seq := New()
	par := New(func(o *Options) {
		o.Parallelism = 4
		o.MinPartitionRows = 64
	})
	assert.Equal(t, 4, par.partitions(view.Len()))

	q := []float32{1, 2, 3, 0, 1, 2, 3, 0}
	for _, m := range []distance.Metric{distance.MetricL2, distance.MetricCosine} {
		for _, k := range []int{1, 5, 100, 5000} {
			req := index.Request{Query: q, K: k, Metric: m}

			want, err := seq.Search(view, req)
			require.NoError(t, err)
			got, err := par.Search(view, req)
			require.NoError(t, err)

			assert.Equal(t, want, got, "%s k=%d", m, k)
		}
	}
}

func TestTieBreakAfterRemove(t *testing.T) {
	b := vectorstore.New(2, 0)
	for key := uint64(1); key <= 256; key++ {
		_, err := b.Append(key, []float32{1, 1})
		require.NoError(t, err)
	}
	// Keys 256 and 255 move into slots 0 and 1.
	_, err := b.Remove(1)
	require.NoError(t, err)
	_, err = b.Remove(2)
	require.NoError(t, err)
	require.Equal(t, []uint64{256, 255}, b.Scan().Keys[:2])

	req := index.Request{Query: []float32{1, 1}, K: 3, Metric: distance.MetricL2}
	for name, f := range map[string]*Flat{
		"Sequential": New(),
		"Parallel": New(func(o *Options) {
			o.Parallelism = 4
			o.MinPartitionRows = 16
		}),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := f.Search(b.Scan(), req)
			require.NoError(t, err)
			assert.Equal(t, []uint64{3, 4, 5}, resultKeys(res))
		})
	}
}

func TestPartitions(t *testing.T) {
	f := New(func(o *Options) { o.Parallelism = 8 })
	assert.Equal(t, 1, f.partitions(100))
	assert.Equal(t, 2, f.partitions(2*DefaultOptions.MinPartitionRows))
	assert.Equal(t, 8, f.partitions(100*DefaultOptions.MinPartitionRows))

	auto := New(func(o *Options) { o.Parallelism = -1 })
	assert.Positive(t, auto.Options().Parallelism)
	assert.Equal(t, "Flat", auto.Name())
}

func BenchmarkSearch(b *testing.B) {
	for _, par := range []int{0, 4} {
		buf := randomBuffer(b, 20000, 128, 1)
		view := buf.Scan()
		f := New(func(o *Options) { o.Parallelism = par })
		q := view.Row(0)

		b.Run(map[int]string{0: "Sequential", 4: "Parallel4"}[par], func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_, _ = f.Search(view, index.Request{Query: q, K: 10, Metric: distance.MetricCosine})
			}
		})
	}
}
