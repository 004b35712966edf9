// Package flat provides the exhaustive scan search strategy.
package flat

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecache/distance"
	"github.com/hupe1980/vecache/index"
	"github.com/hupe1980/vecache/searcher"
	"github.com/hupe1980/vecache/vectorstore"
)

// Compile-time check to ensure Flat satisfies index.Index.
var _ index.Index = (*Flat)(nil)

// blockRows is the number of rows scored per batch kernel call. The score
// scratch lives on the stack.
const blockRows = 256

// Options contains configuration options for the flat scan.
type Options struct {
	// Parallelism is the number of partitions scanned concurrently.
	// 0 or 1 scans sequentially; a negative value uses GOMAXPROCS.
	Parallelism int

	// MinPartitionRows is the smallest partition worth a goroutine. Stores
	// with fewer than 2*MinPartitionRows rows are always scanned sequentially.
	MinPartitionRows int
}

// DefaultOptions contains the default configuration options for the flat scan.
var DefaultOptions = Options{
	Parallelism:      0,
	MinPartitionRows: 4096,
}

// Flat scores every row of the view against the query.
type Flat struct {
	opts Options
}

// New creates a flat scan strategy.
func New(optFns ...func(o *Options)) *Flat {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Parallelism < 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	opts.MinPartitionRows = max(opts.MinPartitionRows, 1)

	return &Flat{opts: opts}
}

func (*Flat) Name() string { return "Flat" }

// Options returns the effective options.
func (f *Flat) Options() Options {
	return f.opts
}

// Search performs the exhaustive k-nearest-neighbor scan.
func (f *Flat) Search(v vectorstore.View, req index.Request) ([]searcher.Candidate, error) {
	if err := req.Validate(v); err != nil {
		return nil, err
	}
	if v.Len() == 0 {
		return nil, nil
	}

	parts := f.partitions(v.Len())
	if parts <= 1 {
		top := searcher.AcquireTopK(req.K, req.Metric)
		defer searcher.ReleaseTopK(top)

		scan(v, req, top)
		return top.Results(), nil
	}

	return f.searchParallel(v, req, parts)
}

func (f *Flat) partitions(n int) int {
	p := f.opts.Parallelism
	if p <= 1 {
		return 1
	}
	return min(p, n/f.opts.MinPartitionRows)
}

// searchParallel splits the slots into contiguous partitions, keeps a
// top-k per partition and merges them. Candidates carry their insertion
// sequence, so the merged order equals the sequential order.
func (f *Flat) searchParallel(v vectorstore.View, req index.Request, parts int) ([]searcher.Candidate, error) {
	n := v.Len()
	tops := make([]*searcher.TopK, parts)

	var g errgroup.Group
	for p := range parts {
		lo := p * n / parts
		hi := (p + 1) * n / parts
		top := searcher.AcquireTopK(req.K, req.Metric)
		tops[p] = top

		g.Go(func() error {
			scan(v.Slice(lo, hi), req, top)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := tops[0]
	for _, top := range tops[1:] {
		merged.Merge(top)
		searcher.ReleaseTopK(top)
	}
	defer searcher.ReleaseTopK(merged)

	return merged.Results(), nil
}

// scan feeds every row of v into top.
func scan(v vectorstore.View, req index.Request, top *searcher.TopK) {
	if req.Filter != nil {
		scanFiltered(v, req, top)
		return
	}

	var scores [blockRows]float32
	n := v.Len()
	dim := v.Dim

	for lo := 0; lo < n; lo += blockRows {
		hi := min(lo+blockRows, n)
		out := scores[:hi-lo]
		targets := v.Flat[lo*dim : hi*dim]

		switch req.Metric {
		case distance.MetricCosine:
			distance.CosineBatch(req.Query, targets, v.Norms[lo:hi], dim, out)
		default:
			distance.SquaredL2Batch(req.Query, targets, dim, out)
		}

		for i, s := range out {
			top.Push(searcher.Candidate{Key: v.Keys[lo+i], Score: s, Seq: v.Seqs[lo+i]})
		}
	}
}

func scanFiltered(v vectorstore.View, req index.Request, top *searcher.TopK) {
	qn := distance.Norm(req.Query)

	for i, key := range v.Keys {
		if !req.Filter.Contains(key) {
			continue
		}

		var s float32
		row := v.Row(i)
		switch req.Metric {
		case distance.MetricCosine:
			s = distance.CosineWithNorms(req.Query, row, qn, v.Norms[i])
		default:
			s = distance.SquaredL2(req.Query, row)
		}
		top.Push(searcher.Candidate{Key: key, Score: s, Seq: v.Seqs[i]})
	}
}
