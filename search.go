package vecache

import (
	"github.com/hupe1980/vecache/index"
	"github.com/hupe1980/vecache/searcher"
)

// Result is one search hit.
type Result struct {
	Key   uint64
	Score float32
}

type searchOptions struct {
	filter index.Filter
}

// SearchOption configures a single Search or SearchBest call.
type SearchOption func(*searchOptions)

// WithFilter restricts candidates to keys for which f.Contains reports true.
// A *roaring64.Bitmap works directly:
//
//	tenant := roaring64.BitmapOf(1, 2, 3)
//	results, err := store.Search(ctx, q, 5, distance.MetricCosine, vecache.WithFilter(tenant))
func WithFilter(f index.Filter) SearchOption {
	return func(o *searchOptions) {
		o.filter = f
	}
}

func toResults(cands []searcher.Candidate) []Result {
	if len(cands) == 0 {
		return []Result{}
	}
	out := make([]Result, len(cands))
	for i, c := range cands {
		out[i] = Result{Key: c.Key, Score: c.Score}
	}
	return out
}
