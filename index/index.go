// Package index defines the search strategy contract used by the store.
//
// A strategy is handed a read-only view of the vector buffer (while the caller
// holds the read lock) and returns scored candidates. The flat scan in
// index/flat is the only strategy today; a graph index can implement the same
// interface without changing the store.
package index

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecache/distance"
	"github.com/hupe1980/vecache/searcher"
	"github.com/hupe1980/vecache/vectorstore"
)

// ErrInvalidArgument is returned for a malformed request, such as k <= 0.
var ErrInvalidArgument = errors.New("invalid argument")

// Filter restricts a search to an allow-set of document keys.
// *roaring64.Bitmap satisfies it.
type Filter interface {
	Contains(key uint64) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(key uint64) bool

// Contains calls f(key).
func (f FilterFunc) Contains(key uint64) bool {
	return f(key)
}

// Request is a top-k query.
type Request struct {
	Query  []float32
	K      int
	Metric distance.Metric
	Filter Filter // nil means every row is a candidate
}

// Validate checks the request against a view.
func (r Request) Validate(v vectorstore.View) error {
	if r.K <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, r.K)
	}
	if !r.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %s", ErrInvalidArgument, r.Metric)
	}
	if len(r.Query) != v.Dim {
		return &vectorstore.ErrDimensionMismatch{Expected: v.Dim, Actual: len(r.Query)}
	}
	return nil
}

// Index is a search strategy over a vector buffer view.
type Index interface {
	// Name returns a short identifier used in logs.
	Name() string

	// Search returns up to req.K candidates sorted best-first. Equal scores
	// are ordered by insertion sequence.
	Search(v vectorstore.View, req Request) ([]searcher.Candidate, error)
}
