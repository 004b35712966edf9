package searcher

import (
	"slices"

	"github.com/hupe1980/vecache/distance"
)

// Candidate is a scored row produced by a scan.
type Candidate struct {
	Key   uint64  // Key is the document key of the row.
	Score float32 // Score is the metric value against the query.
	Seq   uint64  // Seq is the insertion sequence number, used to break ties.
}

// TopK keeps the k best candidates fed to it.
//
// It is a binary heap whose root is the worst retained candidate, so a full
// heap rejects a non-improving candidate with one comparison. Storage is
// value-based; pushes do not allocate once the heap is full.
//
// TopK is NOT thread-safe.
type TopK struct {
	metric distance.Metric
	k      int
	items  []Candidate
}

// NewTopK creates a selector for the k best candidates under m.
func NewTopK(k int, m distance.Metric) *TopK {
	k = max(k, 0)
	return &TopK{
		metric: m,
		k:      k,
		items:  make([]Candidate, 0, min(k, 1024)),
	}
}

// K returns the bound.
func (t *TopK) K() int {
	return t.k
}

// Len returns the number of retained candidates.
func (t *TopK) Len() int {
	return len(t.items)
}

// Reset clears the retained candidates and rebinds k and m.
func (t *TopK) Reset(k int, m distance.Metric) {
	t.items = t.items[:0]
	t.k = max(k, 0)
	t.metric = m
}

// Full reports whether k candidates are retained.
func (t *TopK) Full() bool {
	return len(t.items) >= t.k
}

// Worst returns the worst retained candidate.
func (t *TopK) Worst() (Candidate, bool) {
	if len(t.items) == 0 {
		return Candidate{}, false
	}
	return t.items[0], true
}

// Push offers c to the selector.
func (t *TopK) Push(c Candidate) {
	if t.k == 0 {
		return
	}
	if len(t.items) < t.k {
		t.items = append(t.items, c)
		t.siftUp(len(t.items) - 1)
		return
	}
	if t.better(c, t.items[0]) {
		t.items[0] = c
		t.siftDown(0)
	}
}

// Merge offers every candidate retained by other.
func (t *TopK) Merge(other *TopK) {
	for _, c := range other.items {
		t.Push(c)
	}
}

// Results returns the retained candidates sorted best-first and empties the
// selector.
func (t *TopK) Results() []Candidate {
	out := slices.Clone(t.items)
	slices.SortFunc(out, t.Compare)
	t.items = t.items[:0]
	return out
}

// Compare orders a before b when a is the better candidate: better score
// first, then lower insertion sequence.
func (t *TopK) Compare(a, b Candidate) int {
	switch {
	case t.better(a, b):
		return -1
	case t.better(b, a):
		return 1
	default:
		return 0
	}
}

func (t *TopK) better(a, b Candidate) bool {
	if t.metric.Better(a.Score, b.Score) {
		return true
	}
	if t.metric.Better(b.Score, a.Score) {
		return false
	}
	return a.Seq < b.Seq
}

// worse is the heap order: the root is beaten by every other item.
func (t *TopK) worse(i, j int) bool {
	return t.better(t.items[j], t.items[i])
}

func (t *TopK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !t.worse(i, parent) {
			break
		}
		t.items[i], t.items[parent] = t.items[parent], t.items[i]
		i = parent
	}
}

func (t *TopK) siftDown(i int) {
	n := len(t.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && t.worse(right, left) {
			child = right
		}
		if !t.worse(child, i) {
			break
		}
		t.items[i], t.items[child] = t.items[child], t.items[i]
		i = child
	}
}
