package searcher

import (
	"sync"

	"github.com/hupe1980/vecache/distance"
)

var topKPool = sync.Pool{
	New: func() any {
		return NewTopK(0, distance.MetricL2)
	},
}

// AcquireTopK retrieves a selector from the pool and prepares it for k and m.
func AcquireTopK(k int, m distance.Metric) *TopK {
	t := topKPool.Get().(*TopK)
	t.Reset(k, m)
	return t
}

// ReleaseTopK returns t to the pool. t must not be used afterwards.
func ReleaseTopK(t *TopK) {
	t.items = t.items[:0]
	topKPool.Put(t)
}
