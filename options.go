package vecache

import (
	"log/slog"

	"github.com/hupe1980/vecache/index"
	"github.com/hupe1980/vecache/index/flat"
	"github.com/hupe1980/vecache/vectorstore"
)

type options struct {
	dimension        int
	capacity         int
	duplicatePolicy  vectorstore.DuplicatePolicy
	index            index.Index
	parallelism      int
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures New and the load functions.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{
		duplicatePolicy:  vectorstore.DuplicateReplace,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.index == nil {
		o.index = flat.New(func(fo *flat.Options) {
			fo.Parallelism = o.parallelism
		})
	}
	return o
}

// WithDimension fixes the vector dimension at construction. Zero (the
// default) lets the first insert fix it. Loading a snapshot of a different
// dimension fails with ErrDimensionMismatch.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.dimension = dim
	}
}

// WithCapacity pre-allocates room for n vectors. It only takes effect once
// the dimension is known, either from WithDimension or from a load.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithDuplicatePolicy selects what Insert does with a key that is already
// present. The default, DuplicateReplace, overwrites the vector in place.
func WithDuplicatePolicy(p vectorstore.DuplicatePolicy) Option {
	return func(o *options) {
		o.duplicatePolicy = p
	}
}

// WithIndex replaces the search strategy. It takes precedence over
// WithParallelism.
func WithIndex(idx index.Index) Option {
	return func(o *options) {
		o.index = idx
	}
}

// WithParallelism splits each flat scan into up to n partitions searched
// concurrently. n <= 1 scans sequentially; a negative n uses GOMAXPROCS.
// Results are identical to the sequential scan.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel enables text logging to stderr at level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector. If nil is passed,
// NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}
