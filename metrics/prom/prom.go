// Package prom exports vecache store metrics to Prometheus.
//
//	c := prom.New(prometheus.DefaultRegisterer)
//	s := vecache.New(vecache.WithMetricsCollector(c))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecache"
)

// Compile-time check to ensure Collector satisfies vecache.MetricsCollector.
var _ vecache.MetricsCollector = (*Collector)(nil)

// Options configures a Collector.
type Options struct {
	// Namespace prefixes every metric name. Default: "vecache".
	Namespace string
	// ConstLabels are attached to every metric, e.g. a cache name.
	ConstLabels prometheus.Labels
	// Buckets are the latency histogram buckets in seconds.
	// Default: prometheus.DefBuckets plus sub-millisecond buckets.
	Buckets []float64
}

// Collector implements vecache.MetricsCollector with Prometheus metrics.
type Collector struct {
	ops           *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	getLookups    *prometheus.CounterVec
	searchResults prometheus.Histogram
	snapshotBytes *prometheus.CounterVec
	vectors       prometheus.Gauge
}

// New creates a Collector and registers its metrics with reg. A nil reg
// leaves the metrics unregistered.
func New(reg prometheus.Registerer, optFns ...func(o *Options)) *Collector {
	opts := Options{
		Namespace: "vecache",
		Buckets:   append([]float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001}, prometheus.DefBuckets...),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "operations_total",
			Help:        "Store operations by type and outcome",
			ConstLabels: opts.ConstLabels,
		}, []string{"op", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of store operations",
			ConstLabels: opts.ConstLabels,
			Buckets:     opts.Buckets,
		}, []string{"op", "status"}),
		getLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "get_lookups_total",
			Help:        "Point lookups by result",
			ConstLabels: opts.ConstLabels,
		}, []string{"result"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "search_results",
			Help:        "Number of entries returned per successful search",
			ConstLabels: opts.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		}),
		snapshotBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "snapshot_bytes_total",
			Help:        "Encoded bytes moved by successful persistence operations",
			ConstLabels: opts.ConstLabels,
		}, []string{"op"}),
		vectors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "vectors",
			Help:        "Current number of stored vectors",
			ConstLabels: opts.ConstLabels,
		}),
	}

	if reg != nil {
		reg.MustRegister(c.ops, c.latency, c.getLookups, c.searchResults, c.snapshotBytes, c.vectors)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.ops.WithLabelValues(op, s).Inc()
	c.latency.WithLabelValues(op, s).Observe(d.Seconds())
}

// RecordInsert implements vecache.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, err)
}

// RecordDelete implements vecache.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.observe("delete", d, err)
}

// RecordGet implements vecache.MetricsCollector.
func (c *Collector) RecordGet(hit bool) {
	if hit {
		c.getLookups.WithLabelValues("hit").Inc()
		return
	}
	c.getLookups.WithLabelValues("miss").Inc()
}

// RecordSearch implements vecache.MetricsCollector.
func (c *Collector) RecordSearch(_ int, results int, d time.Duration, err error) {
	c.observe("search", d, err)
	if err == nil {
		c.searchResults.Observe(float64(results))
	}
}

// RecordSnapshot implements vecache.MetricsCollector.
func (c *Collector) RecordSnapshot(op string, bytes int64, d time.Duration, err error) {
	c.observe(op, d, err)
	if err == nil {
		c.snapshotBytes.WithLabelValues(op).Add(float64(bytes))
	}
}

// RecordSize implements vecache.MetricsCollector.
func (c *Collector) RecordSize(n int) {
	c.vectors.Set(float64(n))
}
