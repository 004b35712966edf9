package vecache

import (
	"sync/atomic"
	"time"
)

// Snapshot operation names passed to MetricsCollector.RecordSnapshot.
const (
	OpSave    = "save"
	OpLoad    = "load"
	OpReload  = "reload"
	OpPublish = "publish"
	OpRestore = "restore"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; metrics/prom
// provides a Prometheus implementation.
//
// Collectors observe outcomes only. They are called after the lock is
// released and must be safe for concurrent use.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordGet is called after each point lookup.
	RecordGet(hit bool)

	// RecordSearch is called after each search. results is the number of
	// entries returned.
	RecordSearch(k, results int, duration time.Duration, err error)

	// RecordSnapshot is called after each persistence operation. op is one
	// of the Op constants; bytes is the encoded size when known.
	RecordSnapshot(op string, bytes int64, duration time.Duration, err error)

	// RecordSize is called with the live vector count after it changes.
	RecordSize(n int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)                  {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)                  {}
func (NoopMetricsCollector) RecordGet(bool)                                     {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordSnapshot(string, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordSize(int)                                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	GetHits          atomic.Int64
	GetMisses        atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchResults    atomic.Int64
	SearchTotalNanos atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
	SnapshotBytes    atomic.Int64
	Size             atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(hit bool) {
	if hit {
		b.GetHits.Add(1)
	} else {
		b.GetMisses.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, results int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchResults.Add(int64(results))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(_ string, bytes int64, _ time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	b.SnapshotBytes.Add(bytes)
}

// RecordSize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSize(n int) {
	b.Size.Store(int64(n))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		GetHits:        b.GetHits.Load(),
		GetMisses:      b.GetMisses.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchResults:  b.SearchResults.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SnapshotCount:  b.SnapshotCount.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
		SnapshotBytes:  b.SnapshotBytes.Load(),
		Size:           b.Size.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	DeleteCount    int64
	DeleteErrors   int64
	GetHits        int64
	GetMisses      int64
	SearchCount    int64
	SearchErrors   int64
	SearchResults  int64
	SearchAvgNanos int64
	SnapshotCount  int64
	SnapshotErrors int64
	SnapshotBytes  int64
	Size           int64
}
