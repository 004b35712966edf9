package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecache"
)

func TestBench_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "bench",
		"--vectors", "500", "--dim", "16", "--queries", "50", "--k", "5",
		"--concurrency", "3", "--parallelism", "2", "--compression", "lz4",
		"--metrics-addr", "127.0.0.1:0",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "insert   500 ops")
	assert.Contains(t, out, "search   50 ops")
	assert.Contains(t, out, "publish  snapshots/00000000000000000001.vec.lz4")
	assert.Contains(t, out, "restore  500 vectors")
	assert.Contains(t, out, "verify   50 queries identical after restore")
	assert.Contains(t, out, "/metrics")

	// The published snapshot is visible through CURRENT.
	out, err = execute(t, dir, "inspect", "--current", "--versions")
	require.NoError(t, err)
	assert.Contains(t, out, "versions:    1")
	assert.Contains(t, out, "current:     1 (snapshots/00000000000000000001.vec.lz4")
	assert.Contains(t, out, "compression: lz4")
	assert.Contains(t, out, "dimension:   16")
	assert.Contains(t, out, "vectors:     500")
}

func TestBench_RateLimitedL2(t *testing.T) {
	out, err := execute(t, t.TempDir(), "bench",
		"--vectors", "100", "--dim", "4", "--queries", "20", "--k", "3",
		"--metric", "l2", "--qps", "1000",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "verify   20 queries identical after restore")
}

func TestBench_InvalidArguments(t *testing.T) {
	tests := [][]string{
		{"--vectors", "0"},
		{"--k", "-1"},
		{"--concurrency", "0"},
		{"--metric", "hamming"},
	}
	for _, args := range tests {
		_, err := execute(t, t.TempDir(), append([]string{"bench"}, args...)...)
		require.ErrorIs(t, err, vecache.ErrInvalidArgument, "%v", args)
	}
}

func TestBench_DimensionConflict(t *testing.T) {
	t.Setenv("VECACHE_DIMENSION", "8")

	_, err := execute(t, t.TempDir(), "bench", "--dim", "16")
	var dm *vecache.ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, int64(0), int64(percentile(nil, 0.5)))
}
