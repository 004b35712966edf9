package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vecache"
	"github.com/hupe1980/vecache/distance"
	"github.com/hupe1980/vecache/metrics/prom"
	"github.com/hupe1980/vecache/persistence"
	"github.com/hupe1980/vecache/snapshot"
	"github.com/hupe1980/vecache/testutil"
)

// errResultMismatch is returned when the restored store answers differently.
var errResultMismatch = errors.New("restored results differ from pre-save results")

type benchOptions struct {
	vectors     int
	dim         int
	queries     int
	k           int
	concurrency int
	qps         float64
	parallelism int
	metric      distance.Metric
	compression persistence.Compression
	seed        int64
	metricsAddr string
}

func newBenchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load-test insert, search and snapshot round trips",
		Long: "Generate random vectors, insert them, run top-k queries, publish a snapshot to the configured\n" +
			"backend, restore it and verify that the restored store returns identical results.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.benchOptions(cmd)
			if err != nil {
				return err
			}
			return a.runBench(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().Int("vectors", 10000, "number of vectors to insert")
	cmd.Flags().Int("dim", 0, "vector dimension (default VECACHE_DIMENSION, or 128)")
	cmd.Flags().Int("queries", 1000, "number of queries")
	cmd.Flags().Int("k", 10, "results per query")
	cmd.Flags().Int("concurrency", 4, "concurrent query workers")
	cmd.Flags().Float64("qps", 0, "query rate limit across all workers (0 = unlimited)")
	cmd.Flags().Int("parallelism", 0, "scan partitions per query (default VECACHE_PARALLELISM)")
	cmd.Flags().String("metric", "", "l2 or cosine (default VECACHE_METRIC)")
	cmd.Flags().Int64("seed", 42, "random seed")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus /metrics on this address (default VECACHE_METRICS_ADDR)")

	return cmd
}

func (a *app) benchOptions(cmd *cobra.Command) (benchOptions, error) {
	f := cmd.Flags()
	opts := benchOptions{parallelism: a.cfg.Parallelism, metricsAddr: a.cfg.MetricsAddr}

	opts.vectors, _ = f.GetInt("vectors")
	opts.dim, _ = f.GetInt("dim")
	opts.queries, _ = f.GetInt("queries")
	opts.k, _ = f.GetInt("k")
	opts.concurrency, _ = f.GetInt("concurrency")
	opts.qps, _ = f.GetFloat64("qps")
	opts.seed, _ = f.GetInt64("seed")
	if f.Changed("parallelism") {
		opts.parallelism, _ = f.GetInt("parallelism")
	}
	if f.Changed("metrics-addr") {
		opts.metricsAddr, _ = f.GetString("metrics-addr")
	}

	if opts.dim == 0 {
		opts.dim = a.cfg.Dimension
	}
	if opts.dim == 0 {
		opts.dim = 128
	}
	if a.cfg.Dimension != 0 && opts.dim != a.cfg.Dimension {
		return opts, &vecache.ErrDimensionMismatch{Expected: a.cfg.Dimension, Actual: opts.dim}
	}
	if opts.vectors <= 0 || opts.queries <= 0 || opts.k <= 0 || opts.concurrency <= 0 || opts.qps < 0 {
		return opts, fmt.Errorf("%w: vectors, queries, k and concurrency must be positive", vecache.ErrInvalidArgument)
	}

	metric := a.cfg.Metric
	if f.Changed("metric") {
		metric, _ = f.GetString("metric")
	}
	m, err := distance.ParseMetric(metric)
	if err != nil {
		return opts, fmt.Errorf("%w: %v", vecache.ErrInvalidArgument, err)
	}
	opts.metric = m

	if opts.compression, err = a.cfg.ParseCompression(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (a *app) runBench(ctx context.Context, out io.Writer, opts benchOptions) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	mc := prom.New(reg)

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(opts.metricsAddr, reg, out)
		if err != nil {
			return err
		}
		defer stop()
	}

	rng := testutil.NewRNG(opts.seed)
	var data, queries [][]float32
	if opts.metric == distance.MetricCosine {
		data = rng.UnitVectors(opts.vectors, opts.dim)
		queries = rng.UnitVectors(opts.queries, opts.dim)
	} else {
		data = rng.UniformRangeVectors(opts.vectors, opts.dim)
		queries = rng.UniformRangeVectors(opts.queries, opts.dim)
	}
	keys := testutil.SequentialKeys(1, opts.vectors)

	storeOpts := append(a.cfg.StoreOptions(),
		vecache.WithDimension(opts.dim),
		vecache.WithCapacity(opts.vectors),
		vecache.WithParallelism(opts.parallelism),
		vecache.WithLogger(a.logger),
		vecache.WithMetricsCollector(mc),
	)
	s := vecache.New(storeOpts...)
	defer s.Close()

	start := time.Now()
	for i, v := range data {
		if err := s.Insert(ctx, keys[i], v); err != nil {
			return err
		}
	}
	insertElapsed := time.Since(start)
	report(out, "insert", opts.vectors, insertElapsed)

	start = time.Now()
	before, latencies, err := runQueries(ctx, s, queries, opts)
	if err != nil {
		return err
	}
	queryElapsed := time.Since(start)
	report(out, "search", opts.queries, queryElapsed)
	_, _ = fmt.Fprintf(out, "%-8s p50=%s p99=%s\n", "latency", percentile(latencies, 0.50), percentile(latencies, 0.99))

	bs, err := openBlobStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	m := snapshot.New(bs, func(o *snapshot.Options) {
		o.Compression = opts.compression
	})

	start = time.Now()
	info, err := s.Publish(ctx, m)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%-8s %s: %d bytes (%s) in %s\n", "publish", info.Name, info.Size, info.Compression, time.Since(start).Round(time.Microsecond))

	start = time.Now()
	restored, _, err := vecache.Restore(ctx, m, storeOpts...)
	if err != nil {
		return err
	}
	defer restored.Close()
	_, _ = fmt.Fprintf(out, "%-8s %d vectors in %s\n", "restore", restored.Len(), time.Since(start).Round(time.Microsecond))

	after, _, err := runQueries(ctx, restored, queries, benchOptions{k: opts.k, concurrency: 1, metric: opts.metric})
	if err != nil {
		return err
	}
	for i := range before {
		if !slices.Equal(before[i], after[i]) {
			return fmt.Errorf("%w: query %d", errResultMismatch, i)
		}
	}
	_, _ = fmt.Fprintf(out, "%-8s %d queries identical after restore\n", "verify", len(before))
	return nil
}

// runQueries searches every query and returns results in query order.
func runQueries(ctx context.Context, s *vecache.Store, queries [][]float32, opts benchOptions) ([][]vecache.Result, []time.Duration, error) {
	results := make([][]vecache.Result, len(queries))
	latencies := make([]time.Duration, len(queries))

	var limiter *rate.Limiter
	if opts.qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.qps), max(1, int(opts.qps)/10))
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := range opts.concurrency {
		g.Go(func() error {
			for i := w; i < len(queries); i += opts.concurrency {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				} else if err := gctx.Err(); err != nil {
					return err
				}

				start := time.Now()
				res, err := s.Search(gctx, queries[i], opts.k, opts.metric)
				if err != nil {
					return err
				}
				latencies[i] = time.Since(start)
				results[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, latencies, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, out io.Writer) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	_, _ = fmt.Fprintf(out, "%-8s http://%s/metrics\n", "metrics", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func report(out io.Writer, op string, n int, d time.Duration) {
	_, _ = fmt.Fprintf(out, "%-8s %d ops in %s (%.0f ops/s)\n", op, n, d.Round(time.Microsecond), float64(n)/d.Seconds())
}

func percentile(ds []time.Duration, p float64) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	sorted := slices.Clone(ds)
	slices.Sort(sorted)
	i := int(p * float64(len(sorted)-1))
	return sorted[i].Round(time.Microsecond)
}
