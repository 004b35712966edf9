package vecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecache/blobstore"
	"github.com/hupe1980/vecache/distance"
	"github.com/hupe1980/vecache/index"
	"github.com/hupe1980/vecache/internal/guard"
	"github.com/hupe1980/vecache/persistence"
	"github.com/hupe1980/vecache/searcher"
	"github.com/hupe1980/vecache/snapshot"
	"github.com/hupe1980/vecache/vectorstore"
)

// Store is a concurrent in-memory vector store.
//
// Searches run in parallel with each other. Inserts and deletes take the
// write lock briefly and exclude searches while they run. A Store must be
// created with New or one of the load functions.
type Store struct {
	buf     *guard.RW[vectorstore.Buffer]
	index   index.Index
	logger  *Logger
	metrics MetricsCollector
	opts    options
	closed  atomic.Bool
}

// New creates an empty store.
func New(opts ...Option) *Store {
	o := applyOptions(opts)

	buf := vectorstore.New(o.dimension, o.capacity)
	buf.SetDuplicatePolicy(o.duplicatePolicy)

	return newStore(buf, o)
}

func newStore(buf *vectorstore.Buffer, o options) *Store {
	s := &Store{
		buf:     guard.New(buf),
		index:   o.index,
		logger:  o.logger,
		metrics: o.metricsCollector,
		opts:    o,
	}
	s.metrics.RecordSize(buf.Len())
	return s
}

// adopt applies construction options to a freshly decoded buffer.
func adopt(buf *vectorstore.Buffer, o options) (*vectorstore.Buffer, error) {
	if o.dimension > 0 && buf.Dimension() != 0 && buf.Dimension() != o.dimension {
		return nil, &ErrDimensionMismatch{Expected: o.dimension, Actual: buf.Dimension()}
	}
	if o.dimension > 0 && buf.Dimension() == 0 {
		buf = vectorstore.New(o.dimension, o.capacity)
	}
	buf.SetDuplicatePolicy(o.duplicatePolicy)
	return buf, nil
}

// Insert adds vector under key. The first insert into a store without a
// fixed dimension sets it. An existing key is overwritten under the default
// DuplicateReplace policy and rejected with ErrDuplicateKey under
// DuplicateReject. The vector is copied.
func (s *Store) Insert(ctx context.Context, key uint64, vector []float32) error {
	if s.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	var replaced bool
	err := s.buf.Write(func(b *vectorstore.Buffer) error {
		if s.closed.Load() {
			return ErrClosed
		}
		var err error
		if replaced, err = b.Append(key, vector); err == nil && !replaced {
			s.metrics.RecordSize(b.Len())
		}
		return err
	})

	s.metrics.RecordInsert(time.Since(start), err)
	s.logger.LogInsert(ctx, key, len(vector), replaced, err)
	return err
}

// Delete removes key and returns a copy of its vector.
func (s *Store) Delete(ctx context.Context, key uint64) ([]float32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	var vec []float32
	err := s.buf.Write(func(b *vectorstore.Buffer) error {
		if s.closed.Load() {
			return ErrClosed
		}
		var err error
		if vec, err = b.Remove(key); err == nil {
			s.metrics.RecordSize(b.Len())
		}
		return err
	})

	s.metrics.RecordDelete(time.Since(start), err)
	s.logger.LogDelete(ctx, key, err)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Get returns a copy of the vector stored under key.
func (s *Store) Get(key uint64) ([]float32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var vec []float32
	err := s.buf.Read(func(b *vectorstore.Buffer) error {
		v, err := b.Get(key)
		if err != nil {
			return err
		}
		vec = slices.Clone(v)
		return nil
	})
	s.metrics.RecordGet(err == nil)
	return vec, err
}

// Contains reports whether key is stored.
func (s *Store) Contains(key uint64) bool {
	var ok bool
	_ = s.buf.Read(func(b *vectorstore.Buffer) error {
		ok = b.Contains(key)
		return nil
	})
	return ok
}

// Keys returns a copy of the stored keys in slot order.
func (s *Store) Keys() []uint64 {
	var keys []uint64
	_ = s.buf.Read(func(b *vectorstore.Buffer) error {
		keys = slices.Clone(b.Scan().Keys)
		return nil
	})
	return keys
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	var n int
	_ = s.buf.Read(func(b *vectorstore.Buffer) error {
		n = b.Len()
		return nil
	})
	return n
}

// Dim returns the vector dimension, or 0 while it is unset.
func (s *Store) Dim() int {
	var d int
	_ = s.buf.Read(func(b *vectorstore.Buffer) error {
		d = b.Dimension()
		return nil
	})
	return d
}

// Index returns the search strategy in use.
func (s *Store) Index() index.Index {
	return s.index
}

// Search returns up to k entries ranked best-first under metric: ascending
// squared distance for MetricL2, descending similarity for MetricCosine.
// Equal scores keep insertion order. With k >= Len all entries are returned.
//
// Errors are checked in this order: k <= 0 and an unknown metric give
// ErrInvalidArgument, a query of the wrong length gives
// ErrDimensionMismatch, and a store without vectors gives ErrEmptyStore.
func (s *Store) Search(ctx context.Context, query []float32, k int, metric distance.Metric, opts ...SearchOption) ([]Result, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	cands, err := s.search(query, k, metric, opts)
	results := toResults(cands)

	s.metrics.RecordSearch(k, len(cands), time.Since(start), err)
	s.logger.LogSearch(ctx, k, len(cands), err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchBest returns the single best entry whose score is strictly better
// than threshold: similarity above it for MetricCosine, distance below it
// for MetricL2. It returns ErrNoMatch when no entry qualifies.
func (s *Store) SearchBest(ctx context.Context, query []float32, threshold float32, metric distance.Metric, opts ...SearchOption) (Result, error) {
	if s.closed.Load() {
		return Result{}, ErrClosed
	}

	start := time.Now()
	cands, err := s.search(query, 1, metric, opts)
	if err == nil && (len(cands) == 0 || !metric.Better(cands[0].Score, threshold)) {
		err = ErrNoMatch
	}

	found := 0
	if err == nil {
		found = 1
	}
	s.metrics.RecordSearch(1, found, time.Since(start), err)
	s.logger.LogSearch(ctx, 1, found, err)
	if err != nil {
		return Result{}, err
	}
	return Result{Key: cands[0].Key, Score: cands[0].Score}, nil
}

func (s *Store) search(query []float32, k int, metric distance.Metric, opts []SearchOption) ([]searcher.Candidate, error) {
	var so searchOptions
	for _, fn := range opts {
		fn(&so)
	}

	req := index.Request{Query: query, K: k, Metric: metric, Filter: so.filter}

	var cands []searcher.Candidate
	err := s.buf.Read(func(b *vectorstore.Buffer) error {
		v := b.Scan()
		if v.Dim == 0 {
			// No dimension yet: only argument errors can precede emptiness.
			if err := req.Validate(vectorstore.View{Dim: len(query)}); err != nil {
				return err
			}
			return ErrEmptyStore
		}
		if err := req.Validate(v); err != nil {
			return err
		}
		if v.Len() == 0 {
			return ErrEmptyStore
		}

		var err error
		cands, err = s.index.Search(v, req)
		return err
	})
	return cands, err
}

// Save writes the store to filename atomically. The store stays readable
// while the file is written; writers wait until it is done.
func (s *Store) Save(ctx context.Context, filename string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	var (
		n    int
		size int64
	)
	err := s.buf.Read(func(b *vectorstore.Buffer) error {
		v := b.Scan()
		n, size = v.Len(), persistence.EncodedSize(v.Dim, v.Len())
		return persistence.Save(filename, v)
	})

	s.metrics.RecordSnapshot(OpSave, size, time.Since(start), err)
	s.logger.LogSave(ctx, filename, n, err)
	return err
}

// WriteTo writes the store in the snapshot layout to w. It implements
// io.WriterTo.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	cw := &countingWriter{w: w}
	err := s.buf.Read(func(b *vectorstore.Buffer) error {
		return persistence.Encode(cw, b.Scan())
	})
	return cw.n, err
}

// SaveBlob writes the store to name in bs, optionally compressed.
func (s *Store) SaveBlob(ctx context.Context, bs blobstore.BlobStore, name string, c persistence.Compression) error {
	if s.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	var n int
	cw := &countingWriter{}
	err := s.buf.Read(func(b *vectorstore.Buffer) error {
		w, err := bs.Create(ctx, name)
		if err != nil {
			return err
		}
		cw.w = w

		v := b.Scan()
		n = v.Len()
		if err := persistence.EncodeCompressed(cw, v, c); err != nil {
			_ = w.Abort()
			return err
		}
		if err := w.Sync(); err != nil {
			_ = w.Abort()
			return err
		}
		return w.Close()
	})

	s.metrics.RecordSnapshot(OpSave, cw.n, time.Since(start), err)
	s.logger.LogSave(ctx, name, n, err)
	return err
}

// Publish writes a new versioned snapshot through m and points CURRENT at it.
func (s *Store) Publish(ctx context.Context, m *snapshot.Manager) (snapshot.Info, error) {
	if s.closed.Load() {
		return snapshot.Info{}, ErrClosed
	}

	start := time.Now()
	var (
		info snapshot.Info
		n    int
	)
	err := s.buf.Read(func(b *vectorstore.Buffer) error {
		v := b.Scan()
		n = v.Len()

		var err error
		info, err = m.Publish(ctx, v)
		return err
	})

	s.metrics.RecordSnapshot(OpPublish, info.Size, time.Since(start), err)
	s.logger.LogSave(ctx, info.Name, n, err)
	return info, err
}

// Reload replaces the contents of the store with the snapshot at filename.
// The file is decoded fully before the swap, so searches keep seeing the old
// contents until the new ones are complete. On error the store is unchanged.
func (s *Store) Reload(ctx context.Context, filename string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	buf, err := persistence.Load(filename)
	if err == nil {
		buf, err = adopt(buf, s.opts)
	}
	if err == nil {
		// Close may have run while the file was decoding.
		err = s.buf.Replace(func(*vectorstore.Buffer) (*vectorstore.Buffer, error) {
			if s.closed.Load() {
				return nil, ErrClosed
			}
			s.metrics.RecordSize(buf.Len())
			return buf, nil
		})
	}

	var n int
	var size int64
	if buf != nil {
		n, size = buf.Len(), persistence.EncodedSize(buf.Dimension(), buf.Len())
	}
	s.metrics.RecordSnapshot(OpReload, size, time.Since(start), err)
	s.logger.LogLoad(ctx, filename, n, err)
	return err
}

// Close releases the vectors. Later calls that can fail return ErrClosed.
func (s *Store) Close() error {
	return s.buf.Replace(func(*vectorstore.Buffer) (*vectorstore.Buffer, error) {
		if !s.closed.CompareAndSwap(false, true) {
			return nil, ErrClosed
		}
		s.metrics.RecordSize(0)
		return vectorstore.New(0, 0), nil
	})
}

// Load reads a store saved with Save.
func Load(ctx context.Context, filename string, opts ...Option) (*Store, error) {
	o := applyOptions(opts)

	start := time.Now()
	buf, err := persistence.Load(filename)
	if err == nil {
		buf, err = adopt(buf, o)
	}
	return finishLoad(ctx, buf, o, OpLoad, filename, start, err)
}

// ReadFrom reads a store in the snapshot layout from r.
func ReadFrom(r io.Reader, opts ...Option) (*Store, error) {
	o := applyOptions(opts)

	buf, err := persistence.Decode(r)
	if err != nil {
		return nil, err
	}
	if buf, err = adopt(buf, o); err != nil {
		return nil, err
	}
	return newStore(buf, o), nil
}

// LoadBlob reads a store written by SaveBlob.
func LoadBlob(ctx context.Context, bs blobstore.BlobStore, name string, c persistence.Compression, opts ...Option) (*Store, error) {
	o := applyOptions(opts)

	start := time.Now()
	buf, err := loadBlob(ctx, bs, name, c)
	if err == nil {
		buf, err = adopt(buf, o)
	}
	return finishLoad(ctx, buf, o, OpLoad, name, start, err)
}

// Restore reads the snapshot that m's CURRENT pointer names.
func Restore(ctx context.Context, m *snapshot.Manager, opts ...Option) (*Store, snapshot.Info, error) {
	o := applyOptions(opts)

	start := time.Now()
	buf, info, err := m.Restore(ctx)
	if err == nil {
		buf, err = adopt(buf, o)
	}
	s, err := finishLoad(ctx, buf, o, OpRestore, info.Name, start, err)
	if err != nil {
		return nil, snapshot.Info{}, err
	}
	return s, info, nil
}

func loadBlob(ctx context.Context, bs blobstore.BlobStore, name string, c persistence.Compression) (*vectorstore.Buffer, error) {
	blob, err := bs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf, err := persistence.DecodeCompressed(r, c)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return buf, nil
}

func finishLoad(ctx context.Context, buf *vectorstore.Buffer, o options, op, source string, start time.Time, err error) (*Store, error) {
	var (
		n    int
		size int64
	)
	if err == nil {
		n, size = buf.Len(), persistence.EncodedSize(buf.Dimension(), buf.Len())
	}
	o.metricsCollector.RecordSnapshot(op, size, time.Since(start), err)
	o.logger.LogLoad(ctx, source, n, err)
	if err != nil {
		return nil, err
	}
	return newStore(buf, o), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// IsNotFound reports whether err is a missing key or a missing snapshot source.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, snapshot.ErrNoSnapshot)
}
