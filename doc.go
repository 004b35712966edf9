// Package vecache provides an embedded in-memory vector store for semantic caching.
//
// A Store keeps fixed-dimension float32 vectors keyed by uint64 document IDs
// in one contiguous buffer and answers exact top-k queries by scanning every
// row. It is built for caches of up to a few hundred thousand entries, where
// a flat scan is fast enough and recall must be exact.
//
// # Quick Start
//
//	ctx := context.Background()
//	s := vecache.New()
//	_ = s.Insert(ctx, 1, []float32{1, 0})
//	_ = s.Insert(ctx, 2, []float32{0, 1})
//	results, _ := s.Search(ctx, []float32{1, 0}, 1, distance.MetricCosine)
//
// The first Insert fixes the dimension unless WithDimension is given.
//
// # Metrics
//
// Two metrics are supported:
//
//	distance.MetricL2      // squared Euclidean distance, lower is better
//	distance.MetricCosine  // cosine similarity, higher is better
//
// Cosine uses norms cached at insert time. A zero vector scores 0 against
// every query.
//
// # Cache Lookups
//
// SearchBest returns the best entry only when it clears a threshold, which
// is the usual question a semantic cache asks:
//
//	hit, err := s.SearchBest(ctx, embedding, 0.92, distance.MetricCosine)
//	if errors.Is(err, vecache.ErrNoMatch) {
//	    // miss
//	}
//
// # Concurrency
//
// Searches share a read lock and run in parallel. Inserts and deletes take
// the write lock. WithParallelism additionally splits each scan across
// goroutines; results are identical to the sequential scan.
//
// # Persistence
//
// Save and Load write a compact little-endian snapshot to a local file.
// SaveBlob and LoadBlob target any blobstore.BlobStore (local disk, memory,
// S3, MinIO) with optional LZ4 or Zstandard compression. The snapshot
// package adds versioned publishing behind a CURRENT pointer:
//
//	m := snapshot.New(blobstore.NewLocalStore("./data"))
//	_, _ = s.Publish(ctx, m)
//	restored, info, _ := vecache.Restore(ctx, m)
package vecache
