package vecache

import (
	"errors"

	"github.com/hupe1980/vecache/index"
	"github.com/hupe1980/vecache/persistence"
	"github.com/hupe1980/vecache/vectorstore"
)

// ErrDimensionMismatch indicates a vector or query whose length differs from
// the store dimension. Match it with errors.As.
type ErrDimensionMismatch = vectorstore.ErrDimensionMismatch

var (
	// ErrEmptyVector is returned when inserting a zero-length vector.
	ErrEmptyVector = vectorstore.ErrEmptyVector

	// ErrInvalidArgument is returned for malformed arguments such as k <= 0.
	ErrInvalidArgument = index.ErrInvalidArgument

	// ErrKeyNotFound is returned when a key is not in the store.
	ErrKeyNotFound = vectorstore.ErrKeyNotFound

	// ErrDuplicateKey is returned by Insert under DuplicateReject and by
	// loads of files that list a key twice.
	ErrDuplicateKey = vectorstore.ErrDuplicateKey

	// ErrEmptyStore is returned when searching a store with no vectors.
	ErrEmptyStore = errors.New("empty store")

	// ErrNoMatch is returned by SearchBest when no entry beats the threshold.
	ErrNoMatch = errors.New("no match within threshold")

	// ErrTruncatedFile is returned when a snapshot ends before its header
	// says it should.
	ErrTruncatedFile = persistence.ErrTruncatedFile

	// ErrCorruptHeader is returned when a snapshot header is inconsistent.
	ErrCorruptHeader = persistence.ErrCorruptHeader

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)
