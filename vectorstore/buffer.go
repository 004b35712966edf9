package vectorstore

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/vecache/distance"
	"github.com/hupe1980/vecache/internal/mem"
)

var (
	// ErrEmptyVector is returned when a zero-length vector is appended.
	ErrEmptyVector = errors.New("empty vector")

	// ErrKeyNotFound is returned when a key is not present in the buffer.
	ErrKeyNotFound = errors.New("key not found")

	// ErrDuplicateKey is returned when a key is already present and the
	// buffer rejects duplicates, or when raw arrays list a key twice.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrLayout is returned by FromRaw when the arrays are not co-indexed.
	ErrLayout = errors.New("inconsistent buffer layout")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// DuplicatePolicy selects what Append does with a key that is already present.
type DuplicatePolicy uint8

const (
	// DuplicateReplace overwrites the existing row in place. The row keeps
	// its position and insertion sequence number.
	DuplicateReplace DuplicatePolicy = iota
	// DuplicateReject fails the append with ErrDuplicateKey.
	DuplicateReject
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateReplace:
		return "replace"
	case DuplicateReject:
		return "reject"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// Buffer is the SoA vector buffer.
//
// Invariant after every completed mutation:
//
//	len(flat) == dim*len(keys) == dim*len(norms) == dim*len(seqs)
//	len(slots) == len(keys), slots[keys[i]] == i
type Buffer struct {
	dim  int
	flat []float32
	keys []uint64

	norms   []float32
	seqs    []uint64
	slots   map[uint64]int
	nextSeq uint64

	policy DuplicatePolicy
}

// New creates an empty buffer. A dim of 0 leaves the dimension unset until
// the first Append. capacity pre-allocates room for that many rows once the
// dimension is known.
func New(dim, capacity int) *Buffer {
	dim = max(dim, 0)
	capacity = max(capacity, 0)

	b := &Buffer{
		dim:   dim,
		keys:  make([]uint64, 0, capacity),
		norms: make([]float32, 0, capacity),
		seqs:  make([]uint64, 0, capacity),
		slots: make(map[uint64]int, capacity),
	}
	if dim > 0 && capacity > 0 {
		b.flat = mem.GrowFloat32(nil, dim*capacity)
	}
	return b
}

// FromRaw builds a buffer that takes ownership of flat and keys. Rows get
// insertion sequence numbers in slot order.
func FromRaw(dim int, flat []float32, keys []uint64) (*Buffer, error) {
	if dim < 0 || (dim == 0 && len(keys) > 0) {
		return nil, fmt.Errorf("%w: dim %d with %d keys", ErrLayout, dim, len(keys))
	}
	if len(flat) != dim*len(keys) {
		return nil, fmt.Errorf("%w: %d floats for %d keys of dim %d", ErrLayout, len(flat), len(keys), dim)
	}

	n := len(keys)
	b := &Buffer{
		dim:     dim,
		flat:    flat,
		keys:    keys,
		norms:   make([]float32, n),
		seqs:    make([]uint64, n),
		slots:   make(map[uint64]int, n),
		nextSeq: uint64(n),
	}

	for i, k := range keys {
		if prev, ok := b.slots[k]; ok {
			return nil, fmt.Errorf("%w: key %d at rows %d and %d", ErrDuplicateKey, k, prev, i)
		}
		b.slots[k] = i
		b.norms[i] = distance.Norm(b.row(i))
		b.seqs[i] = uint64(i)
	}

	b.assertInvariants()
	return b, nil
}

// SetDuplicatePolicy sets the policy applied by subsequent appends.
func (b *Buffer) SetDuplicatePolicy(p DuplicatePolicy) {
	b.policy = p
}

// DuplicatePolicy returns the active duplicate-key policy.
func (b *Buffer) DuplicatePolicy() DuplicatePolicy {
	return b.policy
}

// Dimension returns the vector dimensionality, or 0 while unset.
func (b *Buffer) Dimension() int {
	return b.dim
}

// Len returns the number of stored vectors.
func (b *Buffer) Len() int {
	return len(b.keys)
}

// Contains reports whether key is stored.
func (b *Buffer) Contains(key uint64) bool {
	_, ok := b.slots[key]
	return ok
}

// Append stores v under key. The first append into a buffer with unset
// dimension fixes the dimension to len(v). If key is already present the
// duplicate policy applies; replaced reports whether an existing row was
// overwritten.
//
// On error the buffer is unchanged.
func (b *Buffer) Append(key uint64, v []float32) (replaced bool, err error) {
	if len(v) == 0 {
		return false, ErrEmptyVector
	}
	if b.dim != 0 && len(v) != b.dim {
		return false, &ErrDimensionMismatch{Expected: b.dim, Actual: len(v)}
	}

	if i, ok := b.slots[key]; ok {
		if b.policy == DuplicateReject {
			return false, fmt.Errorf("%w: %d", ErrDuplicateKey, key)
		}
		copy(b.row(i), v)
		b.norms[i] = distance.Norm(v)
		b.assertInvariants()
		return true, nil
	}

	dim := len(v)

	// Grow every array before touching any field so a failed allocation
	// leaves the buffer as it was.
	flat := mem.GrowFloat32(b.flat, dim)
	keys := slices.Grow(b.keys, 1)
	norms := slices.Grow(b.norms, 1)
	seqs := slices.Grow(b.seqs, 1)

	b.dim = dim
	b.flat = append(flat, v...)
	b.keys = append(keys, key)
	b.norms = append(norms, distance.Norm(v))
	b.seqs = append(seqs, b.nextSeq)
	b.slots[key] = len(b.keys) - 1
	b.nextSeq++

	b.assertInvariants()
	return false, nil
}

// Remove deletes key and returns a copy of its vector. The last row is moved
// into the freed slot, so removal is O(dim) but changes the slot of the moved
// row.
func (b *Buffer) Remove(key uint64) ([]float32, error) {
	i, ok := b.slots[key]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrKeyNotFound, key)
	}

	removed := slices.Clone(b.row(i))
	last := len(b.keys) - 1

	if i != last {
		copy(b.row(i), b.row(last))
		moved := b.keys[last]
		b.keys[i] = moved
		b.norms[i] = b.norms[last]
		b.seqs[i] = b.seqs[last]
		b.slots[moved] = i
	}

	b.flat = b.flat[:last*b.dim]
	b.keys = b.keys[:last]
	b.norms = b.norms[:last]
	b.seqs = b.seqs[:last]
	delete(b.slots, key)

	b.assertInvariants()
	return removed, nil
}

// Get returns a read-only view of the vector stored under key. The view
// aliases the buffer and is only valid until the next mutation.
func (b *Buffer) Get(key uint64) ([]float32, error) {
	i, ok := b.slots[key]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrKeyNotFound, key)
	}
	return b.row(i), nil
}

// Scan returns the raw arrays for bulk scoring. Nothing is copied; the view
// is only valid until the next mutation.
func (b *Buffer) Scan() View {
	return View{
		Dim:   b.dim,
		Keys:  b.keys,
		Flat:  b.flat,
		Norms: b.norms,
		Seqs:  b.seqs,
	}
}

func (b *Buffer) row(i int) []float32 {
	start := i * b.dim
	end := start + b.dim
	return b.flat[start:end:end]
}

// checkInvariants returns an error describing the first broken invariant.
func (b *Buffer) checkInvariants() error {
	n := len(b.keys)
	switch {
	case len(b.flat) != b.dim*n:
		return fmt.Errorf("flat length %d != dim %d * rows %d", len(b.flat), b.dim, n)
	case len(b.norms) != n:
		return fmt.Errorf("norms length %d != rows %d", len(b.norms), n)
	case len(b.seqs) != n:
		return fmt.Errorf("seqs length %d != rows %d", len(b.seqs), n)
	case len(b.slots) != n:
		return fmt.Errorf("key map size %d != rows %d", len(b.slots), n)
	}
	for i, k := range b.keys {
		if b.slots[k] != i {
			return fmt.Errorf("key %d maps to row %d, stored at row %d", k, b.slots[k], i)
		}
	}
	return nil
}

func (b *Buffer) assertInvariants() {
	if !debugInvariants {
		return
	}
	if err := b.checkInvariants(); err != nil {
		panic("vectorstore: " + err.Error())
	}
}

// View is a read-only window onto a buffer's arrays.
type View struct {
	Dim   int
	Keys  []uint64
	Flat  []float32
	Norms []float32
	Seqs  []uint64
}

// Len returns the number of rows in the view.
func (v View) Len() int {
	return len(v.Keys)
}

// Row returns row i.
func (v View) Row(i int) []float32 {
	start := i * v.Dim
	end := start + v.Dim
	return v.Flat[start:end:end]
}

// Slice returns the rows [lo, hi) as a view.
func (v View) Slice(lo, hi int) View {
	return View{
		Dim:   v.Dim,
		Keys:  v.Keys[lo:hi:hi],
		Flat:  v.Flat[lo*v.Dim : hi*v.Dim : hi*v.Dim],
		Norms: v.Norms[lo:hi:hi],
		Seqs:  v.Seqs[lo:hi:hi],
	}
}
