package vectorstore

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferAppendFixesDimension(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, 0, b.Dimension())

	replaced, err := b.Append(1, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, 3, b.Dimension())
	assert.Equal(t, 1, b.Len())

	_, err = b.Append(2, []float32{1, 2})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.Equal(t, 1, b.Len())
}

func TestBufferAppendEmpty(t *testing.T) {
	b := New(0, 0)
	_, err := b.Append(1, nil)
	require.ErrorIs(t, err, ErrEmptyVector)
	assert.Equal(t, 0, b.Dimension())
	assert.Equal(t, 0, b.Len())
}

func TestBufferDuplicatePolicy(t *testing.T) {
	t.Run("Replace", func(t *testing.T) {
		b := New(2, 4)
		_, err := b.Append(7, []float32{1, 0})
		require.NoError(t, err)
		_, err = b.Append(8, []float32{0, 1})
		require.NoError(t, err)

		replaced, err := b.Append(7, []float32{3, 4})
		require.NoError(t, err)
		assert.True(t, replaced)
		assert.Equal(t, 2, b.Len())

		v, err := b.Get(7)
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 4}, v)

		view := b.Scan()
		assert.Equal(t, []uint64{7, 8}, view.Keys)
		assert.Equal(t, []uint64{0, 1}, view.Seqs)
		assert.InDelta(t, 5, view.Norms[0], 1e-6)
	})

	t.Run("Reject", func(t *testing.T) {
		b := New(2, 0)
		b.SetDuplicatePolicy(DuplicateReject)
		assert.Equal(t, DuplicateReject, b.DuplicatePolicy())

		_, err := b.Append(7, []float32{1, 0})
		require.NoError(t, err)

		_, err = b.Append(7, []float32{3, 4})
		require.ErrorIs(t, err, ErrDuplicateKey)

		v, err := b.Get(7)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, v)
	})

	assert.Equal(t, "replace", DuplicateReplace.String())
	assert.Equal(t, "reject", DuplicateReject.String())
	assert.Equal(t, "Unknown(9)", DuplicatePolicy(9).String())
}

func TestBufferRemoveSwapsLast(t *testing.T) {
	b := New(2, 0)
	for k := uint64(1); k <= 3; k++ {
		_, err := b.Append(k, []float32{float32(k), float32(k)})
		require.NoError(t, err)
	}

	removed, err := b.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, removed)
	assert.Equal(t, 2, b.Len())
	assert.False(t, b.Contains(1))

	view := b.Scan()
	assert.Equal(t, []uint64{3, 2}, view.Keys)
	assert.Equal(t, []float32{3, 3, 2, 2}, view.Flat)
	assert.Equal(t, []uint64{2, 1}, view.Seqs)

	v, err := b.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3}, v)

	_, err = b.Remove(1)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBufferRemoveReturnsCopy(t *testing.T) {
	b := New(2, 0)
	_, err := b.Append(1, []float32{1, 2})
	require.NoError(t, err)
	_, err = b.Append(2, []float32{3, 4})
	require.NoError(t, err)

	removed, err := b.Remove(1)
	require.NoError(t, err)

	_, err = b.Append(5, []float32{9, 9})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, removed)
}

func TestBufferRemoveLastKeepsDimension(t *testing.T) {
	b := New(0, 0)
	_, err := b.Append(1, []float32{1, 2, 3})
	require.NoError(t, err)
	_, err = b.Remove(1)
	require.NoError(t, err)

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 3, b.Dimension())

	_, err = b.Append(2, []float32{1})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
}

func TestBufferGetView(t *testing.T) {
	b := New(3, 0)
	_, err := b.Append(1, []float32{1, 2, 3})
	require.NoError(t, err)
	_, err = b.Append(2, []float32{4, 5, 6})
	require.NoError(t, err)

	v, err := b.Get(1)
	require.NoError(t, err)
	assert.Len(t, v, 3)
	assert.Equal(t, 3, cap(v))

	_, err = b.Get(99)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFromRaw(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		b, err := FromRaw(2, []float32{3, 4, 0, 1}, []uint64{10, 20})
		require.NoError(t, err)
		assert.Equal(t, 2, b.Len())
		assert.Equal(t, 2, b.Dimension())

		view := b.Scan()
		assert.Equal(t, []uint64{0, 1}, view.Seqs)
		assert.InDelta(t, 5, view.Norms[0], 1e-6)
		assert.InDelta(t, 1, view.Norms[1], 1e-6)

		_, err = b.Append(30, []float32{1, 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), b.Scan().Seqs[2])
	})

	t.Run("Empty", func(t *testing.T) {
		b, err := FromRaw(0, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, b.Len())
		assert.Equal(t, 0, b.Dimension())
	})

	t.Run("Layout", func(t *testing.T) {
		_, err := FromRaw(2, []float32{1, 2, 3}, []uint64{1, 2})
		require.ErrorIs(t, err, ErrLayout)

		_, err = FromRaw(0, nil, []uint64{1})
		require.ErrorIs(t, err, ErrLayout)
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := FromRaw(1, []float32{1, 2}, []uint64{5, 5})
		require.ErrorIs(t, err, ErrDuplicateKey)
	})
}

func TestViewSlice(t *testing.T) {
	b := New(2, 0)
	for k := uint64(0); k < 4; k++ {
		_, err := b.Append(k, []float32{float32(k), -float32(k)})
		require.NoError(t, err)
	}

	view := b.Scan()
	part := view.Slice(1, 3)
	assert.Equal(t, 2, part.Len())
	assert.Equal(t, []uint64{1, 2}, part.Keys)
	assert.Equal(t, []float32{2, -2}, part.Row(1))
	assert.Equal(t, []uint64{1, 2}, part.Seqs)
}

func TestBufferRandomOps(t *testing.T) {
	const dim = 4
	rng := rand.New(rand.NewSource(42))
	b := New(dim, 16)
	model := make(map[uint64][]float32)

	for range 2000 {
		key := uint64(rng.Intn(64))
		if rng.Intn(3) == 0 {
			_, err := b.Remove(key)
			if _, ok := model[key]; ok {
				require.NoError(t, err)
				delete(model, key)
			} else {
				require.ErrorIs(t, err, ErrKeyNotFound)
			}
			continue
		}

		v := make([]float32, dim)
		for i := range v {
			v[i] = rng.Float32()
		}
		_, err := b.Append(key, v)
		require.NoError(t, err)
		model[key] = v
	}

	require.NoError(t, b.checkInvariants())
	require.Equal(t, len(model), b.Len())
	for k, want := range model {
		got, err := b.Get(k)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
