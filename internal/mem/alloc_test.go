package mem

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAligned(t *testing.T) {
	sizes := []int{1, 10, 63, 64, 65, 100, 1024}

	for _, size := range sizes {
		buf := AllocAligned(size)
		assert.Len(t, buf, size)
		assert.Equal(t, size, cap(buf))

		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Equal(t, uintptr(0), addr%Alignment, "Address %d should be aligned to %d for size %d", addr, Alignment, size)
	}

	assert.Nil(t, AllocAligned(0))
	assert.Nil(t, AllocAligned(-1))
}

func TestAllocAlignedFloat32(t *testing.T) {
	sizes := []int{1, 10, 16, 17, 100, 1024}

	for _, size := range sizes {
		buf := AllocAlignedFloat32(size)
		assert.Len(t, buf, size)

		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Equal(t, uintptr(0), addr%Alignment, "Address %d should be aligned to %d for size %d", addr, Alignment, size)
	}

	assert.Nil(t, AllocAlignedFloat32(0))
	assert.Nil(t, AllocAlignedFloat32(-1))
}

func TestGrowFloat32(t *testing.T) {
	t.Run("FromNil", func(t *testing.T) {
		s := GrowFloat32(nil, 3)
		assert.Len(t, s, 0)
		assert.GreaterOrEqual(t, cap(s), 3)
	})

	t.Run("KeepsContents", func(t *testing.T) {
		s := []float32{1, 2, 3}
		g := GrowFloat32(s, 100)
		require.Len(t, g, 3)
		assert.Equal(t, []float32{1, 2, 3}, g)
		assert.GreaterOrEqual(t, cap(g), 103)

		addr := uintptr(unsafe.Pointer(&g[:1][0]))
		assert.Equal(t, uintptr(0), addr%Alignment)
	})

	t.Run("NoRealloc", func(t *testing.T) {
		s := make([]float32, 2, 10)
		g := GrowFloat32(s, 8)
		assert.Same(t, &s[:1][0], &g[:1][0])
	})
}

func BenchmarkAllocAlignedFloat32(b *testing.B) {
	sizes := []int{16, 64, 256, 1024}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = AllocAlignedFloat32(size)
			}
		})
	}
}
