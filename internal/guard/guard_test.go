package guard

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	a, b int
}

func TestReadWrite(t *testing.T) {
	g := New(&pair{})

	err := g.Write(func(p *pair) error {
		p.a, p.b = 1, 1
		return nil
	})
	require.NoError(t, err)

	var got pair
	err = g.Read(func(p *pair) error {
		got = *p
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, pair{1, 1}, got)
}

func TestErrorReleasesLock(t *testing.T) {
	g := New(&pair{})
	boom := errors.New("boom")

	require.ErrorIs(t, g.Write(func(*pair) error { return boom }), boom)
	require.ErrorIs(t, g.Read(func(*pair) error { return boom }), boom)

	done := make(chan struct{})
	go func() {
		_ = g.Write(func(*pair) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write lock not released after error")
	}
}

func TestPanicReleasesLock(t *testing.T) {
	g := New(&pair{})

	assert.Panics(t, func() {
		_ = g.Write(func(*pair) error { panic("boom") })
	})
	assert.NoError(t, g.Read(func(*pair) error { return nil }))
}

func TestConcurrentReaders(t *testing.T) {
	g := New(&pair{})

	var inside atomic.Int32
	var peak atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Read(func(*pair) error {
				n := inside.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				<-release
				inside.Add(-1)
				return nil
			})
		}()
	}

	require.Eventually(t, func() bool { return peak.Load() == 4 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
}

func TestNoTornReads(t *testing.T) {
	g := New(&pair{})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = g.Write(func(p *pair) error {
				p.a = i
				p.b = i
				return nil
			})
		}
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				_ = g.Read(func(p *pair) error {
					if p.a != p.b {
						t.Errorf("torn read: %d != %d", p.a, p.b)
					}
					return nil
				})
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestWriterNotStarved(t *testing.T) {
	g := New(&pair{})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = g.Read(func(*pair) error {
					time.Sleep(10 * time.Microsecond)
					return nil
				})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		_ = g.Write(func(p *pair) error {
			p.a = 1
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("writer starved by readers")
	}
	close(stop)
	wg.Wait()
}

func TestReplace(t *testing.T) {
	first := &pair{a: 1}
	g := New(first)

	err := g.Replace(func(old *pair) (*pair, error) {
		assert.Same(t, first, old)
		return &pair{a: 2}, nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = g.Replace(func(*pair) (*pair, error) { return &pair{a: 3}, boom })
	require.ErrorIs(t, err, boom)

	_ = g.Read(func(p *pair) error {
		assert.Equal(t, 2, p.a)
		return nil
	})
}
