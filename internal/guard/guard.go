// Package guard provides the reader/writer coordination point that mediates
// every access to a value.
//
// Readers run concurrently with each other. A writer runs alone. The guard is
// built on sync.RWMutex, which is writer-preferring: once a writer is waiting
// in Lock, new readers block until it has run, so sustained search load cannot
// starve inserts.
package guard

import "sync"

// RW wraps a value so that it can only be reached from inside a scoped
// read or write acquisition.
type RW[T any] struct {
	mu sync.RWMutex
	v  *T
}

// New returns a guard owning v.
func New[T any](v *T) *RW[T] {
	return &RW[T]{v: v}
}

// Read runs fn with shared access to the value. fn must not mutate the value
// or retain references to it after returning.
func (g *RW[T]) Read(fn func(v *T) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return fn(g.v)
}

// Write runs fn with exclusive access to the value.
func (g *RW[T]) Write(fn func(v *T) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return fn(g.v)
}

// Replace runs fn with exclusive access to the value and installs the value
// fn returns. On error the guarded value is kept.
func (g *RW[T]) Replace(fn func(old *T) (*T, error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, err := fn(g.v)
	if err != nil {
		return err
	}
	g.v = v
	return nil
}
