// Package refresh provides single-flight coordination for token refresh.
// Concurrent callers share one in-flight operation and receive the same
// result.
package refresh

import (
	"context"
	"sync"
)

type flight[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Coordinator deduplicates concurrent calls to Do. The zero value is not
// usable; use [NewCoordinator].
type Coordinator[T any] struct {
	mu      sync.Mutex
	current *flight[T]
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator[T any]() *Coordinator[T] {
	return &Coordinator[T]{}
}

// Do runs fn, or joins an already-running fn, and returns its result. shared
// reports whether the caller joined an existing flight rather than starting
// one. fn runs detached from the leader's cancellation so that a cancelled
// leader cannot fail the joiners; a joiner whose own ctx ends before the
// flight completes gets ctx.Err() while the flight continues.
func (c *Coordinator[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) (value T, shared bool, err error) {
	c.mu.Lock()
	if f := c.current; f != nil {
		c.mu.Unlock()
		return c.wait(ctx, f, true)
	}

	f := &flight[T]{done: make(chan struct{})}
	c.current = f
	c.mu.Unlock()

	go func() {
		f.value, f.err = fn(context.WithoutCancel(ctx))

		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()

		close(f.done)
	}()

	return c.wait(ctx, f, false)
}

// InFlight reports whether a flight is currently running.
func (c *Coordinator[T]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Coordinator[T]) wait(ctx context.Context, f *flight[T], shared bool) (T, bool, error) {
	select {
	case <-f.done:
		return f.value, shared, f.err
	case <-ctx.Done():
		var zero T
		return zero, shared, ctx.Err()
	}
}
