package satellite

import (
	"context"
	"sync"
)

// future is a single-shot promise. It is fulfilled or rejected exactly once
// and owned exclusively by the orchestrator, which clears its slot after use.
type future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

func (f *future[T]) resolve(value T) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

func (f *future[T]) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// resolved reports whether the future has been fulfilled or rejected
func (f *future[T]) resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// await blocks until the future settles or ctx is cancelled
func (f *future[T]) await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
