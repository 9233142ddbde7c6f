package cache

import (
	"context"
	"fmt"
	"sync"

	"relfiles/internal/coupling"
	"relfiles/internal/errors"
)

// Future is the handle of one related-files computation. It resolves exactly
// once, and any number of callers may wait on it without re-running the work.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result []coupling.Candidate
	err    error
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a future already resolved with result and err.
func Completed(result []coupling.Candidate, err error) *Future {
	f := NewFuture()
	f.Resolve(result, err)
	return f
}

// Go runs fn on its own goroutine and returns the future it resolves.
// fn keeps ctx's values but not its cancellation: a caller that stops
// waiting does not abort a computation other callers may share.
// A panic in fn resolves the future with an InternalError.
func Go(ctx context.Context, fn func(context.Context) ([]coupling.Candidate, error)) *Future {
	f := NewFuture()
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Resolve(nil, errors.New(errors.InternalError, fmt.Sprintf("computation panicked: %v", r), nil))
			}
		}()
		f.Resolve(fn(detached))
	}()
	return f
}

// Resolve settles the future. Only the first call has an effect; it reports
// whether this call was the one that resolved it.
func (f *Future) Resolve(result []coupling.Candidate, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.result = result
		f.err = err
		resolved = true
		close(f.done)
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the future has settled.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future resolves or ctx is done. When ctx ends first
// the caller gets ctx's error; the computation itself keeps running.
func (f *Future) Wait(ctx context.Context) ([]coupling.Candidate, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
