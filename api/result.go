// Package api
// Author: momentics <momentics@gmail.com>
//
// Generic result and single-shot future contracts.

package api

import (
	"context"
	"sync"
	"sync/atomic"
)

// Result wraps any payload or error.
type Result[T any] struct {
	Value T
	Err   error
}

// Future is a single-shot result container. It is resolved exactly once;
// later resolutions are ignored. A discarded future still gets resolved by
// its producer, the result is simply never read.
type Future[T any] struct {
	done      chan struct{}
	once      sync.Once
	res       Result[T]
	discarded atomic.Bool
}

// NewFuture creates an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve publishes the result. Only the first call has effect.
func (f *Future[T]) Resolve(value T, err error) {
	f.once.Do(func() {
		f.res = Result[T]{Value: value, Err: err}
		close(f.done)
	})
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.res.Value, f.res.Err
}

// WaitContext blocks until the future resolves or ctx expires. An expired
// context does not abort the producing operation; it keeps running detached
// and its result is discarded (see bridge documentation).
func (f *Future[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.Value, f.res.Err
	case <-ctx.Done():
		f.discarded.Store(true)
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the result without blocking. ok is false while unresolved.
func (f *Future[T]) TryGet() (Result[T], bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		return Result[T]{}, false
	}
}

// Discard marks the result as unwanted. The producer still resolves the
// future; Discard only documents caller intent and is observable via
// Discarded for shutdown accounting.
func (f *Future[T]) Discard() { f.discarded.Store(true) }

// Discarded reports whether the caller gave up on the result.
func (f *Future[T]) Discarded() bool { return f.discarded.Load() }
