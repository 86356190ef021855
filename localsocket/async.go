// File: localsocket/async.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread-pool-bridged calling convention over the blocking facade. Each
// call resolves a single-shot future; at most one operation may be in
// flight per direction per stream, concurrent submissions on the same
// direction are rejected rather than queued.

package localsocket

import (
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/bridge"
)

// AsyncStream bridges a stream's blocking calls onto a worker pool.
type AsyncStream struct {
	s    *Stream
	pool *bridge.Pool

	rPending atomic.Bool
	wPending atomic.Bool
}

// NewAsyncStream wraps a connected stream. The pool may be shared across
// any number of streams; ordering between streams is not guaranteed,
// ordering per direction follows from the single-pending-operation rule.
func NewAsyncStream(s *Stream, pool *bridge.Pool) *AsyncStream {
	return &AsyncStream{s: s, pool: pool}
}

// Stream returns the underlying blocking stream.
func (a *AsyncStream) Stream() *Stream { return a.s }

// ReadAsync submits a read. The buffer belongs to the operation until the
// future resolves; reusing it earlier corrupts data. A second read while
// one is pending fails with ErrOperationInFlight.
func (a *AsyncStream) ReadAsync(p []byte) *api.Future[int] {
	if !a.rPending.CompareAndSwap(false, true) {
		return rejected[int](api.ErrOperationInFlight)
	}
	return bridge.Go(a.pool, func() (int, error) {
		defer a.rPending.Store(false)
		return a.s.Read(p)
	})
}

// WriteAsync submits a write. Same buffer and pending rules as ReadAsync.
func (a *AsyncStream) WriteAsync(p []byte) *api.Future[int] {
	if !a.wPending.CompareAndSwap(false, true) {
		return rejected[int](api.ErrOperationInFlight)
	}
	return bridge.Go(a.pool, func() (int, error) {
		defer a.wPending.Store(false)
		return a.s.Write(p)
	})
}

// CloseWriteAsync submits a write-half shutdown behind any pending write.
func (a *AsyncStream) CloseWriteAsync() *api.Future[struct{}] {
	return bridge.Go(a.pool, func() (struct{}, error) {
		return struct{}{}, a.s.CloseWrite()
	})
}

// Close closes the underlying stream. A detached read or write still in a
// syscall resolves with the stream's close error when it returns.
func (a *AsyncStream) Close() error { return a.s.Close() }

// AsyncListener bridges accept onto a worker pool.
type AsyncListener struct {
	l       *Listener
	pool    *bridge.Pool
	pending atomic.Bool
}

// NewAsyncListener wraps a bound listener.
func NewAsyncListener(l *Listener, pool *bridge.Pool) *AsyncListener {
	return &AsyncListener{l: l, pool: pool}
}

// Listener returns the underlying blocking listener.
func (al *AsyncListener) Listener() *Listener { return al.l }

// AcceptAsync submits an accept. One accept may be pending at a time.
func (al *AsyncListener) AcceptAsync() *api.Future[*Stream] {
	return al.AcceptDeadlineAsync(time.Time{})
}

// AcceptDeadlineAsync submits an accept with an absolute deadline.
func (al *AsyncListener) AcceptDeadlineAsync(deadline time.Time) *api.Future[*Stream] {
	if !al.pending.CompareAndSwap(false, true) {
		return rejected[*Stream](api.ErrOperationInFlight)
	}
	return bridge.Go(al.pool, func() (*Stream, error) {
		defer al.pending.Store(false)
		return al.l.AcceptDeadline(deadline)
	})
}

// Close closes the underlying listener. A detached accept resolves with
// the listener's close error when the syscall returns.
func (al *AsyncListener) Close() error { return al.l.Close() }

func rejected[T any](err error) *api.Future[T] {
	f := api.NewFuture[T]()
	var zero T
	f.Resolve(zero, err)
	return f
}
