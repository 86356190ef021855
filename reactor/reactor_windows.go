//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion-driven reactor over an I/O completion port. Each operation is
// submitted with a buffer whose address is handed to the kernel; the op
// record pins that buffer (and stays reachable through the in-flight
// table) until the matching completion packet is dequeued. Cancellation
// issues CancelIoEx and then waits for that packet — never releasing the
// buffer or the handle on cancel alone. Freeing either earlier would be a
// use-after-free against kernel-owned memory.

package reactor

import (
	"context"
	"io"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/internal/backend"
)

// Reactor is the IOCP event loop. Create it with New, release with Close.
type Reactor struct {
	iocp   windows.Handle
	ops    *xsync.MapOf[uintptr, *ioOp]
	closed atomic.Bool
	done   chan struct{}
	loopWG chan struct{}
}

// ioOp is one in-flight completion-based operation. The OVERLAPPED must be
// the first field: its address keys the in-flight table and identifies the
// packet on dequeue.
type ioOp struct {
	o    windows.Overlapped
	buf  []byte // pinned for the kernel's whole hold on the operation
	done chan ioResult
}

type ioResult struct {
	n   uint32
	err error
}

// New creates the reactor and starts its event loop.
func New() (*Reactor, error) {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, api.NewError(api.KindIo, "reactor", "", err)
	}
	r := &Reactor{
		iocp:   iocp,
		ops:    xsync.NewMapOf[uintptr, *ioOp](),
		done:   make(chan struct{}),
		loopWG: make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// run dequeues completion packets and resolves the matching op. After
// Close it keeps draining until every in-flight op has been acknowledged,
// so no cancelled operation is ever left without its completion.
func (r *Reactor) run() {
	defer close(r.loopWG)
	for {
		var n uint32
		var key uintptr
		var ovl *windows.Overlapped
		timeout := uint32(windows.INFINITE)
		if r.closed.Load() {
			if r.opsEmpty() {
				return
			}
			timeout = 100
		}
		err := windows.GetQueuedCompletionStatus(r.iocp, &n, &key, &ovl, timeout)
		if ovl == nil {
			// Wake packet, timeout, or port-level failure.
			if r.closed.Load() && r.opsEmpty() {
				return
			}
			continue
		}
		op, ok := r.ops.LoadAndDelete(uintptr(unsafe.Pointer(ovl)))
		if !ok {
			// Completion for an event-based op issued on an associated
			// handle (for example a half-close marker); not ours.
			continue
		}
		op.done <- ioResult{n: n, err: err}
	}
}

func (r *Reactor) opsEmpty() bool {
	empty := true
	r.ops.Range(func(uintptr, *ioOp) bool {
		empty = false
		return false
	})
	return empty
}

// attach associates a handle with the port exactly once per handle.
func (r *Reactor) attach(h windows.Handle) error {
	if r.closed.Load() {
		return api.ErrReactorClosed
	}
	if _, err := windows.CreateIoCompletionPort(h, r.iocp, 0, 0); err != nil {
		return api.NewError(api.KindIo, "reactor", "", err)
	}
	return nil
}

// submit issues one overlapped operation and tracks it until completion.
// issue must start the I/O against the op's OVERLAPPED.
func (r *Reactor) submit(buf []byte, issue func(*windows.Overlapped) error) (*ioOp, bool, error) {
	if r.closed.Load() {
		return nil, false, api.ErrReactorClosed
	}
	op := &ioOp{buf: buf, done: make(chan ioResult, 1)}
	key := uintptr(unsafe.Pointer(&op.o))
	r.ops.Store(key, op)
	err := issue(&op.o)
	switch {
	case err == nil, err == windows.ERROR_IO_PENDING, err == windows.ERROR_MORE_DATA:
		// ERROR_MORE_DATA is a successful partial read of an oversized
		// message; the packet still arrives with the byte count.
		return op, false, nil
	case err == windows.ERROR_PIPE_CONNECTED:
		// Synchronous success with no packet to come.
		r.ops.Delete(key)
		return op, true, nil
	default:
		r.ops.Delete(key)
		return nil, false, err
	}
}

// await blocks until the op completes. On ctx cancellation it requests
// cancellation from the OS and still waits for the completion packet; the
// buffer is owned by the kernel until that acknowledgment arrives.
func (r *Reactor) await(ctx context.Context, h windows.Handle, op *ioOp) (uint32, error) {
	select {
	case res := <-op.done:
		return res.n, res.err
	case <-ctx.Done():
		_ = windows.CancelIoEx(h, &op.o)
		control.Counter("hioload_ipc_reactor_cancellations_total").Inc()
		res := <-op.done // cancellation acknowledgment, or the race winner
		return res.n, res.err
	}
}

// Close stops accepting submissions and shuts the loop down after all
// in-flight operations have completed or been acknowledged as cancelled.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	_ = windows.PostQueuedCompletionStatus(r.iocp, 0, 0, nil)
	<-r.loopWG
	return windows.CloseHandle(r.iocp)
}

// Listener is a reactor-bound passive endpoint. Accept submits
// ConnectNamedPipe against the current instance and suspends on the port.
type Listener struct {
	r    *Reactor
	b    *backend.Listener
	slot opSlot

	// attached is the instance already associated with the port. A handle
	// may be associated only once; after a cancelled accept the same
	// instance comes back and must not be re-attached. Guarded by slot.
	attached windows.Handle
}

// Stream is a reactor-bound connected channel.
type Stream struct {
	r     *Reactor
	b     *backend.Stream
	rSlot opSlot
	wSlot opSlot
	rEOF  atomic.Bool
}

// Listen binds a listener for reactor-driven accepts.
func (r *Reactor) Listen(name string, backlog int) (*Listener, error) {
	b, err := backend.Bind(name, backlog)
	if err != nil {
		return nil, err
	}
	return &Listener{r: r, b: b}, nil
}

// Dial connects and registers the stream with the port. The connect itself
// uses the blocking path; only stream I/O is completion-driven.
func (r *Reactor) Dial(name string, deadline time.Time) (*Stream, error) {
	b, err := backend.Connect(name, deadline)
	if err != nil {
		return nil, err
	}
	if err := r.attach(b.RawHandle()); err != nil {
		_ = b.Close()
		return nil, err
	}
	return &Stream{r: r, b: b}, nil
}

// Accept suspends until a client connects to the current pipe instance,
// then rotates the instance into a stream. One accept may be pending at a
// time.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	if err := l.slot.acquire(); err != nil {
		return nil, err
	}
	defer l.slot.release()
	h, err := l.b.Instance()
	if err != nil {
		return nil, err
	}
	// Associate the instance once; the association carries over to the
	// accepted stream. The instance survives a cancelled accept, so it may
	// come back already attached.
	if h != l.attached {
		if err := l.r.attach(h); err != nil {
			return nil, err
		}
		l.attached = h
	}
	op, immediate, err := l.r.submit(nil, func(o *windows.Overlapped) error {
		return windows.ConnectNamedPipe(h, o)
	})
	if err != nil {
		return nil, api.NewError(api.KindIo, "accept", l.b.Name(), err)
	}
	if !immediate {
		if _, werr := l.r.await(ctx, h, op); werr != nil {
			if werr == windows.ERROR_OPERATION_ABORTED {
				// Cancelled and acknowledged; the instance keeps listening.
				return nil, api.NewError(api.KindCancelled, "accept", l.b.Name(), ctx.Err())
			}
			return nil, api.NewError(api.KindIo, "accept", l.b.Name(), werr)
		}
	}
	b, err := l.b.Rotate()
	if err != nil {
		// The connected instance is gone; a future instance may reuse its
		// handle value, so forget the association.
		l.attached = 0
		return nil, err
	}
	// The association moved to the accepted stream with the handle.
	l.attached = 0
	return &Stream{r: l.r, b: b}, nil
}

// Name returns the bound endpoint name.
func (l *Listener) Name() string { return l.b.Name() }

// Close retires the current instance.
func (l *Listener) Close() error { return l.b.Close() }

// Read submits a completion-based read. The buffer is transferred to the
// kernel for the operation's duration; it is released back to the caller
// only when Read returns, including the cancellation path, which waits for
// the kernel's acknowledgment.
func (s *Stream) Read(ctx context.Context, p []byte) (int, error) {
	if err := s.rSlot.acquire(); err != nil {
		return 0, err
	}
	defer s.rSlot.release()
	if s.rEOF.Load() {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	h := s.b.RawHandle()
	op, _, err := s.r.submit(p, func(o *windows.Overlapped) error {
		return windows.ReadFile(h, p, nil, o)
	})
	if err != nil {
		n, merr := backend.MapReadCompletion(0, err)
		if merr == io.EOF {
			s.rEOF.Store(true)
		}
		return n, merr
	}
	n, werr := s.r.await(ctx, h, op)
	m, merr := backend.MapReadCompletion(int(n), werr)
	if merr == io.EOF {
		s.rEOF.Store(true)
	}
	return m, merr
}

// Write submits a completion-based write with the same buffer-pinning and
// cancel-acknowledgment rules as Read.
func (s *Stream) Write(ctx context.Context, p []byte) (int, error) {
	if err := s.wSlot.acquire(); err != nil {
		return 0, err
	}
	defer s.wSlot.release()
	if len(p) == 0 {
		return 0, nil
	}
	h := s.b.RawHandle()
	op, _, err := s.r.submit(p, func(o *windows.Overlapped) error {
		return windows.WriteFile(h, p, nil, o)
	})
	if err != nil {
		return backend.MapWriteCompletion(0, err)
	}
	n, werr := s.r.await(ctx, h, op)
	return backend.MapWriteCompletion(int(n), werr)
}

// CloseRead shuts down the read half.
func (s *Stream) CloseRead() error { return s.b.CloseRead() }

// CloseWrite emits the half-close marker. Its event-based completion also
// lands on the port and is ignored there as foreign.
func (s *Stream) CloseWrite() error { return s.b.CloseWrite() }

// Raw returns the HANDLE value.
func (s *Stream) Raw() uintptr { return s.b.Raw() }

// Close releases the stream's handle. Callers must let pending operations
// resolve first; closing a handle with I/O in flight completes those ops
// with an abort packet which the loop still drains safely.
func (s *Stream) Close() error { return s.b.Close() }
