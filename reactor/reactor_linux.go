//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Readiness-driven reactor over epoll. Each handle is registered exactly
// once; interest is armed per direction with EPOLLONESHOT and re-armed
// after every operation, so level-triggered semantics apply and a missed
// wakeup cannot occur. Each readiness transition wakes exactly one waiter
// per direction.

package reactor

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/internal/backend"
)

// Reactor is the epoll event loop. Create it with New, release with Close.
type Reactor struct {
	epfd   int
	wakeFd int
	descs  *xsync.MapOf[int32, *pollDesc]
	closed atomic.Bool
	done   chan struct{}
	loopWG sync.WaitGroup
}

// pollDesc tracks armed interest and the single waiter per direction of
// one registered descriptor.
type pollDesc struct {
	fd int32

	mu      sync.Mutex
	armed   uint32 // EPOLLIN/EPOLLOUT bits currently armed
	readCh  chan struct{}
	writeCh chan struct{}
}

// New creates the reactor and starts its event loop.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.NewError(api.KindIo, "reactor", "", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, api.NewError(api.KindIo, "reactor", "", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFd)
		return nil, api.NewError(api.KindIo, "reactor", "", err)
	}
	r := &Reactor{
		epfd:   epfd,
		wakeFd: wakeFd,
		descs:  xsync.NewMapOf[int32, *pollDesc](),
		done:   make(chan struct{}),
	}
	r.loopWG.Add(1)
	go r.run()
	return r, nil
}

// run is the event loop: wait, wake the one registered waiter per signaled
// direction, re-arm the remaining interest.
func (r *Reactor) run() {
	defer r.loopWG.Done()
	var events [128]unix.EpollEvent
	for {
		n, err := unix.EpollWait(r.epfd, events[:], -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.Fd == int32(r.wakeFd) {
				var buf [8]byte
				_, _ = unix.Read(r.wakeFd, buf[:])
				if r.closed.Load() {
					return
				}
				continue
			}
			pd, ok := r.descs.Load(ev.Fd)
			if !ok {
				continue
			}
			r.dispatch(pd, ev.Events)
		}
	}
}

func (r *Reactor) dispatch(pd *pollDesc, got uint32) {
	// EPOLLERR/EPOLLHUP wake both directions; the following operation
	// surfaces the concrete error.
	errEv := got&(unix.EPOLLERR|unix.EPOLLHUP) != 0

	pd.mu.Lock()
	wakeRead := pd.armed&unix.EPOLLIN != 0 && (got&unix.EPOLLIN != 0 || errEv)
	wakeWrite := pd.armed&unix.EPOLLOUT != 0 && (got&unix.EPOLLOUT != 0 || errEv)
	if wakeRead {
		pd.armed &^= unix.EPOLLIN
	}
	if wakeWrite {
		pd.armed &^= unix.EPOLLOUT
	}
	// EPOLLONESHOT disarmed the whole descriptor; re-arm what remains.
	if pd.armed != 0 {
		ev := unix.EpollEvent{Events: pd.armed | unix.EPOLLONESHOT, Fd: pd.fd}
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(pd.fd), &ev)
	}
	pd.mu.Unlock()

	if wakeRead {
		select {
		case pd.readCh <- struct{}{}:
		default:
		}
	}
	if wakeWrite {
		select {
		case pd.writeCh <- struct{}{}:
		default:
		}
	}
}

// register adds a descriptor to the epoll set exactly once per handle.
func (r *Reactor) register(fd int32) (*pollDesc, error) {
	if r.closed.Load() {
		return nil, api.ErrReactorClosed
	}
	pd := &pollDesc{
		fd:      fd,
		readCh:  make(chan struct{}, 1),
		writeCh: make(chan struct{}, 1),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLONESHOT, Fd: fd}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return nil, api.NewError(api.KindIo, "reactor", "", err)
	}
	r.descs.Store(fd, pd)
	return pd, nil
}

func (r *Reactor) unregister(pd *pollDesc) {
	r.descs.Delete(pd.fd)
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(pd.fd), nil)
}

// arm enables one direction's interest under oneshot re-arming.
func (r *Reactor) arm(pd *pollDesc, event uint32) {
	pd.mu.Lock()
	pd.armed |= event
	ev := unix.EpollEvent{Events: pd.armed | unix.EPOLLONESHOT, Fd: pd.fd}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(pd.fd), &ev)
	pd.mu.Unlock()
}

// disarm retracts one direction's interest after a cancelled wait and
// drains a wakeup that may have raced in.
func (r *Reactor) disarm(pd *pollDesc, event uint32, ch chan struct{}) {
	pd.mu.Lock()
	pd.armed &^= event
	ev := unix.EpollEvent{Events: pd.armed | unix.EPOLLONESHOT, Fd: pd.fd}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(pd.fd), &ev)
	pd.mu.Unlock()
	select {
	case <-ch:
	default:
	}
}

// wait parks the calling task until readiness, cancellation or reactor
// shutdown. Readiness is never an error; cancellation maps to Cancelled.
func (r *Reactor) wait(ctx context.Context, pd *pollDesc, event uint32, ch chan struct{}, op string) error {
	r.arm(pd, event)
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		r.disarm(pd, event, ch)
		control.Counter("hioload_ipc_reactor_cancellations_total").Inc()
		return api.NewError(api.KindCancelled, op, "", ctx.Err())
	case <-r.done:
		return api.ErrReactorClosed
	}
}

// Close stops the event loop. Handles bound to the reactor stay open; the
// streams owning them remain responsible for closing them.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, _ = unix.Write(r.wakeFd, one[:])
	r.loopWG.Wait()
	_ = unix.Close(r.wakeFd)
	return unix.Close(r.epfd)
}

// Listener is a reactor-bound passive endpoint.
type Listener struct {
	r    *Reactor
	b    *backend.Listener
	pd   *pollDesc
	slot opSlot
}

// Stream is a reactor-bound connected channel.
type Stream struct {
	r     *Reactor
	b     *backend.Stream
	pd    *pollDesc
	rSlot opSlot
	wSlot opSlot
}

// Listen binds a listener and registers it with the reactor.
func (r *Reactor) Listen(name string, backlog int) (*Listener, error) {
	b, err := backend.Bind(name, backlog)
	if err != nil {
		return nil, err
	}
	pd, err := r.register(int32(b.Handle().Raw()))
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &Listener{r: r, b: b, pd: pd}, nil
}

// Dial connects and registers the stream with the reactor. The connect
// itself uses the blocking path; only stream I/O is reactor-driven.
func (r *Reactor) Dial(name string, deadline time.Time) (*Stream, error) {
	b, err := backend.Connect(name, deadline)
	if err != nil {
		return nil, err
	}
	return r.adopt(b)
}

func (r *Reactor) adopt(b *backend.Stream) (*Stream, error) {
	pd, err := r.register(int32(b.Handle().Raw()))
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &Stream{r: r, b: b, pd: pd}, nil
}

// Accept suspends until a peer connects. One accept may be pending at a
// time; ctx cancellation resolves the pending operation as Cancelled.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	if err := l.slot.acquire(); err != nil {
		return nil, err
	}
	defer l.slot.release()
	for {
		b, err := l.b.TryAccept()
		if err == nil {
			return l.r.adopt(b)
		}
		if err != api.ErrWouldBlock {
			return nil, err
		}
		if werr := l.r.wait(ctx, l.pd, unix.EPOLLIN, l.pd.readCh, "accept"); werr != nil {
			return nil, werr
		}
	}
}

// Name returns the bound endpoint name.
func (l *Listener) Name() string { return l.b.Name() }

// Close unregisters and closes the listener.
func (l *Listener) Close() error {
	l.r.unregister(l.pd)
	return l.b.Close()
}

// Read suspends at the unready point and resumes exactly once, when the
// reactor delivers the readiness event. The buffer belongs to the caller
// again as soon as Read returns, including on cancellation: nothing is
// left in flight on the readiness-based platform.
func (s *Stream) Read(ctx context.Context, p []byte) (int, error) {
	if err := s.rSlot.acquire(); err != nil {
		return 0, err
	}
	defer s.rSlot.release()
	for {
		n, err := s.b.TryRead(p)
		if err != api.ErrWouldBlock {
			return n, err
		}
		if werr := s.r.wait(ctx, s.pd, unix.EPOLLIN, s.pd.readCh, "read"); werr != nil {
			return 0, werr
		}
	}
}

// Write suspends until the whole buffer is written, an error occurs, or
// ctx is cancelled. On cancellation the number of bytes already written is
// reported.
func (s *Stream) Write(ctx context.Context, p []byte) (int, error) {
	if err := s.wSlot.acquire(); err != nil {
		return 0, err
	}
	defer s.wSlot.release()
	var total int
	for {
		n, err := s.b.TryWrite(p[total:])
		if err == api.ErrWouldBlock {
			if werr := s.r.wait(ctx, s.pd, unix.EPOLLOUT, s.pd.writeCh, "write"); werr != nil {
				return total, werr
			}
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
		if total >= len(p) {
			return total, nil
		}
	}
}

// CloseRead shuts down the read half.
func (s *Stream) CloseRead() error { return s.b.CloseRead() }

// CloseWrite shuts down the write half.
func (s *Stream) CloseWrite() error { return s.b.CloseWrite() }

// Raw returns the platform identifier.
func (s *Stream) Raw() uintptr { return s.b.Raw() }

// Close unregisters the stream and releases its handle.
func (s *Stream) Close() error {
	s.r.unregister(s.pd)
	return s.b.Close()
}

var _ io.Closer = (*Stream)(nil)
