//go:build unix
// +build unix

// File: internal/backend/uds_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unix-domain-socket engine. All descriptors are non-blocking; an unready
// descriptor surfaces internally as api.ErrWouldBlock and is turned into a
// poll wait (blocking mode) or a reactor suspension, never into a caller
// visible error.

package backend

import (
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/handle"
	"github.com/momentics/hioload-ipc/internal/policy"
)

// connectRetryInterval paces connect retries while the peer backlog is
// saturated. Unix sockets report a full queue as EAGAIN with no readiness
// event to wait for, so the retry is timer-driven.
const connectRetryInterval = 2 * time.Millisecond

// Listener is a bound passive socket-engine endpoint. The filesystem
// artifact created at bind is removed on Close.
type Listener struct {
	h      *handle.Handle
	name   string
	closed atomic.Bool
}

// Stream is a connected socket-engine channel.
type Stream struct {
	h       *handle.Handle
	rClosed atomic.Bool
	wClosed atomic.Bool
}

// closeOnError releases a raw fd on a failed construction path so no
// partially built endpoint leaks a descriptor.
func closeOnError(fd int, err error) error {
	for unix.Close(fd) == unix.EINTR {
	}
	return err
}

// Bind creates, binds and starts listening on a socket for the given
// filesystem path. Binding never retries: a conflicting name fails with
// AddrInUse immediately, including stale artifacts from crashed processes.
func Bind(name string, backlog int) (*Listener, error) {
	if err := policy.ValidateName(name); err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, mapErrno("bind", name, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: name}); err != nil {
		return nil, mapErrno("bind", name, closeOnError(fd, err))
	}
	if err := unix.Listen(fd, policy.TranslateBacklog(backlog)); err != nil {
		_ = unix.Unlink(name)
		return nil, mapErrno("listen", name, closeOnError(fd, err))
	}
	return &Listener{h: handle.New(uintptr(fd)), name: name}, nil
}

// Name returns the bound filesystem path.
func (l *Listener) Name() string { return l.name }

// Handle exposes the owning handle for duplication and raw access.
func (l *Listener) Handle() *handle.Handle { return l.h }

// TryAccept accepts a pending connection without blocking. It returns
// api.ErrWouldBlock when the queue is empty.
func (l *Listener) TryAccept() (*Stream, error) {
	if l.closed.Load() {
		return nil, api.ErrListenerClosed
	}
	for {
		nfd, _, err := unix.Accept4(int(l.h.Raw()), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			return &Stream{h: handle.New(uintptr(nfd))}, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return nil, api.ErrWouldBlock
		case unix.ECONNABORTED:
			// Peer gave up while queued; not an error for the acceptor.
			continue
		default:
			return nil, mapErrno("accept", l.name, err)
		}
	}
}

// Accept blocks until a peer connects or the deadline elapses. A zero
// deadline blocks indefinitely.
func (l *Listener) Accept(deadline time.Time) (*Stream, error) {
	for {
		s, err := l.TryAccept()
		if err != api.ErrWouldBlock {
			return s, err
		}
		if err := waitReady(l.h.Raw(), unix.POLLIN, deadline, "accept", l.name); err != nil {
			return nil, err
		}
	}
}

// Close shuts the listener down and removes the filesystem artifact.
// Double close is a no-op.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.h.Close()
	_ = unix.Unlink(l.name)
	return err
}

// Connect establishes a stream to a bound name. A saturated listener
// backlog suspends the caller until a slot frees or the deadline elapses;
// a missing socket artifact yields NotFound, a stale one ConnectionRefused.
func Connect(name string, deadline time.Time) (*Stream, error) {
	if err := policy.ValidateName(name); err != nil {
		return nil, err
	}
	for {
		s, err := connectOnce(name, deadline)
		if err == api.ErrWouldBlock {
			// Backlog saturated. There is no readiness event for a free
			// slot, so pace the retry until the deadline.
			if !deadline.IsZero() && !time.Now().Before(deadline) {
				return nil, api.NewError(api.KindTimeout, "connect", name, unix.EAGAIN)
			}
			time.Sleep(connectRetryInterval)
			continue
		}
		return s, err
	}
}

func connectOnce(name string, deadline time.Time) (*Stream, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, mapErrno("connect", name, err)
	}
	err = unix.Connect(fd, &unix.SockaddrUnix{Name: name})
	switch err {
	case nil:
		return &Stream{h: handle.New(uintptr(fd))}, nil
	case unix.EINPROGRESS:
		if werr := waitReady(uintptr(fd), unix.POLLOUT, deadline, "connect", name); werr != nil {
			return nil, closeOnError2(fd, werr)
		}
		soErr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			return nil, mapErrno("connect", name, closeOnError(fd, gerr))
		}
		if soErr != 0 {
			return nil, mapErrno("connect", name, closeOnError(fd, unix.Errno(soErr)))
		}
		return &Stream{h: handle.New(uintptr(fd))}, nil
	case unix.EAGAIN:
		_ = closeOnError(fd, err)
		return nil, api.ErrWouldBlock
	default:
		return nil, mapErrno("connect", name, closeOnError(fd, err))
	}
}

// closeOnError2 keeps an already mapped error while releasing the fd.
func closeOnError2(fd int, mapped error) error {
	for unix.Close(fd) == unix.EINTR {
	}
	return mapped
}

// Handle exposes the owning handle.
func (s *Stream) Handle() *handle.Handle { return s.h }

// Raw returns the platform identifier for the external signal subsystem.
func (s *Stream) Raw() uintptr { return s.h.Raw() }

// Duplicate creates an independent stream over a duplicated descriptor.
// Closing the original leaves the duplicate fully usable.
func (s *Stream) Duplicate() (*Stream, error) {
	h, err := s.h.Duplicate()
	if err != nil {
		return nil, err
	}
	return &Stream{h: h}, nil
}

// TryRead reads without blocking; api.ErrWouldBlock when unready.
func (s *Stream) TryRead(p []byte) (int, error) {
	if s.h.Closed() {
		return 0, api.ErrStreamClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(int(s.h.Raw()), p)
		switch err {
		case nil:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, api.ErrWouldBlock
		default:
			return 0, mapErrno("read", "", err)
		}
	}
}

// TryWrite writes without blocking; api.ErrWouldBlock when unready.
func (s *Stream) TryWrite(p []byte) (int, error) {
	if s.h.Closed() {
		return 0, api.ErrStreamClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Write(int(s.h.Raw()), p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, api.ErrWouldBlock
		default:
			return 0, mapErrno("write", "", err)
		}
	}
}

// Read blocks until at least one byte arrives, the peer half-closes, or an
// error occurs.
func (s *Stream) Read(p []byte) (int, error) {
	for {
		n, err := s.TryRead(p)
		if err != api.ErrWouldBlock {
			return n, err
		}
		if err := waitReady(s.h.Raw(), unix.POLLIN, time.Time{}, "read", ""); err != nil {
			return 0, err
		}
	}
}

// Write blocks until the whole buffer is written or an error occurs.
func (s *Stream) Write(p []byte) (int, error) {
	var total int
	for total < len(p) || len(p) == 0 {
		n, err := s.TryWrite(p[total:])
		if err == api.ErrWouldBlock {
			if werr := waitReady(s.h.Raw(), unix.POLLOUT, time.Time{}, "write", ""); werr != nil {
				return total, werr
			}
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
		if len(p) == 0 {
			break
		}
	}
	return total, nil
}

// ReadV fills the buffers in order with a single vectored syscall per
// readiness cycle.
func (s *Stream) ReadV(bufs [][]byte) (int, error) {
	if s.h.Closed() {
		return 0, api.ErrStreamClosed
	}
	for {
		n, err := unix.Readv(int(s.h.Raw()), bufs)
		switch err {
		case nil:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if werr := waitReady(s.h.Raw(), unix.POLLIN, time.Time{}, "read", ""); werr != nil {
				return 0, werr
			}
		default:
			return 0, mapErrno("read", "", err)
		}
	}
}

// WriteV writes the buffers in order with a single vectored syscall per
// readiness cycle. Partial progress is reported, not retried internally.
func (s *Stream) WriteV(bufs [][]byte) (int, error) {
	if s.h.Closed() {
		return 0, api.ErrStreamClosed
	}
	for {
		n, err := unix.Writev(int(s.h.Raw()), bufs)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if werr := waitReady(s.h.Raw(), unix.POLLOUT, time.Time{}, "write", ""); werr != nil {
				return 0, werr
			}
		default:
			return 0, mapErrno("write", "", err)
		}
	}
}

// CloseRead shuts down the read half. Monotonic: once closed the direction
// never reopens. Repeat calls are no-ops.
func (s *Stream) CloseRead() error {
	if !s.rClosed.CompareAndSwap(false, true) {
		return nil
	}
	if err := unix.Shutdown(int(s.h.Raw()), unix.SHUT_RD); err != nil && err != unix.ENOTCONN {
		return mapErrno("shutdown", "", err)
	}
	return nil
}

// CloseWrite shuts down the write half; the peer's read drains buffered
// data and then observes end-of-stream.
func (s *Stream) CloseWrite() error {
	if !s.wClosed.CompareAndSwap(false, true) {
		return nil
	}
	if err := unix.Shutdown(int(s.h.Raw()), unix.SHUT_WR); err != nil && err != unix.ENOTCONN {
		return mapErrno("shutdown", "", err)
	}
	return nil
}

// Close releases the descriptor. Idempotent.
func (s *Stream) Close() error { return s.h.Close() }

// waitReady polls one descriptor for the given readiness events. A zero
// deadline waits indefinitely. POLLERR/POLLHUP wake the waiter and let the
// following operation surface the concrete error.
func waitReady(raw uintptr, events int16, deadline time.Time, op, name string) error {
	for {
		timeout := -1
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return api.NewError(api.KindTimeout, op, name, nil)
			}
			timeout = int(remaining / time.Millisecond)
			if timeout == 0 {
				timeout = 1
			}
		}
		fds := []unix.PollFd{{Fd: int32(raw), Events: events}}
		n, err := unix.Poll(fds, timeout)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return mapErrno(op, name, err)
		case n == 0:
			return api.NewError(api.KindTimeout, op, name, nil)
		default:
			return nil
		}
	}
}
