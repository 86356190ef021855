//go:build windows
// +build windows

// File: internal/backend/pipe_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Named-pipe engine. Pipes are completion-based: every instance is created
// per listening slot, accept waits for a client on an instance rather than
// on a distinct listening socket, and read/write go through overlapped I/O.
//
// The engine uses message-type pipes in message read mode. That gives
// half-close an observable wire form: CloseWrite flushes and emits one
// zero-length message, which the peer's read translates into end-of-stream.
// Zero-length application writes are absorbed locally, so the marker is
// unambiguous.

package backend

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/handle"
	"github.com/momentics/hioload-ipc/internal/policy"
)

const (
	// pipeBufSize matches the 64 KiB in/out buffers used by comparable
	// local-socket stacks for throughput.
	pipeBufSize = 64 * 1024

	nmpwaitWaitForever = 0xffffffff
)

// Listener is a bound passive pipe-engine endpoint. Unlike the socket
// engine, several listeners may bind the same name concurrently; this
// platform divergence is exposed as-is.
type Listener struct {
	mu      sync.Mutex
	inst    *handle.Handle // current unconnected instance, nil when pending creation
	name    string
	path    string
	maxInst uint32
	sd      *windows.SECURITY_DESCRIPTOR
	closed  atomic.Bool
}

// Stream is a connected pipe-engine channel.
type Stream struct {
	h       *handle.Handle
	rClosed atomic.Bool
	wClosed atomic.Bool
	rEOF    atomic.Bool
}

// Bind creates the first pipe instance for the given logical name.
func Bind(name string, backlog int) (*Listener, error) {
	return BindWithSecurity(name, backlog, "")
}

// BindWithSecurity binds with an SDDL security descriptor applied to every
// pipe instance. An empty descriptor keeps the platform default DACL.
func BindWithSecurity(name string, backlog int, sddl string) (*Listener, error) {
	if err := policy.ValidateName(name); err != nil {
		return nil, err
	}
	l := &Listener{
		name:    name,
		path:    policy.EncodePipePath("", name),
		maxInst: policy.TranslateBacklog(backlog),
	}
	if sddl != "" {
		sd, err := windows.SecurityDescriptorFromString(sddl)
		if err != nil {
			return nil, api.NewError(api.KindInvalidName, "bind", name, err)
		}
		l.sd = sd
	}
	h, err := l.newInstance()
	if err != nil {
		return nil, err
	}
	l.inst = handle.New(uintptr(h))
	return l, nil
}

// newInstance creates one more pipe instance under the listener's name.
// FILE_FLAG_FIRST_PIPE_INSTANCE is deliberately not set: multi-instance
// binding is native pipe behavior and callers may rely on it.
func (l *Listener) newInstance() (windows.Handle, error) {
	ptr, err := windows.UTF16PtrFromString(l.path)
	if err != nil {
		return windows.InvalidHandle, api.NewError(api.KindInvalidName, "bind", l.name, err)
	}
	var sa *windows.SecurityAttributes
	if l.sd != nil {
		sa = &windows.SecurityAttributes{
			Length:             uint32(unsafe.Sizeof(windows.SecurityAttributes{})),
			SecurityDescriptor: l.sd,
		}
	}
	h, err := windows.CreateNamedPipe(
		ptr,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_MESSAGE|windows.PIPE_WAIT|windows.PIPE_REJECT_REMOTE_CLIENTS,
		l.maxInst,
		pipeBufSize,
		pipeBufSize,
		0,
		sa,
	)
	if err != nil {
		return windows.InvalidHandle, mapWinErr("bind", l.name, err)
	}
	return h, nil
}

// Name returns the logical pipe name.
func (l *Listener) Name() string { return l.name }

// Handle exposes the current instance handle. It changes across accepts as
// instances rotate.
func (l *Listener) Handle() *handle.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inst
}

// Instance returns the raw handle of the current unconnected instance,
// creating one lazily. Used by the blocking accept path and by the IOCP
// reactor, which submits ConnectNamedPipe against it.
func (l *Listener) Instance() (windows.Handle, error) {
	if l.closed.Load() {
		return windows.InvalidHandle, api.ErrListenerClosed
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inst == nil {
		h, err := l.newInstance()
		if err != nil {
			return windows.InvalidHandle, err
		}
		l.inst = handle.New(uintptr(h))
	}
	return windows.Handle(l.inst.Raw()), nil
}

// Rotate hands the now-connected instance off as a stream and prepares the
// next instance. A failure to create the next instance (for example the
// instance cap) does not fail the accept; creation retries lazily.
func (l *Listener) Rotate() (*Stream, error) {
	l.mu.Lock()
	conn := l.inst
	l.inst = nil
	l.mu.Unlock()
	if conn == nil {
		return nil, api.ErrListenerClosed
	}
	if h, err := l.newInstance(); err == nil {
		l.mu.Lock()
		if l.closed.Load() {
			l.mu.Unlock()
			_ = handle.New(uintptr(h)).Close()
		} else {
			l.inst = handle.New(uintptr(h))
			l.mu.Unlock()
		}
	}
	return &Stream{h: conn}, nil
}

// Accept waits for a client to connect to the current instance, then
// rotates. A zero deadline waits indefinitely.
func (l *Listener) Accept(deadline time.Time) (*Stream, error) {
	h, err := l.Instance()
	if err != nil {
		return nil, err
	}
	op, err := newOverlappedOp()
	if err != nil {
		return nil, api.NewError(api.KindIo, "accept", l.name, err)
	}
	defer op.close()
	cerr := windows.ConnectNamedPipe(h, &op.o)
	switch {
	case cerr == nil || errors.Is(cerr, windows.ERROR_PIPE_CONNECTED):
		// Client connected between instance creation and this call.
	case errors.Is(cerr, windows.ERROR_IO_PENDING):
		if _, werr := op.await(h, deadline); werr != nil {
			if errors.Is(werr, windows.ERROR_OPERATION_ABORTED) {
				// Deadline elapsed; the instance keeps listening.
				return nil, api.NewError(api.KindTimeout, "accept", l.name, nil)
			}
			return nil, mapWinErr("accept", l.name, werr)
		}
	default:
		return nil, mapWinErr("accept", l.name, cerr)
	}
	return l.Rotate()
}

// Close retires the current unconnected instance. Streams already accepted
// stay usable. Double close is a no-op.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.mu.Lock()
	inst := l.inst
	l.inst = nil
	l.mu.Unlock()
	if inst == nil {
		return nil
	}
	return inst.Close()
}

// Connect opens a client end for the given name. A saturated instance set
// suspends the caller in WaitNamedPipe until a slot frees or the deadline
// elapses.
func Connect(name string, deadline time.Time) (*Stream, error) {
	if err := policy.ValidateName(name); err != nil {
		return nil, err
	}
	path := policy.EncodePipePath("", name)
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, api.NewError(api.KindInvalidName, "connect", name, err)
	}
	for {
		h, cerr := windows.CreateFile(
			ptr,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			windows.FILE_FLAG_OVERLAPPED,
			0,
		)
		if cerr == nil {
			if serr := setPipeMode(h, false); serr != nil {
				_ = windows.CloseHandle(h)
				return nil, mapWinErr("connect", name, serr)
			}
			return &Stream{h: handle.New(uintptr(h))}, nil
		}
		if !errors.Is(cerr, windows.ERROR_PIPE_BUSY) {
			return nil, mapWinErr("connect", name, cerr)
		}
		ms := uint32(nmpwaitWaitForever)
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, api.NewError(api.KindTimeout, "connect", name, nil)
			}
			ms = uint32(remaining / time.Millisecond)
			if ms == 0 {
				ms = 1
			}
		}
		if werr := windows.WaitNamedPipe(ptr, ms); werr != nil {
			if errors.Is(werr, windows.ERROR_SEM_TIMEOUT) {
				return nil, api.NewError(api.KindTimeout, "connect", name, werr)
			}
			return nil, mapWinErr("connect", name, werr)
		}
	}
}

// setPipeMode applies the handle-state word. The read-mode bits ride along
// on every call: SetNamedPipeHandleState replaces the whole mode word, so
// flipping the wait bit alone would silently reset message read mode.
func setPipeMode(h windows.Handle, nonblocking bool) error {
	mode := uint32(windows.PIPE_READMODE_MESSAGE | windows.PIPE_WAIT)
	if nonblocking {
		mode = windows.PIPE_READMODE_MESSAGE | windows.PIPE_NOWAIT
	}
	return windows.SetNamedPipeHandleState(h, &mode, nil, nil)
}

// SetNonblocking toggles PIPE_NOWAIT while preserving message read mode.
// The overlapped execution models never need it; it exists for external
// subsystems driving the raw handle obtained through Raw.
func (s *Stream) SetNonblocking(nonblocking bool) error {
	if s.h.Closed() {
		return api.ErrStreamClosed
	}
	if err := setPipeMode(windows.Handle(s.h.Raw()), nonblocking); err != nil {
		return mapWinErr("setmode", "", err)
	}
	return nil
}

// Handle exposes the owning handle.
func (s *Stream) Handle() *handle.Handle { return s.h }

// Raw returns the HANDLE value for the external signal subsystem.
func (s *Stream) Raw() uintptr { return s.h.Raw() }

// RawHandle returns the typed HANDLE for reactor registration.
func (s *Stream) RawHandle() windows.Handle { return windows.Handle(s.h.Raw()) }

// Duplicate creates an independent stream over a duplicated handle.
func (s *Stream) Duplicate() (*Stream, error) {
	h, err := s.h.Duplicate()
	if err != nil {
		return nil, err
	}
	return &Stream{h: h}, nil
}

// Read waits for the next message fragment. A zero-length message is the
// peer's half-close marker and reads as end-of-stream.
func (s *Stream) Read(p []byte) (int, error) {
	if s.h.Closed() {
		return 0, api.ErrStreamClosed
	}
	if s.rClosed.Load() || s.rEOF.Load() {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	op, err := newOverlappedOp()
	if err != nil {
		return 0, api.NewError(api.KindIo, "read", "", err)
	}
	defer op.close()
	rerr := windows.ReadFile(windows.Handle(s.h.Raw()), p, nil, &op.o)
	if rerr != nil && !errors.Is(rerr, windows.ERROR_IO_PENDING) && !errors.Is(rerr, windows.ERROR_MORE_DATA) {
		return MapReadCompletion(0, rerr)
	}
	n, werr := op.await(windows.Handle(s.h.Raw()), time.Time{})
	m, merr := MapReadCompletion(int(n), werr)
	if merr == io.EOF {
		s.rEOF.Store(true)
	}
	return m, merr
}

// Write submits the whole buffer as one message. Zero-length writes are
// absorbed without a syscall; the zero-length message is reserved for the
// half-close marker.
func (s *Stream) Write(p []byte) (int, error) {
	if s.h.Closed() {
		return 0, api.ErrStreamClosed
	}
	if s.wClosed.Load() {
		return 0, api.NewError(api.KindBrokenPipe, "write", "", nil)
	}
	if len(p) == 0 {
		return 0, nil
	}
	op, err := newOverlappedOp()
	if err != nil {
		return 0, api.NewError(api.KindIo, "write", "", err)
	}
	defer op.close()
	werr := windows.WriteFile(windows.Handle(s.h.Raw()), p, nil, &op.o)
	if werr != nil && !errors.Is(werr, windows.ERROR_IO_PENDING) {
		return MapWriteCompletion(0, werr)
	}
	n, aerr := op.await(windows.Handle(s.h.Raw()), time.Time{})
	return MapWriteCompletion(int(n), aerr)
}

// ReadV reads into the first non-empty buffer. Completion-based pipes have
// no scatter primitive for message reads, so vectored reads degrade to a
// single-buffer read, which is within readv's contract of partial results.
func (s *Stream) ReadV(bufs [][]byte) (int, error) {
	for _, b := range bufs {
		if len(b) > 0 {
			return s.Read(b)
		}
	}
	return 0, nil
}

// WriteV writes the buffers in order, reporting total progress.
func (s *Stream) WriteV(bufs [][]byte) (int, error) {
	var total int
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		n, err := s.Write(b)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// CloseRead shuts down the read half locally. Pipes have no native SHUT_RD;
// subsequent local reads observe end-of-stream.
func (s *Stream) CloseRead() error {
	s.rClosed.Store(true)
	return nil
}

// CloseWrite emulates the socket engine's half-close: flush pending writes,
// then emit the zero-length marker message. The far end's read returns
// end-of-stream after draining buffered data.
func (s *Stream) CloseWrite() error {
	if !s.wClosed.CompareAndSwap(false, true) {
		return nil
	}
	h := windows.Handle(s.h.Raw())
	if err := windows.FlushFileBuffers(h); err != nil && !errors.Is(err, windows.ERROR_BROKEN_PIPE) {
		return mapWinErr("shutdown", "", err)
	}
	op, err := newOverlappedOp()
	if err != nil {
		return api.NewError(api.KindIo, "shutdown", "", err)
	}
	defer op.close()
	werr := windows.WriteFile(h, nil, nil, &op.o)
	if werr != nil && !errors.Is(werr, windows.ERROR_IO_PENDING) {
		if errors.Is(werr, windows.ERROR_BROKEN_PIPE) || errors.Is(werr, windows.ERROR_NO_DATA) {
			return nil // peer already gone, the half is closed regardless
		}
		return mapWinErr("shutdown", "", werr)
	}
	if _, aerr := op.await(h, time.Time{}); aerr != nil &&
		!errors.Is(aerr, windows.ERROR_BROKEN_PIPE) && !errors.Is(aerr, windows.ERROR_NO_DATA) {
		return mapWinErr("shutdown", "", aerr)
	}
	return nil
}

// Close releases the handle. Idempotent.
func (s *Stream) Close() error { return s.h.Close() }

// MapReadCompletion translates a read completion into stream semantics:
// ERROR_MORE_DATA is a successful partial message, a zero-length message or
// a broken pipe is end-of-stream, ERROR_OPERATION_ABORTED is a cancelled
// pending operation. Shared with the IOCP reactor.
func MapReadCompletion(n int, err error) (int, error) {
	switch {
	case err == nil, errors.Is(err, windows.ERROR_MORE_DATA):
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	case errors.Is(err, windows.ERROR_BROKEN_PIPE):
		return 0, io.EOF
	case errors.Is(err, windows.ERROR_OPERATION_ABORTED):
		return 0, api.NewError(api.KindCancelled, "read", "", err)
	default:
		return 0, mapWinErr("read", "", err)
	}
}

// MapWriteCompletion translates a write completion. Shared with the IOCP
// reactor.
func MapWriteCompletion(n int, err error) (int, error) {
	if err == nil {
		return n, nil
	}
	if errors.Is(err, windows.ERROR_OPERATION_ABORTED) {
		return n, api.NewError(api.KindCancelled, "write", "", err)
	}
	return n, mapWinErr("write", "", err)
}

// overlappedOp couples an OVERLAPPED with a manual-reset event for the
// blocking execution model. The IOCP reactor uses its own op type.
type overlappedOp struct {
	o  windows.Overlapped
	ev windows.Handle
}

func newOverlappedOp() (*overlappedOp, error) {
	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, err
	}
	op := &overlappedOp{ev: ev}
	op.o.HEvent = ev
	return op, nil
}

func (op *overlappedOp) close() { _ = windows.CloseHandle(op.ev) }

// await blocks until the issued operation completes. On deadline expiry it
// cancels the operation and still waits for the kernel acknowledgment, so
// the caller's buffer is never released while I/O is in flight.
func (op *overlappedOp) await(h windows.Handle, deadline time.Time) (uint32, error) {
	ms := uint32(windows.INFINITE)
	if !deadline.IsZero() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = 0
		}
		ms = uint32(remaining / time.Millisecond)
	}
	st, err := windows.WaitForSingleObject(op.ev, ms)
	if err != nil {
		return 0, err
	}
	if st == uint32(windows.WAIT_TIMEOUT) {
		_ = windows.CancelIoEx(h, &op.o)
		var n uint32
		gerr := windows.GetOverlappedResult(h, &op.o, &n, true)
		if gerr != nil {
			return n, windows.ERROR_OPERATION_ABORTED
		}
		// Completed in the cancellation window.
		return n, nil
	}
	var n uint32
	if gerr := windows.GetOverlappedResult(h, &op.o, &n, true); gerr != nil {
		return n, gerr
	}
	return n, nil
}
