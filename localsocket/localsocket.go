// File: localsocket/localsocket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral Listener and Stream over the engine selected at build
// time. Every call maps one-to-one onto the backend capability set; errors
// arrive already translated into the api taxonomy and pass through
// unchanged.

package localsocket

import (
	"time"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
	"github.com/momentics/hioload-ipc/internal/backend"
)

// Listener is a bound passive local-socket endpoint.
type Listener struct {
	b *backend.Listener
}

// Stream is a connected bidirectional local-socket channel.
type Stream struct {
	b *backend.Stream
}

// Listen binds a listener at the given endpoint name: a filesystem path on
// the socket engine, a pipe-namespace component on the pipe engine. Invalid
// names fail fast with InvalidName before any syscall.
func Listen(name string, opts ...ListenOption) (*Listener, error) {
	var cfg listenConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	b, err := listenBackend(name, &cfg)
	if err != nil {
		return nil, err
	}
	control.Counter("hioload_ipc_binds_total").Inc()
	return &Listener{b: b}, nil
}

// Dial connects to a bound name, blocking while the listener backlog is
// saturated.
func Dial(name string) (*Stream, error) {
	return DialDeadline(name, time.Time{})
}

// DialTimeout connects with a relative deadline.
func DialTimeout(name string, timeout time.Duration) (*Stream, error) {
	return DialDeadline(name, time.Now().Add(timeout))
}

// DialDeadline connects with an absolute deadline; zero means no deadline.
// Expiry while suspended yields Timeout; a name with no listener yields
// NotFound with no handle left behind.
func DialDeadline(name string, deadline time.Time) (*Stream, error) {
	b, err := backend.Connect(name, deadline)
	if err != nil {
		return nil, err
	}
	control.Counter("hioload_ipc_connects_total").Inc()
	return &Stream{b: b}, nil
}

// Accept blocks until a peer connects.
func (l *Listener) Accept() (*Stream, error) {
	return l.AcceptDeadline(time.Time{})
}

// AcceptDeadline blocks until a peer connects or the absolute deadline
// elapses; zero means no deadline.
func (l *Listener) AcceptDeadline(deadline time.Time) (*Stream, error) {
	b, err := l.b.Accept(deadline)
	if err != nil {
		return nil, err
	}
	control.Counter("hioload_ipc_accepts_total").Inc()
	return &Stream{b: b}, nil
}

// Name returns the endpoint name the listener was bound with.
func (l *Listener) Name() string { return l.b.Name() }

// Raw returns the platform identifier of the listening resource, or zero
// when no instance is live (closed listener, or a pipe instance pending
// recreation). On the pipe engine the identifier changes as instances
// rotate across accepts.
func (l *Listener) Raw() uintptr {
	h := l.b.Handle()
	if h == nil {
		return 0
	}
	return h.Raw()
}

// Close releases the listener. The socket engine removes its filesystem
// artifact; callers must not assume it persists. Double close is a no-op.
func (l *Listener) Close() error { return l.b.Close() }

// Read reads from the stream, returning io.EOF after the peer's write half
// closes and buffered data is drained.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.b.Read(p)
	if n > 0 {
		control.Counter("hioload_ipc_bytes_read_total").Add(n)
	}
	return n, err
}

// Write writes the whole buffer to the stream.
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.b.Write(p)
	if n > 0 {
		control.Counter("hioload_ipc_bytes_written_total").Add(n)
	}
	return n, err
}

// ReadV performs a vectored read across the buffers in order.
func (s *Stream) ReadV(bufs [][]byte) (int, error) {
	n, err := s.b.ReadV(bufs)
	if n > 0 {
		control.Counter("hioload_ipc_bytes_read_total").Add(n)
	}
	return n, err
}

// WriteV performs a vectored write across the buffers in order.
func (s *Stream) WriteV(bufs [][]byte) (int, error) {
	n, err := s.b.WriteV(bufs)
	if n > 0 {
		control.Counter("hioload_ipc_bytes_written_total").Add(n)
	}
	return n, err
}

// CloseRead shuts down the read half. Monotonic and idempotent.
func (s *Stream) CloseRead() error { return s.b.CloseRead() }

// CloseWrite shuts down the write half; the peer observes end-of-stream
// after draining. Monotonic and idempotent.
func (s *Stream) CloseWrite() error { return s.b.CloseWrite() }

// Close releases the stream's handle. Idempotent.
func (s *Stream) Close() error { return s.b.Close() }

// Raw returns the platform-native identifier for external monitoring
// subsystems. The core never calls back into them.
func (s *Stream) Raw() uintptr { return s.b.Raw() }

// Duplicate creates an independent stream over a duplicated handle;
// closing the original leaves the duplicate fully usable.
func (s *Stream) Duplicate() (*Stream, error) {
	b, err := s.b.Duplicate()
	if err != nil {
		return nil, err
	}
	return &Stream{b: b}, nil
}

// AsListener adapts a listener to the api.Listener contract for callers
// programming against the interface rather than the concrete type.
func AsListener(l *Listener) api.Listener { return apiListener{l} }

type apiListener struct{ l *Listener }

func (a apiListener) Accept() (api.Stream, error) {
	s, err := a.l.Accept()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a apiListener) Name() string { return a.l.Name() }
func (a apiListener) Close() error { return a.l.Close() }

var (
	_ api.Stream   = (*Stream)(nil)
	_ api.Listener = apiListener{}
)
