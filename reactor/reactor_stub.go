//go:build !linux && !windows
// +build !linux,!windows

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a native readiness or completion facility
// wired up. The blocking facade and the bridge remain available there.

package reactor

import (
	"context"
	"errors"
	"time"
)

var errUnsupported = errors.New("reactor: this platform is not supported")

// Reactor is unavailable on this platform.
type Reactor struct{}

// Listener is unavailable on this platform.
type Listener struct{}

// Stream is unavailable on this platform.
type Stream struct{}

// New returns an error for unsupported platforms.
func New() (*Reactor, error) { return nil, errUnsupported }

// Close implements io.Closer.
func (r *Reactor) Close() error { return errUnsupported }

// Listen is unavailable on this platform.
func (r *Reactor) Listen(string, int) (*Listener, error) { return nil, errUnsupported }

// Dial is unavailable on this platform.
func (r *Reactor) Dial(string, time.Time) (*Stream, error) { return nil, errUnsupported }

// Accept is unavailable on this platform.
func (l *Listener) Accept(context.Context) (*Stream, error) { return nil, errUnsupported }

// Name returns an empty name.
func (l *Listener) Name() string { return "" }

// Close implements io.Closer.
func (l *Listener) Close() error { return errUnsupported }

// Read is unavailable on this platform.
func (s *Stream) Read(context.Context, []byte) (int, error) { return 0, errUnsupported }

// Write is unavailable on this platform.
func (s *Stream) Write(context.Context, []byte) (int, error) { return 0, errUnsupported }

// CloseRead is unavailable on this platform.
func (s *Stream) CloseRead() error { return errUnsupported }

// CloseWrite is unavailable on this platform.
func (s *Stream) CloseWrite() error { return errUnsupported }

// Raw returns zero.
func (s *Stream) Raw() uintptr { return 0 }

// Close implements io.Closer.
func (s *Stream) Close() error { return errUnsupported }
