// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

import "io"

// Direction selects one half of a bidirectional stream.
type Direction uint8

const (
	DirRead Direction = iota
	DirWrite
)

// String returns "read" or "write".
func (d Direction) String() string {
	if d == DirWrite {
		return "write"
	}
	return "read"
}

// Stream is a connected bidirectional local-socket channel. Each direction
// is half-closable independently; once a half is closed it never reopens.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer

	// CloseRead shuts down the read half.
	CloseRead() error
	// CloseWrite shuts down the write half. The peer's read observes
	// end-of-stream after draining previously buffered data.
	CloseWrite() error
	// Raw returns the platform-native identifier (fd or HANDLE value) for
	// external subsystems that monitor the resource independently.
	Raw() uintptr
}

// Listener is a bound passive endpoint yielding streams.
type Listener interface {
	// Accept blocks until a peer connects.
	Accept() (Stream, error)
	// Name returns the endpoint name the listener was bound with.
	Name() string
	io.Closer
}
