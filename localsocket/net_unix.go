//go:build unix
// +build unix

// File: localsocket/net_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// net-compat adapters for callers that want stdlib interop instead of the
// raw-handle API. These endpoints are managed by the net runtime poller and
// cannot be registered with this package's reactor.

package localsocket

import (
	"net"
	"time"
)

// ListenNet binds a local socket exposed as a net.Listener.
func ListenNet(name string) (net.Listener, error) {
	return net.Listen("unix", name)
}

// DialNet connects to a local socket as a net.Conn. A zero timeout blocks
// indefinitely.
func DialNet(name string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.Dial("unix", name)
}
