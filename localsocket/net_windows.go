//go:build windows
// +build windows

// File: localsocket/net_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// net-compat adapters backed by go-winio. MessageMode is enabled so
// CloseWrite is supported, keeping half-close semantics aligned with the
// raw-handle API and with the socket engine.

package localsocket

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"

	"github.com/momentics/hioload-ipc/internal/policy"
)

// ListenNet binds a named pipe exposed as a net.Listener.
func ListenNet(name string) (net.Listener, error) {
	if err := policy.ValidateName(name); err != nil {
		return nil, err
	}
	c := winio.PipeConfig{
		MessageMode:      true,
		InputBufferSize:  64 * 1024,
		OutputBufferSize: 64 * 1024,
	}
	return winio.ListenPipe(policy.EncodePipePath("", name), &c)
}

// DialNet connects to a named pipe as a net.Conn. A zero timeout blocks
// indefinitely.
func DialNet(name string, timeout time.Duration) (net.Conn, error) {
	if err := policy.ValidateName(name); err != nil {
		return nil, err
	}
	path := policy.EncodePipePath("", name)
	if timeout <= 0 {
		return winio.DialPipe(path, nil)
	}
	return winio.DialPipe(path, &timeout)
}
