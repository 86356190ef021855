//go:build unix
// +build unix

// File: localsocket/listen_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsocket

import "github.com/momentics/hioload-ipc/internal/backend"

// listenBackend binds the socket engine. The security descriptor option is
// a pipe-engine concern; socket endpoints are governed by filesystem
// permissions on the path.
func listenBackend(name string, cfg *listenConfig) (*backend.Listener, error) {
	return backend.Bind(name, cfg.backlog)
}
