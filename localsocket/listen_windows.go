//go:build windows
// +build windows

// File: localsocket/listen_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsocket

import "github.com/momentics/hioload-ipc/internal/backend"

// listenBackend binds the pipe engine, applying the SDDL descriptor to
// every pipe instance when one is configured.
func listenBackend(name string, cfg *listenConfig) (*backend.Listener, error) {
	if cfg.sddl != "" {
		return backend.BindWithSecurity(name, cfg.backlog, cfg.sddl)
	}
	return backend.Bind(name, cfg.backlog)
}
