// File: localsocket/options.go
// Package localsocket defines functional options for listeners.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsocket

// ListenOption customizes listener initialization.
type ListenOption func(*listenConfig)

type listenConfig struct {
	backlog int
	sddl    string
}

// WithBacklog sets the abstract backlog: the maximum number of
// not-yet-accepted pending connections. Non-positive selects the platform
// default.
func WithBacklog(n int) ListenOption {
	return func(c *listenConfig) {
		c.backlog = n
	}
}

// WithSecurityDescriptor sets an SDDL descriptor applied to pipe instances
// on Windows. The socket engine relies on filesystem permissions instead
// and ignores it.
func WithSecurityDescriptor(sddl string) ListenOption {
	return func(c *listenConfig) {
		c.sddl = sddl
	}
}
