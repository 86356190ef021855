// File: internal/policy/policy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-independent name validation and encoding rules. The per-platform
// entry points live in policy_unix.go and policy_windows.go; the pure rules
// are kept here so both rule sets stay testable on any host.

package policy

import (
	"errors"
	"strings"

	"github.com/momentics/hioload-ipc/api"
)

const (
	// maxSunPath is the shortest sun_path capacity across the unixes this
	// library targets (104 on the BSDs and macOS), minus the terminating NUL.
	maxSunPath = 103

	// maxPipeComponent bounds the name component of a pipe path. The pipe
	// filesystem accepts up to 256 characters for the part after \pipe\.
	maxPipeComponent = 256

	// DefaultBacklog is used when the caller passes a non-positive backlog.
	DefaultBacklog = 128

	// maxBacklog caps the listen queue regardless of caller input.
	maxBacklog = 4096
)

func invalidName(name, reason string) error {
	return api.NewError(api.KindInvalidName, "validate", name, errors.New(reason))
}

// ValidateSocketPath checks a filesystem path for the socket engine.
func ValidateSocketPath(path string) error {
	switch {
	case path == "":
		return invalidName(path, "empty")
	case len(path) > maxSunPath:
		return invalidName(path, "too long")
	case strings.IndexByte(path, 0) >= 0:
		return invalidName(path, "embedded NUL")
	}
	return nil
}

// ValidatePipeName checks the logical name component for the pipe engine.
// The name is the part after the \\.\pipe\ prefix; separators are rejected
// so a caller cannot escape the pipe namespace.
func ValidatePipeName(name string) error {
	switch {
	case name == "":
		return invalidName(name, "empty")
	case len(name) > maxPipeComponent:
		return invalidName(name, "too long")
	case strings.IndexByte(name, 0) >= 0:
		return invalidName(name, "embedded NUL")
	case strings.ContainsAny(name, `\/`):
		return invalidName(name, "path separator")
	}
	return nil
}

// EncodePipePath builds the NPFS path for a pipe name. An empty host selects
// the local machine. Remote hosts are representable for completeness, but
// dialing enforces local-only endpoints.
func EncodePipePath(host, name string) string {
	if host == "" {
		host = "."
	}
	return `\\` + host + `\pipe\` + name
}

// ClampBacklog normalizes an abstract backlog into a usable queue size.
// Binding never retries, so there is no adaptive sizing here.
func ClampBacklog(n int) int {
	if n <= 0 {
		return DefaultBacklog
	}
	if n > maxBacklog {
		return maxBacklog
	}
	return n
}
