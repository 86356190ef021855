//go:build windows
// +build windows

// File: internal/policy/policy_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package policy

import "golang.org/x/sys/windows"

// ValidateName applies the pipe-engine rules: the name is a component in
// the \\.\pipe\ namespace.
func ValidateName(name string) error {
	return ValidatePipeName(name)
}

// TranslateBacklog maps the abstract backlog onto the named-pipe instance
// limit. Non-positive means unlimited instances; anything else is clamped
// to the field's maximum of 254 distinct instances.
func TranslateBacklog(n int) uint32 {
	if n <= 0 {
		return windows.PIPE_UNLIMITED_INSTANCES
	}
	if n > 254 {
		n = 254
	}
	return uint32(n)
}
