//go:build unix
// +build unix

// File: internal/policy/policy_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package policy

// ValidateName applies the socket-engine rules: the name is a filesystem
// path bounded by sun_path.
func ValidateName(name string) error {
	return ValidateSocketPath(name)
}

// TranslateBacklog maps the abstract backlog onto listen(2)'s parameter.
func TranslateBacklog(n int) int {
	return ClampBacklog(n)
}
