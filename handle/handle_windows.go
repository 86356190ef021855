//go:build windows
// +build windows

// File: handle/handle_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows HANDLE release and duplication.

package handle

import "golang.org/x/sys/windows"

func closeRaw(raw uintptr) error {
	return windows.CloseHandle(windows.Handle(raw))
}

// duplicateRaw copies the handle into the current process with the same
// access rights. The duplicate has its own kernel lifetime.
func duplicateRaw(raw uintptr) (uintptr, error) {
	proc := windows.CurrentProcess()
	var dup windows.Handle
	err := windows.DuplicateHandle(
		proc,
		windows.Handle(raw),
		proc,
		&dup,
		0,
		false,
		windows.DUPLICATE_SAME_ACCESS,
	)
	if err != nil {
		return 0, err
	}
	return uintptr(dup), nil
}
