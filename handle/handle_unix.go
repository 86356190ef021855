//go:build unix
// +build unix

// File: handle/handle_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// POSIX file descriptor release and duplication.

package handle

import "golang.org/x/sys/unix"

// closeRaw releases the descriptor, retrying on EINTR. Retrying close is
// safe on Linux where the fd is invalidated regardless, and matches the
// historical behavior of this codebase on the other unixes it supports.
func closeRaw(raw uintptr) error {
	for {
		err := unix.Close(int(raw))
		if err != unix.EINTR {
			return err
		}
	}
}

// duplicateRaw copies the descriptor with close-on-exec set atomically.
func duplicateRaw(raw uintptr) (uintptr, error) {
	nfd, err := unix.FcntlInt(raw, unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	return uintptr(nfd), nil
}
