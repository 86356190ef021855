//go:build unix
// +build unix

// File: internal/backend/errmap_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// errno translation for the socket engine. Unmapped codes keep their raw
// value under KindIo rather than collapsing into a generic failure.

package backend

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
)

func mapErrno(op, name string, err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return api.NewError(api.KindIo, op, name, err)
	}
	kind := api.KindIo
	switch errno {
	case unix.ENOENT:
		kind = api.KindNotFound
	case unix.ECONNREFUSED:
		kind = api.KindConnectionRefused
	case unix.EADDRINUSE:
		kind = api.KindAddrInUse
	case unix.EPIPE:
		kind = api.KindBrokenPipe
	case unix.EACCES, unix.EPERM:
		kind = api.KindPermissionDenied
	case unix.ETIMEDOUT:
		kind = api.KindTimeout
	}
	return api.NewError(kind, op, name, errno)
}
