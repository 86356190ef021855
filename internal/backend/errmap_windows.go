//go:build windows
// +build windows

// File: internal/backend/errmap_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Win32 error translation for the pipe engine. Unmapped codes keep their
// raw value under KindIo.

package backend

import (
	"errors"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-ipc/api"
)

func mapWinErr(op, name string, err error) error {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return api.NewError(api.KindIo, op, name, err)
	}
	kind := api.KindIo
	switch errno {
	case windows.ERROR_FILE_NOT_FOUND:
		kind = api.KindNotFound
	case windows.ERROR_BROKEN_PIPE, windows.ERROR_NO_DATA:
		kind = api.KindBrokenPipe
	case windows.ERROR_ACCESS_DENIED:
		kind = api.KindPermissionDenied
	case windows.ERROR_SEM_TIMEOUT, windows.WAIT_TIMEOUT:
		kind = api.KindTimeout
	case windows.ERROR_OPERATION_ABORTED:
		kind = api.KindCancelled
	}
	return api.NewError(kind, op, name, errno)
}
