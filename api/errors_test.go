// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKindMapping(t *testing.T) {
	raw := errors.New("native code 111")
	err := NewError(KindConnectionRefused, "connect", "/tmp/x.sock", raw)

	require.Equal(t, KindConnectionRefused, KindOf(err))
	require.True(t, IsKind(err, KindConnectionRefused))
	require.False(t, IsKind(err, KindNotFound))
	require.ErrorIs(t, err, raw)
	require.Contains(t, err.Error(), "connection refused")
	require.Contains(t, err.Error(), "/tmp/x.sock")
}

func TestErrorKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("dial failed: %w", NewError(KindTimeout, "connect", "chan-1", nil))
	require.Equal(t, KindTimeout, KindOf(err))
}

func TestErrorKindOfForeign(t *testing.T) {
	require.Equal(t, KindIo, KindOf(errors.New("some other error")))
}

func TestKindStrings(t *testing.T) {
	for kind, want := range map[Kind]string{
		KindIo:                "io",
		KindNotFound:          "not found",
		KindAddrInUse:         "address in use",
		KindConnectionRefused: "connection refused",
		KindBrokenPipe:        "broken pipe",
		KindPermissionDenied:  "permission denied",
		KindInvalidName:       "invalid name",
		KindTimeout:           "timeout",
		KindCancelled:         "cancelled",
	} {
		require.Equal(t, want, kind.String())
	}
}
