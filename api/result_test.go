// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFutureResolvesOnce(t *testing.T) {
	f := NewFuture[int]()
	f.Resolve(42, nil)
	f.Resolve(7, errors.New("ignored"))

	v, err := f.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, v)

	res, ok := f.TryGet()
	require.True(t, ok)
	require.Equal(t, 42, res.Value)
}

func TestFutureTryGetUnresolved(t *testing.T) {
	f := NewFuture[string]()
	_, ok := f.TryGet()
	require.False(t, ok)
}

func TestFutureWaitContextExpiry(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.WaitContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, f.Discarded())

	// The producer resolves regardless; the late result is still readable
	// by anyone holding the future.
	f.Resolve(9, nil)
	v, rerr := f.Wait()
	require.NoError(t, rerr)
	require.Equal(t, 9, v)
}
