//go:build windows
// +build windows

// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package localsocket

import (
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ipc/api"
)

func pipeName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("hioload-test-%d-%s", os.Getpid(), t.Name())
}

// Binding the same name twice succeeds on the pipe engine: named pipes
// natively allow multiple listening instances. This is the documented
// divergence from the socket engine's AddrInUse.
func TestBindTwiceBothAccept(t *testing.T) {
	name := pipeName(t)
	l1, err := Listen(name)
	require.NoError(t, err)
	defer l1.Close()
	l2, err := Listen(name)
	require.NoError(t, err)
	defer l2.Close()

	type res struct {
		s   *Stream
		err error
	}
	acc1 := make(chan res, 1)
	acc2 := make(chan res, 1)
	go func() {
		s, err := l1.AcceptDeadline(time.Now().Add(5 * time.Second))
		acc1 <- res{s, err}
	}()
	go func() {
		s, err := l2.AcceptDeadline(time.Now().Add(5 * time.Second))
		acc2 <- res{s, err}
	}()

	c1, err := DialTimeout(name, 5*time.Second)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := DialTimeout(name, 5*time.Second)
	require.NoError(t, err)
	defer c2.Close()

	r1, r2 := <-acc1, <-acc2
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	r1.s.Close()
	r2.s.Close()
}

func TestHalfCloseDeliversEOF(t *testing.T) {
	name := pipeName(t)
	l, err := Listen(name)
	require.NoError(t, err)
	defer l.Close()

	acc := make(chan *Stream, 1)
	go func() {
		s, err := l.Accept()
		if err == nil {
			acc <- s
		}
	}()
	c, err := DialTimeout(name, 5*time.Second)
	require.NoError(t, err)
	defer c.Close()
	s := <-acc
	defer s.Close()

	_, err = c.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, c.CloseWrite())

	// Buffered data drains first, then end-of-stream.
	buf := make([]byte, 16)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "tail", string(buf[:n]))
	_, err = s.Read(buf)
	require.Equal(t, io.EOF, err)
}

func TestListenerRawZeroAfterClose(t *testing.T) {
	l, err := Listen(pipeName(t))
	require.NoError(t, err)
	require.NotZero(t, l.Raw())
	require.NoError(t, l.Close())
	require.Zero(t, l.Raw())
}

func TestConnectNoInstanceNotFound(t *testing.T) {
	_, err := Dial(pipeName(t))
	require.True(t, api.IsKind(err, api.KindNotFound), "got %v", err)
}

func TestInvalidPipeNameFailsFast(t *testing.T) {
	_, err := Listen(`bad\separator`)
	require.True(t, api.IsKind(err, api.KindInvalidName), "got %v", err)
}
