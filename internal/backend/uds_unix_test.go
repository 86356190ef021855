//go:build unix
// +build unix

// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package backend

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ipc/api"
)

func sockPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "uds")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func openFDs(t *testing.T) int {
	t.Helper()
	ents, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	return len(ents)
}

func TestBindConnectRoundTrip(t *testing.T) {
	path := sockPath(t)
	l, err := Bind(path, 4)
	require.NoError(t, err)
	defer l.Close()

	done := make(chan error, 1)
	go func() {
		s, err := l.Accept(time.Time{})
		if err != nil {
			done <- err
			return
		}
		defer s.Close()
		buf := make([]byte, 16)
		n, err := s.Read(buf)
		if err != nil {
			done <- err
			return
		}
		_, err = s.Write(buf[:n])
		done <- err
	}()

	c, err := Connect(path, time.Time{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
	require.NoError(t, <-done)
}

func TestBindTwiceAddrInUse(t *testing.T) {
	path := sockPath(t)
	l, err := Bind(path, 1)
	require.NoError(t, err)
	defer l.Close()

	_, err = Bind(path, 1)
	require.True(t, api.IsKind(err, api.KindAddrInUse), "got %v", err)
}

func TestConnectNotFoundNoLeak(t *testing.T) {
	path := sockPath(t)
	before := openFDs(t)
	for i := 0; i < 8; i++ {
		_, err := Connect(path, time.Time{})
		require.True(t, api.IsKind(err, api.KindNotFound), "got %v", err)
	}
	require.Equal(t, before, openFDs(t), "descriptor leaked on failed connect")
}

func TestConnectStaleArtifactRefused(t *testing.T) {
	path := sockPath(t)
	// A bound but never-listening socket models the artifact left behind
	// by a crashed process.
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fd)
	require.NoError(t, unix.Bind(fd, &unix.SockaddrUnix{Name: path}))

	_, err = Connect(path, time.Time{})
	require.True(t, api.IsKind(err, api.KindConnectionRefused), "got %v", err)
}

func TestInvalidNameBeforeSyscall(t *testing.T) {
	long := "/tmp/" + strings.Repeat("n", 200)
	before := openFDs(t)

	_, err := Bind(long, 1)
	require.True(t, api.IsKind(err, api.KindInvalidName), "got %v", err)
	_, err = Connect(long, time.Time{})
	require.True(t, api.IsKind(err, api.KindInvalidName), "got %v", err)

	require.Equal(t, before, openFDs(t), "validation must precede any syscall")
}

func TestHalfCloseDeliversEOFAfterDrain(t *testing.T) {
	path := sockPath(t)
	l, err := Bind(path, 1)
	require.NoError(t, err)
	defer l.Close()

	acc := make(chan *Stream, 1)
	go func() {
		s, err := l.Accept(time.Time{})
		if err == nil {
			acc <- s
		}
	}()

	c, err := Connect(path, time.Time{})
	require.NoError(t, err)
	defer c.Close()
	s := <-acc
	defer s.Close()

	_, err = c.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, c.CloseWrite())
	// Monotonic: a second close of the same half is a no-op.
	require.NoError(t, c.CloseWrite())

	buf := make([]byte, 16)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "tail", string(buf[:n]))

	_, err = s.Read(buf)
	require.ErrorIs(t, err, io.EOF)

	// The other direction stays open.
	_, err = s.Write([]byte("back"))
	require.NoError(t, err)
	n, err = c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "back", string(buf[:n]))
}

func TestWriteAfterPeerCloseBrokenPipe(t *testing.T) {
	path := sockPath(t)
	l, err := Bind(path, 1)
	require.NoError(t, err)
	defer l.Close()

	acc := make(chan *Stream, 1)
	go func() {
		s, err := l.Accept(time.Time{})
		if err == nil {
			acc <- s
		}
	}()

	c, err := Connect(path, time.Time{})
	require.NoError(t, err)
	defer c.Close()
	s := <-acc
	require.NoError(t, s.Close())

	// The first write may be absorbed into the send buffer before the
	// reset is observed; the pipe breaks within a bounded number of
	// attempts.
	var got error
	for i := 0; i < 32 && got == nil; i++ {
		_, werr := c.Write([]byte("x"))
		got = werr
		time.Sleep(time.Millisecond)
	}
	require.Error(t, got)
	kind := api.KindOf(got)
	require.True(t, kind == api.KindBrokenPipe || kind == api.KindIo, "got %v", got)
}

func TestAcceptDeadlineTimeout(t *testing.T) {
	path := sockPath(t)
	l, err := Bind(path, 1)
	require.NoError(t, err)
	defer l.Close()

	start := time.Now()
	_, err = l.Accept(time.Now().Add(30 * time.Millisecond))
	require.True(t, api.IsKind(err, api.KindTimeout), "got %v", err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestVectoredRoundTrip(t *testing.T) {
	path := sockPath(t)
	l, err := Bind(path, 1)
	require.NoError(t, err)
	defer l.Close()

	acc := make(chan *Stream, 1)
	go func() {
		s, err := l.Accept(time.Time{})
		if err == nil {
			acc <- s
		}
	}()

	c, err := Connect(path, time.Time{})
	require.NoError(t, err)
	defer c.Close()
	s := <-acc
	defer s.Close()

	n, err := c.WriteV([][]byte{[]byte("abc"), []byte("defg")})
	require.NoError(t, err)
	require.Equal(t, 7, n)

	head := make([]byte, 3)
	tail := make([]byte, 8)
	total := 0
	for total < 7 {
		m, err := s.ReadV([][]byte{head[min(total, 3):], tail[max(0, total-3):]})
		require.NoError(t, err)
		total += m
	}
	require.Equal(t, "abc", string(head))
	require.Equal(t, "defg", string(tail[:4]))
}

func TestStreamDuplicate(t *testing.T) {
	path := sockPath(t)
	l, err := Bind(path, 1)
	require.NoError(t, err)
	defer l.Close()

	acc := make(chan *Stream, 1)
	go func() {
		s, err := l.Accept(time.Time{})
		if err == nil {
			acc <- s
		}
	}()

	c, err := Connect(path, time.Time{})
	require.NoError(t, err)
	s := <-acc
	defer s.Close()

	dup, err := c.Duplicate()
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = dup.Write([]byte("via dup"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "via dup", string(buf[:n]))
	require.NoError(t, dup.Close())
}
