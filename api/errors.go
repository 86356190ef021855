// Package api
// Author: momentics <momentics@gmail.com>
//
// Unified error taxonomy for local-socket transports. Every native error
// code is translated into a Kind exactly once, at the backend boundary;
// unmapped codes keep their raw value under KindIo.

package api

import (
	"errors"
	"fmt"
)

// Kind classifies a transport error independently of the OS primitive
// that produced it.
type Kind uint8

const (
	// KindIo is an unmapped native error; the raw code is preserved in
	// Error.Raw for diagnostics.
	KindIo Kind = iota
	// KindNotFound: no listener is bound at the given name.
	KindNotFound
	// KindAddrInUse: the name is already exclusively bound (socket engine).
	KindAddrInUse
	// KindConnectionRefused: a peer exists but rejected or closed the
	// connection before accept.
	KindConnectionRefused
	// KindBrokenPipe: write to a peer that has closed its read half.
	KindBrokenPipe
	// KindPermissionDenied: OS-level access control rejection.
	KindPermissionDenied
	// KindInvalidName: the name failed validation before any syscall.
	KindInvalidName
	// KindTimeout: a deadline elapsed while suspended in connect or accept.
	KindTimeout
	// KindCancelled: a pending reactor operation was cancelled by the caller.
	KindCancelled
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAddrInUse:
		return "address in use"
	case KindConnectionRefused:
		return "connection refused"
	case KindBrokenPipe:
		return "broken pipe"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidName:
		return "invalid name"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "io"
	}
}

// Error is the structured transport error returned by every engine.
// Raw always holds the native error when one was observed, so even mapped
// kinds stay diagnosable.
type Error struct {
	Kind Kind
	Op   string // "bind", "connect", "accept", "read", "write", ...
	Name string // endpoint name, when known
	Raw  error  // underlying native error, may be nil for KindInvalidName
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "local socket " + e.Op
	if e.Name != "" {
		msg += " " + e.Name
	}
	msg += ": " + e.Kind.String()
	if e.Raw != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Raw)
	}
	return msg
}

// Unwrap exposes the raw native error to errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Raw }

// NewError builds a taxonomy error.
func NewError(kind Kind, op, name string, raw error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Raw: raw}
}

// KindOf extracts the taxonomy kind from an error chain. Errors that do not
// carry an *Error classify as KindIo.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIo
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Usage errors, outside the taxonomy table. These indicate caller bugs or
// ordinary lifecycle conditions rather than failed transport operations.
var (
	ErrListenerClosed    = errors.New("listener is closed")
	ErrStreamClosed      = errors.New("stream is closed")
	ErrHandleClosed      = errors.New("handle is closed")
	ErrOperationInFlight = errors.New("operation already in flight on this direction")
	ErrReactorClosed     = errors.New("reactor is closed")
)

// ErrWouldBlock is the internal readiness signal of the socket engine.
// It is always translated into a suspension or retry point inside the
// backend and the reactor; facade calls never return it.
var ErrWouldBlock = errors.New("operation would block")
