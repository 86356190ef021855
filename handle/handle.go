// File: handle/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Owned OS resource with idempotent release and explicit duplication.

package handle

import (
	"sync/atomic"

	"github.com/momentics/hioload-ipc/api"
)

// Handle owns exactly one OS resource. It is closed exactly once: the first
// Close releases the resource, every later Close is a no-op. A Handle must
// not be copied; share it by pointer or create an independent copy with
// Duplicate.
type Handle struct {
	raw    uintptr
	closed atomic.Bool
}

// New takes ownership of a raw fd or HANDLE value.
func New(raw uintptr) *Handle {
	return &Handle{raw: raw}
}

// Raw returns the platform-native identifier. The value is only meaningful
// while the handle is open; callers holding it across Close observe a stale
// identifier, never a reused one from this Handle.
func (h *Handle) Raw() uintptr { return h.raw }

// Closed reports whether the resource has been released.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Close releases the resource. Double close is a no-op, never a fault.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return closeRaw(h.raw)
}

// Duplicate creates an independent Handle referring to the same OS resource.
// Closing either handle never closes the other.
func (h *Handle) Duplicate() (*Handle, error) {
	if h.closed.Load() {
		return nil, api.ErrHandleClosed
	}
	raw, err := duplicateRaw(h.raw)
	if err != nil {
		return nil, err
	}
	return New(raw), nil
}
