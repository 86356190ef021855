// File: reactor/pending.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-direction pending-operation slots. At most one operation may be in
// flight per direction per stream; a concurrent submission on the same
// direction is rejected, not queued, which forces caller-side
// serialization and lets the wakeup path hand each readiness transition
// to exactly one waiter.

package reactor

import (
	"sync/atomic"

	"github.com/momentics/hioload-ipc/api"
)

type opSlot struct {
	busy atomic.Bool
}

func (s *opSlot) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return api.ErrOperationInFlight
	}
	return nil
}

func (s *opSlot) release() {
	s.busy.Store(false)
}
