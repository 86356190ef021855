// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package bridge offloads blocking backend calls onto a bounded worker
// pool and resolves a single-shot future per call. It is the asynchronous
// execution model used when native reactor integration is unavailable or
// not requested.
//
// Cancellation is intentionally weak here: a blocking syscall cannot be
// preempted, so abandoning a future never aborts the submitted call. The
// call runs to completion detached and its result is discarded. Resources
// stay correct because each backend call owns its buffer and handle for
// its whole duration.
package bridge
