// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the native event-driven execution model for
// local sockets: readiness notifications via epoll on Linux-like systems,
// completion packets via an I/O completion port on Windows.
//
// A pending operation is Issued, then either Completed or Cancelled. On
// the completion-based platform a cancelled operation stays in
// "cancelled, pending acknowledgment" until the kernel posts the matching
// completion packet; only then is the caller's buffer released for reuse.
// Cancellation therefore blocks until the acknowledgment arrives. This is
// the load-bearing correctness property of the whole package.
package reactor
