// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package handle wraps a single OS resource (file descriptor on POSIX,
// HANDLE on Windows) with single-owner lifetime semantics: idempotent close
// and explicit duplication producing an independent lifetime.
package handle
