// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package policy validates and encodes endpoint names before any syscall is
// issued and translates abstract backlog sizes into platform listen-queue
// parameters. A name that fails validation never reaches the OS.
package policy
