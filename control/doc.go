// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package control exposes runtime metrics of the transport layer: bind,
// connect and accept counts, byte totals, reactor cancellations and bridge
// queue depth.
package control
