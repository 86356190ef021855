// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package localsocket is the cross-platform facade over the transport
// engines: Unix domain sockets on POSIX, named pipes on Windows. The engine
// is selected at build time; the exported API and its observable behavior
// are identical on both, with one documented divergence: the pipe engine
// natively permits multiple listeners under the same name, the socket
// engine rejects the second bind with AddrInUse.
package localsocket
