// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package backend implements the platform transport engines behind the
// local-socket facade: Unix domain sockets (readiness model) on POSIX and
// named pipes (completion model) on Windows. Each engine maps its native
// error codes into the unified taxonomy exactly once, at this boundary;
// layers above never see raw errno or Win32 codes directly.
package backend
