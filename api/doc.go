// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the platform-neutral contracts of hioload-ipc: the
// unified error taxonomy shared by both transport engines, the single-shot
// future used by the asynchronous execution models, and the Listener/Stream
// interfaces implemented by every execution model.
package api
