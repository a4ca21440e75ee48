// Package sandbox runs a generated preview project: it boots a runtime, mounts
// the project, installs dependencies, starts the dev server and publishes the
// URL once the server answers.
package sandbox

import (
	"context"
	"io"

	"github.com/shaun/figcode/server/internal/preview"
)

// Runtime is an isolated place to mount files and run a Node process graph.
// Implementations must be safe for concurrent use.
type Runtime interface {
	// Mount writes the tree into the runtime's filesystem root.
	Mount(ctx context.Context, tree preview.Tree) error
	// WriteFile replaces one file below the root.
	WriteFile(ctx context.Context, path, contents string) error
	// Spawn starts a process with the root as working directory.
	Spawn(ctx context.Context, name string, args ...string) (Process, error)
	// OnServerReady registers fn for "server ready" events and returns a function
	// that removes it.
	OnServerReady(fn func(port int, url string)) (unsubscribe func())
	// OnError registers fn for runtime-level failures.
	OnError(fn func(err error)) (unsubscribe func())
	// Teardown stops everything the runtime started and releases its resources.
	Teardown() error
}

// Process is a running command inside a Runtime.
type Process interface {
	// Output is the combined stdout/stderr stream. It must be drained or the
	// process may stall on a full pipe.
	Output() io.Reader
	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)
	// Kill stops the process and everything it started. Safe to call more than once.
	Kill()
}

// BootFunc creates a runtime. It is called at most once per Manager unless the
// previous runtime was torn down.
type BootFunc func(ctx context.Context) (Runtime, error)
