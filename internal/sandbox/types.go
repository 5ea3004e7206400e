// Package sandbox executes tool commands in isolation: either as a
// child process in its own process group or inside a container, always
// under a hard wall-clock timeout.
package sandbox

import (
	"errors"
	"time"
)

// ErrContainerNotAvailable is returned when container mode is requested
// but no container runtime binary is discoverable. This is an
// environment precondition failure, not a tool failure, and it is
// non-retryable: predictability over availability.
var ErrContainerNotAvailable = errors.New("no container runtime available (docker or podman required)")

// ErrEmptyCommand is returned for a request with no command words.
var ErrEmptyCommand = errors.New("empty command")

// maxCapturedOutput caps stdout/stderr capture per stream. Display
// truncation to the audit limit happens at the registry; this guard
// only protects memory from runaway tool output.
const maxCapturedOutput = 1 << 20 // 1 MiB

// containerWorkdir is where the workspace is mounted inside containers.
const containerWorkdir = "/workspace"

// ContainerOutputDir is where the output directory is mounted inside
// containers (always writable, even with a read-only workspace).
const ContainerOutputDir = "/output"

// ExecutionResult is the outcome of one sandboxed command.
// A non-zero exit code is tool-level failure, not executor failure:
// it travels as a normal result, never as an error.
type ExecutionResult struct {
	// ExitCode is the process exit code (-1 when the process was killed
	// or never ran to completion).
	ExitCode int
	// Stdout is the captured standard output (capture-capped).
	Stdout string
	// Stderr is the captured standard error (capture-capped). On
	// timeout it is annotated with a timeout marker.
	Stderr string
	// Mode is the sandbox mode the command actually ran under.
	Mode string
	// KilledByTimeout is true when the wall-clock timeout expired and
	// the process group was forcibly terminated.
	KilledByTimeout bool
	// Duration is the wall-clock execution time.
	Duration time.Duration
}
