package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/proofgate/proofgate/internal/domain/policy"
)

// Executor runs commands under sandbox constraints.
type Executor struct {
	logger *slog.Logger

	// lookPath is swappable for tests; defaults to exec.LookPath.
	lookPath func(file string) (string, error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLookPath overrides runtime binary discovery (used in tests).
func WithLookPath(fn func(string) (string, error)) Option {
	return func(e *Executor) {
		e.lookPath = fn
	}
}

// NewExecutor creates an executor.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger:   logger,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes command under cfg with the given wall-clock timeout.
// workspacePath is the tool's working directory (bind-mounted in
// container mode); outputPath is where the tool writes artifacts.
//
// Error cases are limited to environment/configuration faults
// (ErrEmptyCommand, ErrContainerNotAvailable, spawn failures). Timeouts
// and non-zero exits are expressed in the result, not as errors.
func (e *Executor) Run(ctx context.Context, command []string, cfg policy.SandboxConfig, workspacePath, outputPath string, timeout time.Duration) (ExecutionResult, error) {
	if len(command) == 0 {
		return ExecutionResult{}, ErrEmptyCommand
	}

	if cfg.Enabled && cfg.Mode == policy.ModeContainer {
		return e.runContainer(ctx, command, cfg, workspacePath, outputPath, timeout)
	}
	return e.runSubprocess(ctx, command, workspacePath, timeout)
}

// runSubprocess spawns the command as a child process in its own
// process group so a timeout kill reaps the whole tree.
func (e *Executor) runSubprocess(ctx context.Context, command []string, workdir string, timeout time.Duration) (ExecutionResult, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = workdir

	stdout := newCappedBuffer(maxCapturedOutput)
	stderr := newCappedBuffer(maxCapturedOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ExecutionResult{}, fmt.Errorf("start command %q: %w", command[0], err)
	}

	result := e.waitWithTimeout(ctx, cmd, timeout)
	result.Mode = policy.ModeSubprocess
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if result.KilledByTimeout {
		result.Stderr += fmt.Sprintf("\n[timeout after %s]", timeout)
	}
	return result, nil
}

// runContainer launches the configured image with the workspace
// bind-mounted. Fails fast when no runtime binary is found, before any
// container is attempted, regardless of command contents.
func (e *Executor) runContainer(ctx context.Context, command []string, cfg policy.SandboxConfig, workspacePath, outputPath string, timeout time.Duration) (ExecutionResult, error) {
	runtimeBin, err := e.findRuntime()
	if err != nil {
		return ExecutionResult{}, err
	}

	args := []string{"run", "--rm", "-w", containerWorkdir}

	mount := workspacePath + ":" + containerWorkdir
	if cfg.Container.ReadonlyWorkspace {
		mount += ":ro"
	}
	args = append(args, "-v", mount)

	if outputPath != "" {
		args = append(args, "-v", outputPath+":"+ContainerOutputDir)
	}
	if cfg.Container.NetworkPolicy == policy.NetworkDeny {
		args = append(args, "--network=none")
	}
	args = append(args, cfg.Container.Image)
	args = append(args, command...)

	cmd := exec.Command(runtimeBin, args...)

	stdout := newCappedBuffer(maxCapturedOutput)
	stderr := newCappedBuffer(maxCapturedOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)

	e.logger.Debug("launching container",
		"runtime", runtimeBin,
		"image", cfg.Container.Image,
		"network", cfg.Container.NetworkPolicy,
		"readonly", cfg.Container.ReadonlyWorkspace)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ExecutionResult{}, fmt.Errorf("start container runtime %q: %w", runtimeBin, err)
	}

	result := e.waitWithTimeout(ctx, cmd, timeout)
	result.Mode = policy.ModeContainer
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if result.KilledByTimeout {
		result.Stderr += fmt.Sprintf("\n[timeout after %s]", timeout)
	}
	return result, nil
}

// waitWithTimeout waits for the process, forcibly terminating its
// process group when the wall-clock timeout expires or the context is
// cancelled. This is the pipeline's sole cancellation mechanism.
func (e *Executor) waitWithTimeout(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) ExecutionResult {
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return ExecutionResult{ExitCode: exitCodeOf(cmd, err)}

	case <-timer.C:
		killProcessGroup(cmd)
		<-done // reap; the kill guarantees Wait returns promptly
		return ExecutionResult{ExitCode: -1, KilledByTimeout: true}

	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return ExecutionResult{ExitCode: -1, KilledByTimeout: true}
	}
}

// findRuntime returns the first discoverable container runtime binary.
func (e *Executor) findRuntime() (string, error) {
	for _, bin := range []string{"docker", "podman"} {
		if path, err := e.lookPath(bin); err == nil {
			return path, nil
		}
	}
	return "", ErrContainerNotAvailable
}

// exitCodeOf extracts the exit code from a Wait error.
func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
