package build

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// CommandResult is what one run of the build command produced.
type CommandResult struct {
	Output   string        // Combined stdout/stderr
	ExitCode int           // Process exit status; -1 when killed by a signal
	Duration time.Duration // Wall time of the command
}

// Failed reports whether the command exited non-zero.
func (r CommandResult) Failed() bool {
	return r.ExitCode != 0
}

// describe renders the failure line carried in BuildStats.Errors.
func (r CommandResult) describe(command string) string {
	if r.ExitCode < 0 {
		return fmt.Sprintf("%q was terminated by a signal after %v", command, r.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%q exited with status %d", command, r.ExitCode)
}

// CommandRunner runs the build command. A non-zero exit is reported on the
// result; the error is reserved for commands that could not run at all.
type CommandRunner interface {
	Run(ctx context.Context, command string) (CommandResult, error)
}

// ShellRunner runs build commands with "sh -c" in Dir.
type ShellRunner struct {
	Dir string
}

// NewShellRunner creates a ShellRunner for dir (empty = current dir).
func NewShellRunner(dir string) *ShellRunner {
	return &ShellRunner{Dir: dir}
}

// Run executes command and waits for it. Cancelling ctx kills the shell and
// returns ctx.Err().
func (r *ShellRunner) Run(ctx context.Context, command string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()
	result := CommandResult{
		Output:   string(output),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		return result, fmt.Errorf("failed to start build command: %w", err)
	}
}
