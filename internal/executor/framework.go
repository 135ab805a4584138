package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/schwers/blueprints/internal/models"
)

// ErrTimeout indicates an artifact did not finish within its timeout.
var ErrTimeout = errors.New("test artifact timed out")

// Framework executes registered test artifacts and reports one outcome per artifact.
type Framework interface {
	// Register adds an artifact path to the next run.
	Register(path string)

	// Run executes every registered artifact and returns outcomes in registration order.
	Run(ctx context.Context) ([]models.Outcome, error)
}

// FrameworkFactory creates a fresh Framework for each round.
type FrameworkFactory func() Framework

// ProcessFramework runs each registered artifact as a subprocess, one at a time.
// An artifact passes when it exits with status 0.
type ProcessFramework struct {
	// Args are passed to every artifact (e.g. -test.v)
	Args []string

	// Dir is the working directory for artifacts (empty = current dir)
	Dir string

	// Timeout bounds a single artifact (0 = no timeout)
	Timeout time.Duration

	mu    sync.Mutex
	paths []string
}

// NewProcessFramework creates a ProcessFramework.
func NewProcessFramework(dir string, args []string, timeout time.Duration) *ProcessFramework {
	return &ProcessFramework{
		Args:    args,
		Dir:     dir,
		Timeout: timeout,
	}
}

// NewProcessFrameworkFactory returns a factory producing identically configured ProcessFrameworks.
func NewProcessFrameworkFactory(dir string, args []string, timeout time.Duration) FrameworkFactory {
	return func() Framework {
		return NewProcessFramework(dir, args, timeout)
	}
}

// Register adds path to the run.
func (f *ProcessFramework) Register(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paths = append(f.paths, path)
}

// Registered returns the registered paths in order.
func (f *ProcessFramework) Registered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.paths...)
}

// Run executes the registered artifacts serially. Cancellation is checked
// between artifacts; an artifact that has already started runs to completion
// or to its own timeout. On cancellation the outcomes gathered so far are
// returned together with the context error.
func (f *ProcessFramework) Run(ctx context.Context) ([]models.Outcome, error) {
	paths := f.Registered()
	outcomes := make([]models.Outcome, 0, len(paths))

	for _, path := range paths {
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		outcomes = append(outcomes, f.runOne(ctx, path))
	}

	return outcomes, nil
}

func (f *ProcessFramework) runOne(ctx context.Context, path string) models.Outcome {
	runCtx := context.WithoutCancel(ctx)
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, f.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, f.Args...)
	if f.Dir != "" {
		cmd.Dir = f.Dir
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()
	outcome := models.Outcome{
		File:     path,
		Passed:   err == nil,
		Output:   string(output),
		Duration: time.Since(start),
	}

	if err == nil {
		return outcome
	}

	var exitErr *exec.ExitError
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		outcome.Error = fmt.Errorf("%w after %v", ErrTimeout, f.Timeout)
	case errors.As(err, &exitErr):
		// A non-zero exit is an ordinary test failure
	default:
		outcome.Error = fmt.Errorf("failed to execute %s: %w", path, err)
	}

	return outcome
}
