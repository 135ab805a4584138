//go:build !windows

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureExit replaces exitProcess for the duration of the test.
func captureExit(t *testing.T) <-chan int {
	t.Helper()
	codes := make(chan int, 1)
	exitProcess = func(code int) { codes <- code }
	t.Cleanup(func() { exitProcess = os.Exit })
	return codes
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), want)
	}, 10*time.Second, 10*time.Millisecond, "waiting for %q", want)
}

func awaitCommand(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("command did not return after SIGINT")
		return nil
	}
}

func TestWatchCommand_SIGINTRemovesOutputBeforeReturning(t *testing.T) {
	project := newTestProject(t, map[string]int{"alpha.test": 0}, "")
	codes := captureExit(t)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeRoot(context.Background(), out, "watch", "--config", project.configPath)
	}()

	waitForOutput(t, out, "Round 1 complete")

	// Enough files that removing the tree is not instantaneous
	for i := 0; i < 500; i++ {
		name := filepath.Join(project.outputDir, fmt.Sprintf("filler-%03d.dat", i))
		require.NoError(t, os.WriteFile(name, []byte("x"), 0644))
	}

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	err := awaitCommand(t, done)
	assert.ErrorIs(t, err, errInterrupted)
	assert.Equal(t, interruptExitCode, <-codes)

	_, statErr := os.Stat(project.outputDir)
	assert.True(t, os.IsNotExist(statErr), "output directory is removed before the command returns")
	assert.NotContains(t, out.String(), "Watch stopped", "an interrupted watch does not report a normal stop")
}

func TestRunCommand_SIGINTExitsWithInterruptStatus(t *testing.T) {
	project := newScriptProject(t, map[string]string{
		"slow.test": "sleep 1\nexit 0",
	}, "")
	codes := captureExit(t)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeRoot(context.Background(), out, "run", "--config", project.configPath)
	}()

	waitForOutput(t, out, "Running tests: round 1")
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	err := awaitCommand(t, done)
	assert.ErrorIs(t, err, errInterrupted, "not a plain context cancellation")
	assert.Equal(t, interruptExitCode, <-codes)
}
