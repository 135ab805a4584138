package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCommand_RunsInitialRoundAndStops(t *testing.T) {
	project := newTestProject(t, map[string]int{"alpha.test": 0}, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeRoot(ctx, out, "watch", "--config", project.configPath)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Round 1 complete")
	}, 10*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	assert.Contains(t, out.String(), "Watch stopped after 1 round(s): 1 digest(s) passing, 0 failing")

	_, err := os.Stat(filepath.Join(project.outputDir, "alpha.test"))
	assert.NoError(t, err, "watch mode keeps primary build outputs")

	entries, err := os.ReadDir(project.outputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staged copies are removed after the round")
}
