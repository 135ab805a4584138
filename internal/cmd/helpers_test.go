package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testProject is a temp project whose build writes shell-script test artifacts.
type testProject struct {
	dir        string
	configPath string
	outputDir  string
}

// newTestProject creates a project whose build produces one artifact per
// entry in exitCodes; each artifact exits with its code.
func newTestProject(t *testing.T, exitCodes map[string]int, extraConfig string) *testProject {
	t.Helper()
	bodies := make(map[string]string, len(exitCodes))
	for name, code := range exitCodes {
		bodies[name] = fmt.Sprintf("echo running %s\nexit %d", name, code)
	}
	return newScriptProject(t, bodies, extraConfig)
}

// newScriptProject creates a project whose build produces one shell-script
// artifact per entry in bodies.
func newScriptProject(t *testing.T, bodies map[string]string, extraConfig string) *testProject {
	t.Helper()
	dir := t.TempDir()

	names := make([]string, 0, len(bodies))
	for name := range bodies {
		names = append(names, name)
	}
	sort.Strings(names)

	var script strings.Builder
	script.WriteString("set -e\nmkdir -p out\n")
	for _, name := range names {
		fmt.Fprintf(&script, "cat > out/%s <<'SCRIPT'\n#!/bin/sh\n%s\nSCRIPT\n", name, bodies[name])
		fmt.Fprintf(&script, "chmod +x out/%s\n", name)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.sh"), []byte(script.String()), 0644))

	cfg := fmt.Sprintf(`build_command: "sh build.sh"
work_dir: %q
output_dir: out
artifact_ext: .test
log_dir: logs
watch_paths: ["src"]
watch_pattern: "*.go"
debounce: 20ms
%s`, dir, extraConfig)

	configPath := filepath.Join(dir, "blueprints.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))

	return &testProject{
		dir:        dir,
		configPath: configPath,
		outputDir:  filepath.Join(dir, "out"),
	}
}
