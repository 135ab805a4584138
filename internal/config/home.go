package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindProjectRoot returns the directory blueprints should treat as the project root.
// Priority order:
//  1. BLUEPRINTS_HOME environment variable (if set)
//  2. Nearest ancestor of start containing a .blueprints directory
//  3. Nearest ancestor of start containing a go.mod
//  4. start itself (fallback)
func FindProjectRoot(start string) (string, error) {
	if home := os.Getenv("BLUEPRINTS_HOME"); home != "" {
		return home, nil
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve start directory: %w", err)
	}

	if root, ok := findUp(abs, func(dir string) bool {
		info, err := os.Stat(filepath.Join(dir, ".blueprints"))
		return err == nil && info.IsDir()
	}); ok {
		return root, nil
	}

	if root, ok := findUp(abs, func(dir string) bool {
		_, err := os.Stat(filepath.Join(dir, "go.mod"))
		return err == nil
	}); ok {
		return root, nil
	}

	return abs, nil
}

// findUp walks from dir towards the filesystem root and returns the first
// directory for which match reports true.
func findUp(dir string, match func(string) bool) (string, bool) {
	current := dir
	for {
		if match(current) {
			return current, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}
