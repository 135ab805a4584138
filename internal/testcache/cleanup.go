package testcache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CleanMode selects how much of the output directory Clean removes.
type CleanMode int

const (
	// CleanAll removes the whole output directory.
	CleanAll CleanMode = iota

	// CleanStaged removes only cache-busted copies and keeps primary build outputs.
	CleanStaged
)

func (m CleanMode) String() string {
	switch m {
	case CleanAll:
		return "all"
	case CleanStaged:
		return "staged"
	default:
		return fmt.Sprintf("CleanMode(%d)", int(m))
	}
}

// Cleaner removes staged artifacts from an output directory.
type Cleaner struct {
	outputDir string
	ext       string
}

// NewCleaner creates a Cleaner for outputDir. ext is the artifact extension
// whose "<ext>-" marker identifies staged copies.
func NewCleaner(outputDir, ext string) *Cleaner {
	return &Cleaner{
		outputDir: outputDir,
		ext:       ext,
	}
}

// Clean removes files according to mode and returns how many staged copies
// were removed (CleanAll reports 0). A missing output directory is not an error.
func (c *Cleaner) Clean(mode CleanMode) (int, error) {
	switch mode {
	case CleanAll:
		if err := os.RemoveAll(c.outputDir); err != nil {
			return 0, fmt.Errorf("failed to remove %s: %w", c.outputDir, err)
		}
		return 0, nil
	case CleanStaged:
		return c.removeStaged()
	default:
		return 0, fmt.Errorf("unknown clean mode %v", mode)
	}
}

func (c *Cleaner) removeStaged() (int, error) {
	removed := 0
	err := filepath.WalkDir(c.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !IsStaged(d.Name(), c.ext) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}
