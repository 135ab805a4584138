// Package build runs the build command that produces compiled test artifacts
// and notifies a callback after every build pass, once or on source changes.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schwers/blueprints/internal/models"
)

// maxErrorLines caps how many lines of build output are carried as build errors.
const maxErrorLines = 50

// Callback receives the result of every build pass. It returns nothing;
// failures inside it are its own to report.
type Callback func(ctx context.Context, stats models.BuildStats)

// Logger receives pipeline progress. It may be nil.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Options configures a Pipeline.
type Options struct {
	// Command is run through the shell to build artifacts
	Command string

	// WorkDir is where Command runs
	WorkDir string

	// OutputDir is scanned for artifacts after each build
	OutputDir string

	// ArtifactExt selects artifact files in OutputDir
	ArtifactExt string

	// WatchPaths are the source roots watched in watch mode
	WatchPaths []string

	// WatchPattern filters source file names that trigger a rebuild
	WatchPattern string

	// Debounce is the quiet period before a change burst triggers a rebuild
	Debounce time.Duration
}

// Pipeline builds artifacts and reports them to a Callback.
type Pipeline struct {
	opts   Options
	runner CommandRunner
	logger Logger
}

// NewPipeline creates a Pipeline. If runner is nil, commands run through
// the shell in opts.WorkDir.
func NewPipeline(opts Options, runner CommandRunner, logger Logger) *Pipeline {
	if runner == nil {
		runner = NewShellRunner(opts.WorkDir)
	}
	return &Pipeline{
		opts:   opts,
		runner: runner,
		logger: logger,
	}
}

// Build runs the build command once and collects the artifacts it produced.
// A failed command is reported in BuildStats.Errors and the returned error
// wraps models.ErrBuildFailed.
func (p *Pipeline) Build(ctx context.Context) (models.BuildStats, error) {
	start := time.Now()
	var stats models.BuildStats

	p.debugf("Running build: %s", p.opts.Command)
	result, err := p.runner.Run(ctx, p.opts.Command)
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	if err != nil || result.Failed() {
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%q: %v", p.opts.Command, err))
		} else {
			stats.Errors = append(stats.Errors, result.describe(p.opts.Command))
		}
		stats.Errors = append(stats.Errors, outputTail(result.Output, maxErrorLines)...)
		stats.Duration = time.Since(start)
		return stats, stats.Err()
	}

	assets, err := ScanArtifacts(p.opts.OutputDir, p.opts.ArtifactExt)
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		stats.Duration = time.Since(start)
		return stats, stats.Err()
	}

	stats.Assets = assets
	stats.Duration = time.Since(start)
	if len(assets) == 0 && p.logger != nil {
		p.logger.Warnf("Build produced no %s artifacts in %s", p.opts.ArtifactExt, p.opts.OutputDir)
	}
	return stats, nil
}

// Run builds once and hands the result to cb. The build error, if any, is
// returned after cb has seen the stats.
func (p *Pipeline) Run(ctx context.Context, cb Callback) error {
	stats, err := p.Build(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	cb(ctx, stats)
	return err
}

// Watch builds, calls cb, then rebuilds and calls cb after every settled
// burst of source changes until ctx is done. Build failures are handed to cb
// and do not stop the loop.
func (p *Pipeline) Watch(ctx context.Context, cb Callback) error {
	ignore := []string{p.opts.OutputDir}
	watcher, err := NewWatcher(p.opts.WatchPaths, p.opts.WatchPattern, p.opts.Debounce, ignore...)
	if err != nil {
		return fmt.Errorf("failed to watch %v: %w", p.opts.WatchPaths, err)
	}
	defer watcher.Close()

	p.infof("Watching %s for changes to %s", strings.Join(watcher.Roots(), ", "), p.patternLabel())

	if err := p.rebuild(ctx, cb); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-watcher.Changes():
			p.infof("Change detected in %d file(s), rebuilding", len(paths))
			for _, path := range paths {
				p.debugf("  changed: %s", path)
			}
			if err := p.rebuild(ctx, cb); err != nil {
				return err
			}
		case err := <-watcher.Errors():
			if p.logger != nil {
				p.logger.Warnf("Watcher error: %v", err)
			}
		}
	}
}

// rebuild runs one watch-mode pass. Build failures and cancellation are not errors here.
func (p *Pipeline) rebuild(ctx context.Context, cb Callback) error {
	err := p.Run(ctx, cb)
	if err == nil || errors.Is(err, models.ErrBuildFailed) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Pipeline) patternLabel() string {
	if p.opts.WatchPattern == "" {
		return "any file"
	}
	return p.opts.WatchPattern
}

func (p *Pipeline) infof(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Infof(format, args...)
	}
}

func (p *Pipeline) debugf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debugf(format, args...)
	}
}

// ScanArtifacts lists the files in dir whose names end in ext, with names
// relative to dir in lexical order. Staged copies never end in ext and are
// therefore excluded. A missing dir yields no artifacts.
func ScanArtifacts(dir, ext string) ([]models.Asset, error) {
	var assets []models.Asset
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		assets = append(assets, models.Asset{Name: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return assets, nil
}

// outputTail returns the last n non-empty lines of output.
func outputTail(output string, n int) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimRight(line, "\r"))
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
