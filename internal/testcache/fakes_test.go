package testcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schwers/blueprints/internal/executor"
	"github.com/schwers/blueprints/internal/models"
)

// fakeRunner stands in for the execution framework. Outcomes are decided by
// the artifact's original base name, and every run's registrations are kept.
type fakeRunner struct {
	mu      sync.Mutex
	passing map[string]bool
	rounds  [][]string

	// rewrite, when set, changes the reported file of each outcome
	rewrite func(path string) string

	// stopAfter, when > 0, ends Run with runErr after that many outcomes
	stopAfter int
	runErr    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{passing: make(map[string]bool)}
}

func (r *fakeRunner) setPassing(name string, passed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passing[name] = passed
}

func (r *fakeRunner) factory() executor.FrameworkFactory {
	return func() executor.Framework {
		return &fakeFramework{runner: r}
	}
}

func (r *fakeRunner) runs() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.rounds...)
}

type fakeFramework struct {
	runner *fakeRunner
	paths  []string
}

func (f *fakeFramework) Register(path string) {
	f.paths = append(f.paths, path)
}

func (f *fakeFramework) Run(ctx context.Context) ([]models.Outcome, error) {
	r := f.runner
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rounds = append(r.rounds, append([]string(nil), f.paths...))

	var outcomes []models.Outcome
	for i, path := range f.paths {
		if r.stopAfter > 0 && i >= r.stopAfter {
			return outcomes, r.runErr
		}

		outcome := models.Outcome{File: path, Duration: time.Millisecond}
		if _, err := os.Stat(path); err != nil {
			outcome.Error = err
		} else {
			original := stagedSuffix.ReplaceAllString(filepath.Base(path), "")
			outcome.Passed = r.passing[original]
			outcome.Output = fmt.Sprintf("ran %s", original)
		}
		if r.rewrite != nil {
			outcome.File = r.rewrite(path)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// recordingLogger captures warnings and round summaries.
type recordingLogger struct {
	mu        sync.Mutex
	warnings  []string
	builds    []models.BuildStats
	summaries []models.RoundResult
	reports   []models.ArtifactReport
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) {}
func (l *recordingLogger) Infof(format string, args ...interface{}) {}
func (l *recordingLogger) Errorf(format string, args ...interface{}) {}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) LogBuildComplete(stats models.BuildStats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builds = append(l.builds, stats)
}

func (l *recordingLogger) LogRoundStart(round int, artifacts int) {}

func (l *recordingLogger) LogArtifactResult(report models.ArtifactReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, report)
	return nil
}

func (l *recordingLogger) LogRoundSummary(result models.RoundResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries = append(l.summaries, result)
}

func (l *recordingLogger) warningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}

// recordingMetrics captures metrics calls.
type recordingMetrics struct {
	mu            sync.Mutex
	rounds        []models.RoundResult
	buildFailures int
}

func (m *recordingMetrics) RecordRound(result models.RoundResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, result)
}

func (m *recordingMetrics) RecordBuildFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildFailures++
}

// failingStager fails for one asset base name and copies everything else.
type failingStager struct {
	fail  string
	inner ArtifactStager
}

func (s *failingStager) Stage(ctx context.Context, src, dest string) (string, error) {
	if filepath.Base(src) == s.fail {
		return "", fmt.Errorf("disk full")
	}
	return s.inner.Stage(ctx, src, dest)
}
