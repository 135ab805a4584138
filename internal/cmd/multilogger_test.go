package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schwers/blueprints/internal/models"
	"github.com/schwers/blueprints/internal/testcache"
)

type countingLogger struct {
	calls     map[string]int
	resultErr error
}

func newCountingLogger() *countingLogger {
	return &countingLogger{calls: make(map[string]int)}
}

func (l *countingLogger) Debugf(format string, args ...interface{}) { l.calls["debug"]++ }
func (l *countingLogger) Infof(format string, args ...interface{}) { l.calls["info"]++ }
func (l *countingLogger) Warnf(format string, args ...interface{}) { l.calls["warn"]++ }
func (l *countingLogger) Errorf(format string, args ...interface{}) { l.calls["error"]++ }

func (l *countingLogger) LogBuildComplete(stats models.BuildStats) { l.calls["build"]++ }
func (l *countingLogger) LogRoundStart(round int, artifacts int) { l.calls["start"]++ }
func (l *countingLogger) LogRoundSummary(result models.RoundResult) {
	l.calls["summary"]++
}

func (l *countingLogger) LogArtifactResult(report models.ArtifactReport) error {
	l.calls["result"]++
	return l.resultErr
}

func TestMultiLogger_ForwardsToAll(t *testing.T) {
	first := newCountingLogger()
	second := newCountingLogger()
	ml := &multiLogger{loggers: []testcache.Logger{first, second}}

	ml.Debugf("d")
	ml.Infof("i")
	ml.Warnf("w")
	ml.Errorf("e")
	ml.LogBuildComplete(models.BuildStats{})
	ml.LogRoundStart(1, 2)
	ml.LogRoundSummary(models.RoundResult{Round: 1})
	assert.NoError(t, ml.LogArtifactResult(models.ArtifactReport{}))

	for _, l := range []*countingLogger{first, second} {
		for _, key := range []string{"debug", "info", "warn", "error", "build", "start", "summary", "result"} {
			assert.Equal(t, 1, l.calls[key], key)
		}
	}
}

func TestMultiLogger_ArtifactResultError(t *testing.T) {
	failing := newCountingLogger()
	failing.resultErr = errors.New("disk full")
	healthy := newCountingLogger()
	ml := &multiLogger{loggers: []testcache.Logger{failing, healthy}}

	err := ml.LogArtifactResult(models.ArtifactReport{})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, healthy.calls["result"], "later loggers still receive the report")
}
