package cmd

import (
	"github.com/schwers/blueprints/internal/models"
	"github.com/schwers/blueprints/internal/testcache"
)

// multiLogger implements testcache.Logger by delegating to multiple loggers
type multiLogger struct {
	loggers []testcache.Logger
}

func (ml *multiLogger) Debugf(format string, args ...interface{}) {
	for _, logger := range ml.loggers {
		logger.Debugf(format, args...)
	}
}

func (ml *multiLogger) Infof(format string, args ...interface{}) {
	for _, logger := range ml.loggers {
		logger.Infof(format, args...)
	}
}

func (ml *multiLogger) Warnf(format string, args ...interface{}) {
	for _, logger := range ml.loggers {
		logger.Warnf(format, args...)
	}
}

func (ml *multiLogger) Errorf(format string, args ...interface{}) {
	for _, logger := range ml.loggers {
		logger.Errorf(format, args...)
	}
}

// LogBuildComplete forwards to all loggers
func (ml *multiLogger) LogBuildComplete(stats models.BuildStats) {
	for _, logger := range ml.loggers {
		logger.LogBuildComplete(stats)
	}
}

// LogRoundStart forwards to all loggers
func (ml *multiLogger) LogRoundStart(round int, artifacts int) {
	for _, logger := range ml.loggers {
		logger.LogRoundStart(round, artifacts)
	}
}

// LogArtifactResult forwards to all loggers and returns the last error
func (ml *multiLogger) LogArtifactResult(report models.ArtifactReport) error {
	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.LogArtifactResult(report); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// LogRoundSummary forwards to all loggers
func (ml *multiLogger) LogRoundSummary(result models.RoundResult) {
	for _, logger := range ml.loggers {
		logger.LogRoundSummary(result)
	}
}
