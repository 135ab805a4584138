package testcache

import "github.com/schwers/blueprints/internal/models"

// Logger receives session progress. ConsoleLogger, FileLogger and
// NoOpLogger from internal/logger all satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	LogBuildComplete(stats models.BuildStats)
	LogRoundStart(round int, artifacts int)
	LogArtifactResult(report models.ArtifactReport) error
	LogRoundSummary(result models.RoundResult)
}

// MetricsRecorder receives per-round counters.
type MetricsRecorder interface {
	RecordRound(result models.RoundResult)
	RecordBuildFailure()
}

// gracefulWarn logs a warning if logger is non-nil.
// Non-fatal failures are reported this way and never abort a round.
func gracefulWarn(logger Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Warnf(format, args...)
	}
}

// gracefulDebug logs a debug message if logger is non-nil.
func gracefulDebug(logger Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Debugf(format, args...)
	}
}
