package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schwers/blueprints/internal/models"
)

// FileLogger logs session events to files in the configured log directory.
// It creates timestamped per-run log files, per-artifact output logs,
// and maintains a latest.log symlink pointing to the most recent run.
// It is thread-safe and supports log level filtering.
type FileLogger struct {
	logDir       string
	runLog       *os.File
	runFile      string
	artifactsDir string
	logLevel     string
	mu           sync.Mutex
}

// NewFileLogger creates a new FileLogger with a custom log directory and log level.
// It creates the log directory if it doesn't exist, opens a timestamped
// run log file, and creates/updates the latest.log symlink.
// sessionID is written to the run log header.
func NewFileLogger(logDir string, logLevel string, sessionID string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	artifactsDir := filepath.Join(logDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	// Generate timestamped filename: run-YYYYMMDD-HHMMSS.log
	ts := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", ts))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}

	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:       logDir,
		runLog:       file,
		runFile:      runFile,
		artifactsDir: artifactsDir,
		logLevel:     normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== Blueprints Run Log ===\n")
	if sessionID != "" {
		logger.writeRunLog(fmt.Sprintf("Session: %s\n", sessionID))
	}
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// shouldLog checks if a message at the given level should be logged.
func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}

	formatted := fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message)
	fl.writeRunLog(formatted)
}

// Debugf logs a formatted debug-level message.
func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error-level message.
func (fl *FileLogger) Errorf(format string, args ...interface{}) {
	fl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

// LogBuildComplete logs a build pass with every asset it produced.
func (fl *FileLogger) LogBuildComplete(stats models.BuildStats) {
	if stats.HasErrors() {
		for _, e := range stats.Errors {
			fl.logWithLevel("ERROR", "Build failed: "+e)
		}
		return
	}

	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	message := fmt.Sprintf("[%s] Build complete: %d artifact(s) in %.1fs\n", ts, len(stats.Assets), stats.Duration.Seconds())
	for _, asset := range stats.Assets {
		message += fmt.Sprintf("[%s]   %s\n", ts, FormatAsset(asset))
	}

	fl.writeRunLog(message)
}

// LogRoundStart logs the start of a test round at INFO level.
func (fl *FileLogger) LogRoundStart(round int, artifacts int) {
	if !fl.shouldLog("info") {
		return
	}

	label := "artifact"
	if artifacts != 1 {
		label = "artifacts"
	}

	fl.writeRunLog(fmt.Sprintf("[%s] Starting round %d: %d %s\n", timestamp(), round, artifacts, label))
}

// LogArtifactResult records an artifact's state in the run log and, for
// executed artifacts, writes its captured output to artifacts/<name>.log.
// The detail file is overwritten each round so it always holds the latest run.
func (fl *FileLogger) LogArtifactResult(report models.ArtifactReport) error {
	line := fmt.Sprintf("%s: %s", report.Name, strings.ToUpper(string(report.State)))
	if report.Digest != "" {
		line += fmt.Sprintf(" (digest %s)", report.Digest)
	}
	if report.Error != nil {
		line += fmt.Sprintf(": %v", report.Error)
	}
	fl.logWithLevel("DEBUG", line)

	if report.State != models.StatePassedCached && report.State != models.StateFailedPendingRetry {
		return nil
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	name := strings.ReplaceAll(filepath.ToSlash(report.Name), "/", "_")
	path := filepath.Join(fl.artifactsDir, name+".log")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create artifact log file: %w", err)
	}
	defer file.Close()

	content := fmt.Sprintf("=== %s ===\n", report.Name)
	content += fmt.Sprintf("State: %s\n", report.State)
	content += fmt.Sprintf("Digest: %s\n", report.Digest)
	content += fmt.Sprintf("Staged as: %s\n", report.StagedPath)
	content += fmt.Sprintf("Duration: %.1fs\n\n", report.Duration.Seconds())

	if report.Output != "" {
		content += fmt.Sprintf("Output:\n%s\n\n", report.Output)
	}

	content += fmt.Sprintf("Completed at: %s\n", time.Now().Format(time.RFC3339))

	if _, err := file.WriteString(content); err != nil {
		return fmt.Errorf("failed to write artifact log: %w", err)
	}

	return nil
}

// LogRoundSummary logs the round summary with final statistics at INFO level.
func (fl *FileLogger) LogRoundSummary(result models.RoundResult) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()

	status := "SUCCESS"
	if result.HasFailures() {
		status = "FAILED"
	}

	message := fmt.Sprintf(
		"\n[%s] === ROUND %d SUMMARY ===\n"+
			"[%s] Staged:       %d\n"+
			"[%s] Skipped:      %d\n"+
			"[%s] Passed:       %d\n"+
			"[%s] Failed:       %d\n"+
			"[%s] Errored:      %d\n"+
			"[%s] Unmatched:    %d\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Status:       %s\n",
		ts, result.Round,
		ts, result.Staged,
		ts, result.Skipped,
		ts, result.Passed,
		ts, result.Failed,
		ts, result.Errored,
		ts, result.Unmatched,
		ts, result.Duration.Seconds(),
		ts, status,
	)

	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
// It should be called when the logger is no longer needed.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
