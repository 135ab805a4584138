// Package logger provides logging implementations for blueprints sessions.
//
// The logger package offers structured logging of build passes and test
// rounds. Implementations are thread-safe and support various output
// destinations (console, file, etc.).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schwers/blueprints/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs session progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// logLevel determines the minimum log level for messages to be output.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr when they are TTYs.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}

	f, ok := w.(*os.File)
	if !ok || (f != os.Stdout && f != os.Stderr) {
		return false
	}

	// color.NoColor is true when NO_COLOR is set or TERM=dumb
	return !color.NoColor && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}

	return "info"
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// Debugf logs a formatted debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.LogDebug(fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.LogInfo(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.LogWarn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.LogError(fmt.Sprintf(format, args...))
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}

	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string

	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogBuildComplete logs the outcome of a build pass at INFO level, or at
// ERROR level when the build reported errors.
// Format: "[HH:MM:SS] Build complete: <n> artifact(s) in <d>"
func (cl *ConsoleLogger) LogBuildComplete(stats models.BuildStats) {
	if stats.HasErrors() {
		for _, e := range stats.Errors {
			cl.LogError("Build failed: " + e)
		}
		return
	}

	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	header := fmt.Sprintf("Build complete: %d artifact(s) in %s", len(stats.Assets), formatDuration(stats.Duration))
	if cl.colorOutput {
		header = color.New(color.FgGreen).Sprint(header)
	}

	output := fmt.Sprintf("[%s] %s\n", ts, header)
	if cl.shouldLog("debug") {
		for _, asset := range stats.Assets {
			output += fmt.Sprintf("[%s]   %s\n", ts, FormatAsset(asset))
		}
	}

	cl.writer.Write([]byte(output))
}

// LogRoundStart logs the start of a test round at INFO level.
// Format: "[HH:MM:SS] Running tests: round <n> (<count> artifacts)"
func (cl *ConsoleLogger) LogRoundStart(round int, artifacts int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	title := fmt.Sprintf("round %d", round)
	if cl.colorOutput {
		title = color.New(color.FgMagenta, color.Bold).Sprint(title)
	}

	message := fmt.Sprintf("[%s] Running tests: %s (%d artifacts)\n", ts, title, artifacts)
	cl.writer.Write([]byte(message))
}

// LogArtifactResult logs one artifact's state at DEBUG level. Failed artifacts
// are logged at INFO level with their captured output so failures surface again.
// Returns nil for successful logging, or an error if logging failed.
func (cl *ConsoleLogger) LogArtifactResult(report models.ArtifactReport) error {
	if cl.writer == nil {
		return nil
	}

	level := "debug"
	if report.State == models.StateFailedPendingRetry || report.State == models.StateErrored {
		level = "info"
	}
	if !cl.shouldLog(level) {
		return nil
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	stateText := strings.ToUpper(string(report.State))
	if cl.colorOutput {
		stateText = colorizeState(report.State)
	}

	message := fmt.Sprintf("[%s] %s: %s\n", ts, report.Name, stateText)
	if report.Error != nil {
		message += fmt.Sprintf("[%s]   error: %v\n", ts, report.Error)
	}
	if report.State == models.StateFailedPendingRetry && report.Output != "" {
		for _, line := range strings.Split(strings.TrimRight(report.Output, "\n"), "\n") {
			message += fmt.Sprintf("[%s]   | %s\n", ts, line)
		}
	}

	_, err := cl.writer.Write([]byte(message))
	return err
}

// colorizeState renders an artifact state in its status color.
func colorizeState(state models.ArtifactState) string {
	text := strings.ToUpper(string(state))
	switch state {
	case models.StatePassedCached:
		return color.New(color.FgGreen).Sprint(text)
	case models.StateFailedPendingRetry, models.StateErrored:
		return color.New(color.FgRed).Sprint(text)
	case models.StateSkipped:
		return color.New(color.FgHiBlack).Sprint(text)
	default:
		return color.New(color.FgYellow).Sprint(text)
	}
}

// LogRoundSummary logs the round summary at INFO level: a one-line metric
// digest followed by a per-artifact table of everything that was staged.
func (cl *ConsoleLogger) LogRoundSummary(result models.RoundResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var metrics string
	if cl.colorOutput {
		metrics = formatColorizedRoundMetrics(result)
	} else {
		metrics = formatRoundMetrics(result)
	}

	output := fmt.Sprintf("[%s] Round %d complete (%s): %s\n", ts, result.Round, formatDuration(result.Duration), metrics)
	if result.Staged > 0 || result.Errored > 0 {
		output += RenderRoundTable(result, cl.colorOutput)
	}

	cl.writer.Write([]byte(output))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "250ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// FormatAsset renders an asset as "name [size]" using 1000-based units,
// rounded up: "foo.test [3 kB]".
func FormatAsset(asset models.Asset) string {
	size := asset.Size
	sizeStr := fmt.Sprintf("%d B", size)

	if size > 1000 {
		sizeStr = fmt.Sprintf("%d kB", ceilDiv(size, 1000))
	}
	if size > 1000000 {
		sizeStr = fmt.Sprintf("%d MB", ceilDiv(size, 1000000))
	}

	return fmt.Sprintf("%s [%s]", asset.Name, sizeStr)
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debugf(format string, args ...interface{}) {}
func (n *NoOpLogger) Infof(format string, args ...interface{}) {}
func (n *NoOpLogger) Warnf(format string, args ...interface{}) {}
func (n *NoOpLogger) Errorf(format string, args ...interface{}) {}
func (n *NoOpLogger) LogBuildComplete(stats models.BuildStats) {}
func (n *NoOpLogger) LogRoundStart(round int, artifacts int) {}
func (n *NoOpLogger) LogArtifactResult(report models.ArtifactReport) error { return nil }
func (n *NoOpLogger) LogRoundSummary(result models.RoundResult) {}
