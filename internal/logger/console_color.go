package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/schwers/blueprints/internal/models"
)

// colorScheme defines consistent colors for different metric types.
// Green: success/positive metrics
// Red: failure/error metrics
// Yellow: warning metrics
// Cyan: labels and identifiers
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for metrics.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
// Format: "label: value"
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// formatRoundMetrics formats round counters as plain text.
// Format: "staged: N, skipped: N, passed: N, failed: N, errored: N"
func formatRoundMetrics(result models.RoundResult) string {
	parts := []string{
		fmt.Sprintf("staged: %d", result.Staged),
		fmt.Sprintf("skipped: %d", result.Skipped),
		fmt.Sprintf("passed: %d", result.Passed),
		fmt.Sprintf("failed: %d", result.Failed),
	}
	if result.Errored > 0 {
		parts = append(parts, fmt.Sprintf("errored: %d", result.Errored))
	}
	if result.Unmatched > 0 {
		parts = append(parts, fmt.Sprintf("unmatched: %d", result.Unmatched))
	}
	return strings.Join(parts, ", ")
}

// formatColorizedRoundMetrics formats round counters with color coding.
// Passed counts are green, failures and errors red, unmatched events yellow.
// Colors are automatically disabled when output is not a TTY via fatih/color's built-in detection.
func formatColorizedRoundMetrics(result models.RoundResult) string {
	scheme := newColorScheme()
	parts := []string{
		formatColorizedMetric("staged", result.Staged, scheme),
		formatColorizedMetric("skipped", result.Skipped, scheme),
	}

	if result.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.success.Sprint("passed"), scheme.value.Sprintf("%d", result.Passed)))
	} else {
		parts = append(parts, formatColorizedMetric("passed", result.Passed, scheme))
	}

	if result.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.fail.Sprint("failed"), scheme.fail.Sprintf("%d", result.Failed)))
	} else {
		parts = append(parts, formatColorizedMetric("failed", result.Failed, scheme))
	}

	if result.Errored > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.fail.Sprint("errored"), scheme.fail.Sprintf("%d", result.Errored)))
	}

	if result.Unmatched > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.warn.Sprint("unmatched"), scheme.warn.Sprintf("%d", result.Unmatched)))
	}

	return strings.Join(parts, ", ")
}
