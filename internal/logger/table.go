package logger

import (
	"bytes"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/schwers/blueprints/internal/models"
)

// RenderRoundTable renders the artifacts of a round as an ASCII table.
// Skipped artifacts are folded into the footer rather than listed.
func RenderRoundTable(result models.RoundResult, colored bool) string {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.AppendHeader(table.Row{"ARTIFACT", "DIGEST", "STATE", "DURATION"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ARTIFACT", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "DURATION", Align: text.AlignRight},
	})

	for _, a := range result.Artifacts {
		if a.State == models.StateSkipped {
			continue
		}
		duration := ""
		if a.Duration > 0 {
			duration = formatDuration(a.Duration)
		}
		t.AppendRow(table.Row{a.Name, shortDigest(a.Digest), strings.ToUpper(string(a.State)), duration})
	}

	t.AppendFooter(table.Row{"TOTAL", "", summaryStatus(result), formatDuration(result.Duration)})

	switch {
	case !colored:
		t.SetStyle(table.StyleDefault)
	case result.HasFailures():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.Render()
	return buf.String()
}

// shortDigest abbreviates a digest for display.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func summaryStatus(result models.RoundResult) string {
	switch {
	case result.Errored > 0 && result.Failed == 0:
		return "ERRORED"
	case result.Failed > 0:
		return "FAIL"
	default:
		return "PASS"
	}
}
