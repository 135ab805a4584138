package models

import (
	"errors"
	"strings"
	"testing"
)

func TestRoundResult_Tally(t *testing.T) {
	tests := []struct {
		name          string
		artifacts     []ArtifactReport
		expectStaged  int
		expectSkipped int
		expectPassed  int
		expectFailed  int
		expectErrored int
	}{
		{
			name: "mixed artifact states",
			artifacts: []ArtifactReport{
				{Name: "a.test", State: StatePassedCached},
				{Name: "b.test", State: StateFailedPendingRetry},
				{Name: "c.test", State: StateSkipped},
				{Name: "d.test", State: StateErrored, Error: errors.New("boom")},
				{Name: "e.test", State: StatePassedCached},
			},
			expectStaged:  3,
			expectSkipped: 1,
			expectPassed:  2,
			expectFailed:  1,
			expectErrored: 1,
		},
		{
			name: "staged but never reported",
			artifacts: []ArtifactReport{
				{Name: "a.test", State: StateRunning},
			},
			expectStaged: 1,
		},
		{
			name:      "empty round",
			artifacts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RoundResult{Artifacts: tt.artifacts}
			r.Tally()

			if r.Staged != tt.expectStaged {
				t.Errorf("Staged = %d, want %d", r.Staged, tt.expectStaged)
			}
			if r.Skipped != tt.expectSkipped {
				t.Errorf("Skipped = %d, want %d", r.Skipped, tt.expectSkipped)
			}
			if r.Passed != tt.expectPassed {
				t.Errorf("Passed = %d, want %d", r.Passed, tt.expectPassed)
			}
			if r.Failed != tt.expectFailed {
				t.Errorf("Failed = %d, want %d", r.Failed, tt.expectFailed)
			}
			if r.Errored != tt.expectErrored {
				t.Errorf("Errored = %d, want %d", r.Errored, tt.expectErrored)
			}
		})
	}
}

func TestRoundResult_HasFailures(t *testing.T) {
	if (RoundResult{Passed: 3}).HasFailures() {
		t.Error("all-passing round should not report failures")
	}
	if !(RoundResult{Failed: 1}).HasFailures() {
		t.Error("failed artifact should report failures")
	}
	if !(RoundResult{Errored: 1}).HasFailures() {
		t.Error("errored artifact should report failures")
	}
}

func TestOutcomeState(t *testing.T) {
	if got := (Outcome{Passed: true}).State(); got != "passed" {
		t.Errorf("State() = %q, want passed", got)
	}
	if got := (Outcome{}).State(); got != "failed" {
		t.Errorf("State() = %q, want failed", got)
	}
}

func TestArtifactStateIsTerminal(t *testing.T) {
	tests := []struct {
		state    ArtifactState
		terminal bool
	}{
		{StateUntested, false},
		{StateStaged, false},
		{StateRunning, false},
		{StatePassedCached, true},
		{StateFailedPendingRetry, true},
		{StateSkipped, true},
		{StateErrored, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestBuildStatsHasErrors(t *testing.T) {
	if (BuildStats{}).HasErrors() {
		t.Error("empty stats should not report errors")
	}
	if !(BuildStats{Errors: []string{"exit status 2"}}).HasErrors() {
		t.Error("stats with errors should report errors")
	}
}

func TestBuildStatsErr(t *testing.T) {
	if err := (BuildStats{}).Err(); err != nil {
		t.Errorf("expected nil error for successful build, got %v", err)
	}

	err := (BuildStats{Errors: []string{"exit status 2", "missing output"}}).Err()
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "exit status 2; missing output") {
		t.Errorf("expected joined build errors in %q", err.Error())
	}
}
