package models

import "time"

// Outcome is one completion event reported by the execution framework.
type Outcome struct {
	File     string        // Staged path that was executed
	Passed   bool          // True when the artifact exited successfully
	Output   string        // Combined stdout/stderr of the artifact
	Error    error         // Error if the artifact could not be started
	Duration time.Duration // Time taken to execute
}

// State returns "passed" or "failed", mirroring the framework's reporting surface.
func (o Outcome) State() string {
	if o.Passed {
		return "passed"
	}
	return "failed"
}

// ArtifactReport describes what happened to one artifact during a round.
type ArtifactReport struct {
	Name       string        // Asset name relative to the output directory
	Digest     string        // Content digest (empty if hashing failed)
	State      ArtifactState // Final state of the artifact for this round
	StagedPath string        // Cache-busted path (empty if not staged)
	Error      error         // Hash or stage error that excluded the artifact
	Output     string        // Captured artifact output (empty if not executed)
	Duration   time.Duration // Execution time (zero if not executed)
}

// RoundResult represents the aggregate result of one build-to-cleanup cycle.
type RoundResult struct {
	Round     int              // 1-based round number within the session
	Artifacts []ArtifactReport // Per-artifact reports, in asset order
	Staged    int              // Artifacts staged for execution
	Skipped   int              // Artifacts skipped because they passed before
	Passed    int              // Artifacts that passed this round
	Failed    int              // Artifacts that failed this round
	Errored   int              // Artifacts excluded by hash or stage errors
	Unmatched int              // Completion events whose digest could not be parsed
	Duration  time.Duration    // Total round time
}

// HasFailures reports whether any artifact failed or was excluded this round.
func (r RoundResult) HasFailures() bool {
	return r.Failed > 0 || r.Errored > 0
}

// Tally recomputes the counters from the per-artifact reports.
func (r *RoundResult) Tally() {
	r.Staged, r.Skipped, r.Passed, r.Failed, r.Errored = 0, 0, 0, 0, 0
	for _, a := range r.Artifacts {
		switch a.State {
		case StateSkipped:
			r.Skipped++
		case StatePassedCached:
			r.Staged++
			r.Passed++
		case StateFailedPendingRetry:
			r.Staged++
			r.Failed++
		case StateStaged, StateRunning:
			r.Staged++
		case StateErrored:
			r.Errored++
		}
	}
}
