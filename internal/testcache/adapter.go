package testcache

import (
	"context"

	"github.com/schwers/blueprints/internal/executor"
	"github.com/schwers/blueprints/internal/models"
)

// Recorded is an execution outcome matched back to the digest it was staged under.
type Recorded struct {
	Digest  string
	Outcome models.Outcome

	// Err is set when the outcome could not be stored. The artifact will
	// run again next round.
	Err error
}

// RunResult is everything one execution pass produced.
type RunResult struct {
	Recorded  []Recorded
	Unmatched []models.Outcome
}

// Adapter drives one framework instance per round and records every
// outcome it can attribute to a digest.
type Adapter struct {
	factory executor.FrameworkFactory
	store   Store
	logger  Logger
}

// NewAdapter creates an Adapter. logger may be nil.
func NewAdapter(factory executor.FrameworkFactory, store Store, logger Logger) *Adapter {
	if factory == nil {
		panic("framework factory cannot be nil")
	}
	return &Adapter{
		factory: factory,
		store:   store,
		logger:  logger,
	}
}

// Run registers every staged artifact with a new framework, runs it once,
// and records each outcome under the digest parsed from its file name.
// Outcomes whose file name carries no digest are dropped and returned as
// unmatched. A framework error is returned after the partial outcomes are recorded.
func (a *Adapter) Run(ctx context.Context, staged []models.StagedArtifact) (RunResult, error) {
	var result RunResult
	if len(staged) == 0 {
		return result, nil
	}

	framework := a.factory()
	for _, artifact := range staged {
		framework.Register(artifact.StagedPath)
	}

	outcomes, runErr := framework.Run(ctx)

	for _, outcome := range outcomes {
		digest, err := ParseStagedPath(outcome.File)
		if err != nil {
			gracefulWarn(a.logger, "Dropping outcome for %s: %v", outcome.File, err)
			result.Unmatched = append(result.Unmatched, outcome)
			continue
		}

		rec := Recorded{Digest: digest, Outcome: outcome}
		if err := a.store.RecordOutcome(digest, outcome.Passed); err != nil {
			gracefulWarn(a.logger, "Failed to record outcome for %s: %v", outcome.File, err)
			rec.Err = err
		}
		result.Recorded = append(result.Recorded, rec)
	}

	return result, runErr
}
