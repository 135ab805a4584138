package testcache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schwers/blueprints/internal/executor"
	"github.com/schwers/blueprints/internal/models"
)

// errNoOutcome marks a staged artifact the framework never reported on.
var errNoOutcome = errors.New("no outcome reported")

// Mode selects the session's cleanup policy.
type Mode string

const (
	// ModeOneShot runs a single round and removes the output directory afterwards.
	ModeOneShot Mode = "run"

	// ModeWatch runs a round after every build and keeps primary outputs between rounds.
	ModeWatch Mode = "watch"
)

// Config configures a Session.
type Config struct {
	// ID identifies the session in logs (typically a uuid)
	ID string

	// OutputDir holds the build's artifacts and their staged copies
	OutputDir string

	// ArtifactExt is the extension of compiled test artifacts
	ArtifactExt string

	// Mode selects the cleanup policy
	Mode Mode

	// MaxConcurrency bounds parallel hashing and staging (0 = unlimited)
	MaxConcurrency int
}

// Option configures optional Session collaborators.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// WithHasher replaces the default sha256 Hasher.
func WithHasher(hasher ContentHasher) Option {
	return func(s *Session) {
		s.hasher = hasher
	}
}

// WithStager replaces the default FileStager.
func WithStager(stager ArtifactStager) Option {
	return func(s *Session) {
		s.stager = stager
	}
}

// Session owns the outcome store for one process lifetime and turns each
// build notification into a round: hash, decide, stage, execute, record, clean.
// Rounds are serialized.
type Session struct {
	id             string
	mode           Mode
	outputDir      string
	maxConcurrency int

	store   Store
	buster  *CacheBuster
	hasher  ContentHasher
	stager  ArtifactStager
	adapter *Adapter
	cleaner *Cleaner
	logger  Logger
	metrics MetricsRecorder

	mu    sync.Mutex
	round int
}

// NewSession creates a Session that records outcomes in store and runs
// artifacts with frameworks built by factory.
func NewSession(cfg Config, store Store, factory executor.FrameworkFactory, opts ...Option) *Session {
	if store == nil {
		panic("store cannot be nil")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeOneShot
	}

	s := &Session{
		id:             cfg.ID,
		mode:           mode,
		outputDir:      cfg.OutputDir,
		maxConcurrency: cfg.MaxConcurrency,
		store:          store,
		buster:         NewCacheBuster(store),
		hasher:         NewHasher(),
		stager:         NewFileStager(),
		cleaner:        NewCleaner(cfg.OutputDir, cfg.ArtifactExt),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.adapter = NewAdapter(factory, store, s.logger)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the session's cleanup mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Store returns the session's outcome store.
func (s *Session) Store() Store {
	return s.store
}

// Rounds returns how many rounds have run.
func (s *Session) Rounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.round
}

// Hook returns a post-build callback that runs a round for each build.
// Execution errors are logged; failed builds were already reported.
func (s *Session) Hook() func(context.Context, models.BuildStats) {
	return func(ctx context.Context, stats models.BuildStats) {
		_, err := s.HandleBuild(ctx, stats)
		if err != nil && !errors.Is(err, models.ErrBuildFailed) && ctx.Err() == nil {
			gracefulWarn(s.logger, "Round failed: %v", err)
		}
	}
}

// HandleBuild runs one round for the artifacts a build produced. A failed
// build runs no round and returns an error wrapping models.ErrBuildFailed.
// Hash and stage failures are reported per artifact and never fail the
// round; an error is returned only when the execution pass itself fails.
func (s *Session) HandleBuild(ctx context.Context, stats models.BuildStats) (models.RoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logger != nil {
		s.logger.LogBuildComplete(stats)
	}

	if err := stats.Err(); err != nil {
		if s.metrics != nil {
			s.metrics.RecordBuildFailure()
		}
		return models.RoundResult{}, err
	}

	s.round++
	start := time.Now()
	result := models.RoundResult{
		Round:     s.round,
		Artifacts: make([]models.ArtifactReport, len(stats.Assets)),
	}

	if s.logger != nil {
		s.logger.LogRoundStart(result.Round, len(stats.Assets))
	}

	staged := s.prepare(ctx, stats.Assets, result.Artifacts)

	var runErr error
	if len(staged) > 0 {
		runErr = s.execute(ctx, staged, &result)
	}

	s.cleanup(s.roundCleanMode())

	result.Duration = time.Since(start)
	result.Tally()
	s.report(result)

	if runErr != nil {
		return result, fmt.Errorf("failed to execute round %d: %w", result.Round, runErr)
	}
	return result, nil
}

// prepare hashes every asset and stages the ones that need execution.
// reports must have one slot per asset. Staged artifacts are returned in asset order.
func (s *Session) prepare(ctx context.Context, assets []models.Asset, reports []models.ArtifactReport) []models.StagedArtifact {
	slots := make([]*models.StagedArtifact, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	for i, asset := range assets {
		g.Go(func() error {
			// Failures stay on the report so siblings keep going
			slots[i] = s.prepareOne(gctx, asset, &reports[i])
			return nil
		})
	}
	g.Wait()

	staged := make([]models.StagedArtifact, 0, len(assets))
	for _, slot := range slots {
		if slot != nil {
			staged = append(staged, *slot)
		}
	}
	return staged
}

func (s *Session) prepareOne(ctx context.Context, asset models.Asset, report *models.ArtifactReport) *models.StagedArtifact {
	report.Name = asset.Name
	report.State = models.StateUntested

	source := filepath.Join(s.outputDir, asset.Name)
	digest, err := s.hasher.Hash(ctx, source)
	if err != nil {
		gracefulWarn(s.logger, "Excluding %s from round: %v", asset.Name, err)
		report.State = models.StateErrored
		report.Error = err
		return nil
	}
	report.Digest = digest

	if !s.store.NeedsExecution(digest) {
		gracefulDebug(s.logger, "%s unchanged since it passed (%s), skipping", asset.Name, digest)
		report.State = models.StateSkipped
		return nil
	}

	dest := s.buster.StagedPath(source, digest)
	stagedPath, err := s.stager.Stage(ctx, source, dest)
	if err != nil {
		gracefulWarn(s.logger, "Failed to stage %s: %v", asset.Name, err)
		report.State = models.StateErrored
		report.Error = fmt.Errorf("failed to stage %s: %w", asset.Name, err)
		return nil
	}

	report.State = models.StateStaged
	report.StagedPath = stagedPath
	return &models.StagedArtifact{
		Asset:      asset,
		Digest:     digest,
		SourcePath: source,
		StagedPath: stagedPath,
	}
}

// execute runs the staged artifacts and folds their outcomes into result.
func (s *Session) execute(ctx context.Context, staged []models.StagedArtifact, result *models.RoundResult) error {
	byPath := make(map[string]*models.ArtifactReport, len(staged))
	for i := range result.Artifacts {
		report := &result.Artifacts[i]
		if report.State == models.StateStaged {
			report.State = models.StateRunning
			byPath[report.StagedPath] = report
		}
	}

	run, err := s.adapter.Run(ctx, staged)

	for _, rec := range run.Recorded {
		report, ok := byPath[rec.Outcome.File]
		if !ok {
			continue
		}
		report.Output = rec.Outcome.Output
		report.Duration = rec.Outcome.Duration
		report.Error = rec.Outcome.Error
		if rec.Err != nil {
			report.Error = rec.Err
		}
		if rec.Outcome.Passed {
			report.State = models.StatePassedCached
		} else {
			report.State = models.StateFailedPendingRetry
		}
	}

	for _, report := range byPath {
		if report.State == models.StateRunning {
			report.State = models.StateErrored
			report.Error = errNoOutcome
		}
	}

	result.Unmatched = len(run.Unmatched)
	return err
}

func (s *Session) roundCleanMode() CleanMode {
	if s.mode == ModeWatch {
		return CleanStaged
	}
	return CleanAll
}

func (s *Session) cleanup(mode CleanMode) {
	removed, err := s.cleaner.Clean(mode)
	if err != nil {
		gracefulWarn(s.logger, "Cleanup (%s) failed: %v", mode, err)
		return
	}
	if mode == CleanStaged {
		gracefulDebug(s.logger, "Removed %d staged artifact(s)", removed)
	}
}

func (s *Session) report(result models.RoundResult) {
	if s.logger != nil {
		for _, artifact := range result.Artifacts {
			if err := s.logger.LogArtifactResult(artifact); err != nil {
				s.logger.Warnf("Failed to log result for %s: %v", artifact.Name, err)
			}
		}
		s.logger.LogRoundSummary(result)
	}
	if s.metrics != nil {
		s.metrics.RecordRound(result)
	}
}

// Interrupt performs the cleanup due when the process is interrupted.
// Watch mode removes the whole output directory since the incremental state
// is being discarded. One-shot mode leaves the directory to the process exit.
// Interrupt does not wait for a round in progress.
func (s *Session) Interrupt() {
	if s.mode != ModeWatch {
		return
	}
	s.cleanup(CleanAll)
}

// Close releases the outcome store. Recorded outcomes are discarded.
func (s *Session) Close() error {
	return s.store.Close()
}
