package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/schwers/blueprints/internal/build"
	"github.com/schwers/blueprints/internal/config"
	"github.com/schwers/blueprints/internal/executor"
	"github.com/schwers/blueprints/internal/filelock"
	"github.com/schwers/blueprints/internal/logger"
	"github.com/schwers/blueprints/internal/metrics"
	"github.com/schwers/blueprints/internal/models"
	"github.com/schwers/blueprints/internal/testcache"
)

// interruptExitCode is the conventional status for a process ended by SIGINT
const interruptExitCode = 130

// exitProcess is replaced in tests
var exitProcess = os.Exit

// errInterrupted is returned by a command whose session was ended by a signal.
// In a real process exitProcess ends it first.
var errInterrupted = errors.New("interrupted")

// addConfigFlags registers the flags shared by every command that loads configuration
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .blueprints/config.yaml)")
	cmd.Flags().String("build-command", "", "Command that builds test artifacts")
	cmd.Flags().String("output-dir", "", "Directory the build writes artifacts to")
	cmd.Flags().Int("max-concurrency", -1, "Maximum parallel hash/stage operations (0 = unlimited, -1 = use config)")
	cmd.Flags().String("test-timeout", "", "Timeout per artifact (e.g., 30s, 10m)")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().String("result-store", "", "Outcome store backend (memory, sqlite)")
	cmd.Flags().Bool("verbose", false, "Show per-artifact details")
}

// loadConfig loads the configuration file, merges CLI flags over it,
// validates the result and resolves its paths.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		root, err := config.FindProjectRoot(".")
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
		cfg, err = config.LoadConfigFromDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if !filepath.IsAbs(cfg.WorkDir) {
			cfg.WorkDir = filepath.Join(root, cfg.WorkDir)
		}
	}

	var buildCommandPtr *string
	if cmd.Flags().Changed("build-command") {
		v, _ := cmd.Flags().GetString("build-command")
		buildCommandPtr = &v
	}

	var outputDirPtr *string
	if cmd.Flags().Changed("output-dir") {
		v, _ := cmd.Flags().GetString("output-dir")
		outputDirPtr = &v
	}

	var maxConcurrencyPtr *int
	if cmd.Flags().Changed("max-concurrency") {
		v, _ := cmd.Flags().GetInt("max-concurrency")
		maxConcurrencyPtr = &v
	}

	var testTimeoutPtr *time.Duration
	if cmd.Flags().Changed("test-timeout") {
		v, _ := cmd.Flags().GetString("test-timeout")
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid test-timeout format %q: %w", v, err)
		}
		testTimeoutPtr = &timeout
	}

	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		v, _ := cmd.Flags().GetString("log-dir")
		logDirPtr = &v
	}

	var resultStorePtr *string
	if cmd.Flags().Changed("result-store") {
		v, _ := cmd.Flags().GetString("result-store")
		resultStorePtr = &v
	}

	// Merge CLI flags with config (flags take precedence)
	cfg.MergeWithFlags(buildCommandPtr, outputDirPtr, maxConcurrencyPtr, testTimeoutPtr, logDirPtr, resultStorePtr)

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newStore creates the outcome store selected by the configuration
func newStore(cfg *config.Config, sessionID string) (testcache.Store, error) {
	switch cfg.ResultStore {
	case config.StoreSQLite:
		store, err := testcache.NewSQLiteStore(sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to open result store: %w", err)
		}
		return store, nil
	default:
		return testcache.NewMemoryStore(), nil
	}
}

// app holds everything a run or watch session needs
type app struct {
	cfg      *config.Config
	id       string
	console  *logger.ConsoleLogger
	fileLog  *logger.FileLogger
	log      *multiLogger
	lock     *filelock.FileLock
	session  *testcache.Session
	pipeline *build.Pipeline
	recorder *metrics.Recorder

	// interrupting is set before the session context is canceled by a
	// signal; handled is closed once interrupt cleanup is complete.
	interrupting atomic.Bool
	handled      chan struct{}
	closeOnce    sync.Once
}

// newApp wires configuration, loggers, the staging lock, the outcome
// store, the execution framework and the build pipeline into one session.
func newApp(cfg *config.Config, mode testcache.Mode, out io.Writer) (*app, error) {
	a := &app{
		cfg:     cfg,
		id:      uuid.NewString(),
		handled: make(chan struct{}),
	}

	a.console = logger.NewConsoleLogger(out, cfg.LogLevel)

	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel, a.id)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	a.fileLog = fileLog
	a.log = &multiLogger{loggers: []testcache.Logger{a.console, fileLog}}

	lock, err := filelock.LockDir(cfg.OutputDir)
	if err != nil {
		fileLog.Close()
		if errors.Is(err, filelock.ErrLocked) {
			return nil, fmt.Errorf("another blueprints session is using %s", cfg.OutputDir)
		}
		return nil, err
	}
	a.lock = lock

	store, err := newStore(cfg, a.id)
	if err != nil {
		lock.Unlock()
		fileLog.Close()
		return nil, err
	}

	opts := []testcache.Option{testcache.WithLogger(a.log)}
	if cfg.Metrics.Enabled {
		a.recorder = metrics.NewRecorder()
		opts = append(opts, testcache.WithMetrics(a.recorder))
	}

	factory := executor.NewProcessFrameworkFactory(cfg.WorkDir, cfg.TestArgs, cfg.TestTimeout)
	a.session = testcache.NewSession(testcache.Config{
		ID:             a.id,
		OutputDir:      cfg.OutputDir,
		ArtifactExt:    cfg.ArtifactExt,
		Mode:           mode,
		MaxConcurrency: cfg.MaxConcurrency,
	}, store, factory, opts...)

	a.pipeline = build.NewPipeline(build.Options{
		Command:      cfg.BuildCommand,
		WorkDir:      cfg.WorkDir,
		OutputDir:    cfg.OutputDir,
		ArtifactExt:  cfg.ArtifactExt,
		WatchPaths:   cfg.WatchPaths,
		WatchPattern: cfg.WatchPattern,
		Debounce:     cfg.Debounce,
	}, nil, a.log)

	return a, nil
}

// start launches the metrics server (when enabled) and the interrupt
// handler. The returned context is canceled on interrupt or by the returned cancel func.
func (a *app) start(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	if a.recorder != nil {
		a.log.Infof("Serving metrics on http://%s/metrics", a.cfg.Metrics.Addr)
		go func() {
			if err := a.recorder.Serve(ctx, a.cfg.Metrics.Addr); err != nil {
				a.log.Warnf("Metrics server stopped: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		handleInterrupt(ctx, sigChan, cancel, a)
	}()

	return ctx, cancel
}

// handleInterrupt waits for a signal, then cancels ctx, performs the
// session's interrupt cleanup and exits. It returns when ctx is done first.
// Commands woken by the cancellation block in awaitInterrupt until the
// cleanup is complete, so the process cannot exit ahead of it.
func handleInterrupt(ctx context.Context, sigChan <-chan os.Signal, cancel context.CancelFunc, a *app) {
	select {
	case sig := <-sigChan:
		a.interrupting.Store(true)
		defer close(a.handled)

		a.console.LogWarn(fmt.Sprintf("Received %v, cleaning up...", sig))
		cancel()
		a.session.Interrupt()
		a.close()
		exitProcess(interruptExitCode)
	case <-ctx.Done():
	}
}

// awaitInterrupt blocks until a signal-driven cleanup has finished and
// reports whether one happened.
func (a *app) awaitInterrupt() bool {
	if !a.interrupting.Load() {
		return false
	}
	<-a.handled
	return true
}

// close releases the session, the staging lock and the file logger. Only the
// first call has any effect.
func (a *app) close() {
	a.closeOnce.Do(func() {
		if err := a.session.Close(); err != nil {
			a.console.LogWarn(fmt.Sprintf("Failed to close result store: %v", err))
		}
		if err := a.lock.Unlock(); err != nil {
			a.console.LogWarn(fmt.Sprintf("Failed to release staging lock: %v", err))
		}
		a.fileLog.Close()
	})
}

// roundRecorder remembers the last round a one-shot session produced
type roundRecorder struct {
	session *testcache.Session
	result  *models.RoundResult
	err     error
}

func (r *roundRecorder) hook(ctx context.Context, stats models.BuildStats) {
	result, err := r.session.HandleBuild(ctx, stats)
	r.err = err
	if result.Round > 0 {
		r.result = &result
	}
}
