package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Result store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// MetricsConfig represents the prometheus endpoint configuration
type MetricsConfig struct {
	// Enabled starts an HTTP server exposing /metrics
	Enabled bool

	// Addr is the listen address for the metrics server
	Addr string
}

// Config represents blueprints configuration options
type Config struct {
	// BuildCommand is run through the shell to produce compiled test artifacts
	BuildCommand string

	// WorkDir is the directory the build command runs in
	WorkDir string

	// OutputDir is where the build command writes artifacts; staged copies live here too
	OutputDir string

	// ArtifactExt is the file extension of compiled test artifacts (e.g. ".test")
	ArtifactExt string

	// WatchPaths are the source roots watched in watch mode
	WatchPaths []string

	// WatchPattern filters which source file names trigger a rebuild
	WatchPattern string

	// Debounce coalesces bursts of source changes into one rebuild
	Debounce time.Duration

	// TestArgs are extra arguments passed to every executed artifact
	TestArgs []string

	// TestTimeout bounds a single artifact's execution (0 = no timeout)
	TestTimeout time.Duration

	// MaxConcurrency bounds parallel hashing/staging per round (0 = unlimited)
	MaxConcurrency int

	// ResultStore selects the outcome store backend (memory, sqlite)
	ResultStore string

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// LogDir is the directory where logs will be written
	LogDir string

	// Metrics contains the prometheus endpoint configuration
	Metrics MetricsConfig
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		BuildCommand:   "go test -c -o .blueprints/tests/ ./...",
		WorkDir:        ".",
		OutputDir:      ".blueprints/tests",
		ArtifactExt:    ".test",
		WatchPaths:     []string{"."},
		WatchPattern:   "*.go",
		Debounce:       200 * time.Millisecond,
		TestTimeout:    10 * time.Minute,
		MaxConcurrency: 0, // Unlimited
		ResultStore:    StoreMemory,
		LogLevel:       "info",
		LogDir:         ".blueprints/logs",
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// rawConfig mirrors the file layout. Pointer fields distinguish "unset" from
// zero values so that an explicit `false` or `0` in the file still applies.
type rawConfig struct {
	BuildCommand   *string    `yaml:"build_command" toml:"build_command"`
	WorkDir        *string    `yaml:"work_dir" toml:"work_dir"`
	OutputDir      *string    `yaml:"output_dir" toml:"output_dir"`
	ArtifactExt    *string    `yaml:"artifact_ext" toml:"artifact_ext"`
	WatchPaths     []string   `yaml:"watch_paths" toml:"watch_paths"`
	WatchPattern   *string    `yaml:"watch_pattern" toml:"watch_pattern"`
	Debounce       string     `yaml:"debounce" toml:"debounce"`
	TestArgs       []string   `yaml:"test_args" toml:"test_args"`
	TestTimeout    string     `yaml:"test_timeout" toml:"test_timeout"`
	MaxConcurrency *int       `yaml:"max_concurrency" toml:"max_concurrency"`
	ResultStore    *string    `yaml:"result_store" toml:"result_store"`
	LogLevel       *string    `yaml:"log_level" toml:"log_level"`
	LogDir         *string    `yaml:"log_dir" toml:"log_dir"`
	Metrics        rawMetrics `yaml:"metrics" toml:"metrics"`
}

type rawMetrics struct {
	Enabled *bool   `yaml:"enabled" toml:"enabled"`
	Addr    *string `yaml:"addr" toml:"addr"`
}

// LoadConfig loads configuration from the specified file path.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.apply(raw); err != nil {
		return nil, err
	}

	return cfg, nil
}

// apply merges the values present in the file over the defaults.
func (c *Config) apply(raw rawConfig) error {
	if raw.BuildCommand != nil {
		c.BuildCommand = *raw.BuildCommand
	}
	if raw.WorkDir != nil {
		c.WorkDir = *raw.WorkDir
	}
	if raw.OutputDir != nil {
		c.OutputDir = *raw.OutputDir
	}
	if raw.ArtifactExt != nil {
		c.ArtifactExt = *raw.ArtifactExt
	}
	if raw.WatchPaths != nil {
		c.WatchPaths = raw.WatchPaths
	}
	if raw.WatchPattern != nil {
		c.WatchPattern = *raw.WatchPattern
	}
	if raw.Debounce != "" {
		d, err := time.ParseDuration(raw.Debounce)
		if err != nil {
			return fmt.Errorf("invalid debounce format %q: %w", raw.Debounce, err)
		}
		c.Debounce = d
	}
	if raw.TestArgs != nil {
		c.TestArgs = raw.TestArgs
	}
	if raw.TestTimeout != "" {
		d, err := time.ParseDuration(raw.TestTimeout)
		if err != nil {
			return fmt.Errorf("invalid test_timeout format %q: %w", raw.TestTimeout, err)
		}
		c.TestTimeout = d
	}
	if raw.MaxConcurrency != nil {
		c.MaxConcurrency = *raw.MaxConcurrency
	}
	if raw.ResultStore != nil {
		c.ResultStore = *raw.ResultStore
	}
	if raw.LogLevel != nil {
		c.LogLevel = *raw.LogLevel
	}
	if raw.LogDir != nil {
		c.LogDir = *raw.LogDir
	}
	if raw.Metrics.Enabled != nil {
		c.Metrics.Enabled = *raw.Metrics.Enabled
	}
	if raw.Metrics.Addr != nil {
		c.Metrics.Addr = *raw.Metrics.Addr
	}
	return nil
}

// LoadConfigFromDir loads configuration from .blueprints/config.yaml (or
// config.yml, config.toml) in the specified directory.
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		configPath := filepath.Join(dir, ".blueprints", name)
		if _, err := os.Stat(configPath); err == nil {
			return LoadConfig(configPath)
		}
	}
	return DefaultConfig(), nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(buildCommand *string, outputDir *string, maxConcurrency *int, testTimeout *time.Duration, logDir *string, resultStore *string) {
	if buildCommand != nil {
		c.BuildCommand = *buildCommand
	}
	if outputDir != nil {
		c.OutputDir = *outputDir
	}
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if testTimeout != nil {
		c.TestTimeout = *testTimeout
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if resultStore != nil {
		c.ResultStore = *resultStore
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BuildCommand) == "" {
		return fmt.Errorf("build_command cannot be empty")
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if filepath.Clean(c.OutputDir) == "." || filepath.Clean(c.OutputDir) == "/" {
		return fmt.Errorf("output_dir %q is not safe to clean up, use a dedicated directory", c.OutputDir)
	}

	// The busting marker is "<ext>-", so the extension must be non-empty
	if !strings.HasPrefix(c.ArtifactExt, ".") || len(c.ArtifactExt) < 2 {
		return fmt.Errorf("artifact_ext must start with '.' and name an extension, got %q", c.ArtifactExt)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	if c.Debounce < 0 {
		return fmt.Errorf("debounce must be >= 0, got %v", c.Debounce)
	}

	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.TestTimeout < 0 {
		return fmt.Errorf("test_timeout must be >= 0, got %v", c.TestTimeout)
	}

	if c.WatchPattern != "" {
		if _, err := filepath.Match(c.WatchPattern, ""); err != nil {
			return fmt.Errorf("invalid watch_pattern %q: %w", c.WatchPattern, err)
		}
	}

	if c.ResultStore != StoreMemory && c.ResultStore != StoreSQLite {
		return fmt.Errorf("invalid result_store %q, must be one of: %s, %s", c.ResultStore, StoreMemory, StoreSQLite)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr cannot be empty when metrics are enabled")
	}

	return nil
}

// ResolvePaths makes WorkDir absolute and anchors OutputDir, LogDir and
// WatchPaths to it when they are relative.
func (c *Config) ResolvePaths() error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to resolve work_dir %q: %w", c.WorkDir, err)
	}
	c.WorkDir = workDir

	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(workDir, p)
	}

	c.OutputDir = anchor(c.OutputDir)
	c.LogDir = anchor(c.LogDir)
	for i, p := range c.WatchPaths {
		c.WatchPaths[i] = anchor(p)
	}
	return nil
}
