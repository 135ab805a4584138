package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schwers/blueprints/internal/testcache"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build once and run the test artifacts",
		Long: `Build test artifacts once, run every artifact, and remove the
output directory afterwards.

Configuration is loaded from .blueprints/config.yaml (or config.toml) in the
project root if present. CLI flags override configuration file settings.

Examples:
  blueprints run
  blueprints run --build-command "go test -c -o out/ ./..." --output-dir out
  blueprints run --result-store sqlite --verbose
  blueprints run --config ci.toml`,
		Args: cobra.NoArgs,
		RunE: runCommand,
	}

	addConfigFlags(cmd)

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, testcache.ModeOneShot, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := a.start(cmd.Context())
	defer cancel()

	recorder := &roundRecorder{session: a.session}
	buildErr := a.pipeline.Run(ctx, recorder.hook)
	if a.awaitInterrupt() {
		return errInterrupted
	}

	if buildErr != nil {
		return fmt.Errorf("run failed: %w", buildErr)
	}
	if recorder.err != nil {
		return fmt.Errorf("run failed: %w", recorder.err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logs written to: %s\n", a.fileLog.RunFile())

	if recorder.result != nil && recorder.result.HasFailures() {
		return fmt.Errorf("%d artifact(s) failed", recorder.result.Failed+recorder.result.Errored)
	}
	return nil
}
