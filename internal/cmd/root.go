package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for blueprints
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blueprints",
		Short: "Incremental test runner for compiled test artifacts",
		Long: `Blueprints runs a build command that produces compiled test artifacts
and executes only the artifacts whose content needs testing.

Artifacts are identified by a digest of their bytes. An artifact that passed
is skipped until its content changes; failing and new artifacts run on every
build. Outcomes are remembered for the life of one session only.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewCleanCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
