package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schwers/blueprints/internal/filelock"
	"github.com/schwers/blueprints/internal/testcache"
)

// NewCleanCommand creates the clean command
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove staged copies of test artifacts",
		Long: `Remove cache-busted copies of test artifacts left in the output directory,
for example after a session was killed.

By default primary build outputs are kept. Use --all to remove the whole
output directory.`,
		Args: cobra.NoArgs,
		RunE: cleanCommand,
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("all", false, "Remove the entire output directory")

	return cmd
}

// cleanCommand implements the clean command logic
func cleanCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	lock, err := filelock.LockDir(cfg.OutputDir)
	if err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return fmt.Errorf("another blueprints session is using %s", cfg.OutputDir)
		}
		return err
	}
	defer lock.Unlock()

	mode := testcache.CleanStaged
	if all, _ := cmd.Flags().GetBool("all"); all {
		mode = testcache.CleanAll
	}

	removed, err := testcache.NewCleaner(cfg.OutputDir, cfg.ArtifactExt).Clean(mode)
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}

	if mode == testcache.CleanAll {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.OutputDir)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d staged artifact(s) from %s\n", removed, cfg.OutputDir)
	}
	return nil
}
