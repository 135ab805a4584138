package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schwers/blueprints/internal/testcache"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild on source changes and rerun what changed or failed",
		Long: `Build test artifacts, run them, then watch the source tree and rebuild
after every burst of changes.

After each build only artifacts whose content changed, that failed last time,
or that never ran are executed. Artifacts that passed are skipped until their
content changes. Primary build outputs are kept between rounds; on interrupt
the whole output directory is removed.

Examples:
  blueprints watch
  blueprints watch --verbose
  blueprints watch --build-command "go test -c -o out/ ./..." --output-dir out`,
		Args: cobra.NoArgs,
		RunE: watchCommand,
	}

	addConfigFlags(cmd)

	return cmd
}

// watchCommand implements the watch command logic
func watchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, testcache.ModeWatch, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := a.start(cmd.Context())
	defer cancel()

	a.log.Infof("Session %s started, logs in %s", a.id, a.fileLog.RunFile())

	err = a.pipeline.Watch(ctx, a.session.Hook())
	if a.awaitInterrupt() {
		return errInterrupted
	}
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	passed, failed := a.session.Store().Summary()
	fmt.Fprintf(cmd.OutOrStdout(), "Watch stopped after %d round(s): %d digest(s) passing, %d failing\n",
		a.session.Rounds(), passed, failed)
	return nil
}
