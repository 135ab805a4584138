package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/schwers/blueprints/internal/config"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration the same way run and watch do, apply CLI flags,
check every value, and print the effective settings.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
		SilenceUsage: true,
	}

	addConfigFlags(cmd)

	return cmd
}

// printConfig renders the effective configuration as a table
func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration is valid")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Setting", "Value"})

	timeout := "none"
	if cfg.TestTimeout > 0 {
		timeout = cfg.TestTimeout.String()
	}
	concurrency := "unlimited"
	if cfg.MaxConcurrency > 0 {
		concurrency = strconv.Itoa(cfg.MaxConcurrency)
	}
	metrics := "disabled"
	if cfg.Metrics.Enabled {
		metrics = cfg.Metrics.Addr
	}

	t.AppendRows([]table.Row{
		{"build_command", cfg.BuildCommand},
		{"work_dir", cfg.WorkDir},
		{"output_dir", cfg.OutputDir},
		{"artifact_ext", cfg.ArtifactExt},
		{"watch_paths", strings.Join(cfg.WatchPaths, ", ")},
		{"watch_pattern", cfg.WatchPattern},
		{"debounce", cfg.Debounce.String()},
		{"test_args", strings.Join(cfg.TestArgs, " ")},
		{"test_timeout", timeout},
		{"max_concurrency", concurrency},
		{"result_store", cfg.ResultStore},
		{"log_level", cfg.LogLevel},
		{"log_dir", cfg.LogDir},
		{"metrics", metrics},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}
