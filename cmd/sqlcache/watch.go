package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/sqlcache"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild whenever a tracked file changes",
	Long:  "Builds once, then rebuilds after every burst of changes to the tracked files until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", sqlcache.DefaultDebounce, "quiet period before rebuilding")
	watchCmd.Flags().StringSliceVar(&flagQueries, "queries", nil, "only reassemble bundles for queries matching these patterns")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	engine, err := sqlcache.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Watching %s (output %s)\n", engine.Root(), engine.OutputDir())

	return engine.Watch(cmd.Context(), sqlcache.BuildOptions{Queries: flagQueries}, flagDebounce,
		func(rep *sqlcache.Report, err error) {
			printBuildSummary(os.Stderr, rep)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			}
			if flagFormat == "json" {
				_ = outputResult(CLIResult{Command: "build", Results: newCLIBuild(rep)})
			}
		})
}
