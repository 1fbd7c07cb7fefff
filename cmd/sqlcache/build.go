package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/sqlcache"
)

var (
	flagForce   bool
	flagFiles   []string
	flagQueries []string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Index the project and write cache bundles",
	Long: "Re-extracts the tracked files that changed since the last committed generation, " +
		"reassembles the bundles whose inputs moved, and publishes a new generation atomically.",
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&flagForce, "force", false, "ignore committed hashes and rebuild everything")
	buildCmd.Flags().StringSliceVar(&flagFiles, "files", nil, "only re-extract files matching these patterns (gitignore syntax, or a role name)")
	buildCmd.Flags().StringSliceVar(&flagQueries, "queries", nil, "only reassemble bundles for queries matching these patterns")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	engine, err := sqlcache.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	rep, err := engine.Build(cmd.Context(), sqlcache.BuildOptions{
		Force:   flagForce,
		Files:   flagFiles,
		Queries: flagQueries,
	})
	printBuildSummary(os.Stderr, rep)
	if outErr := outputResult(CLIResult{Command: "build", Results: newCLIBuild(rep)}); outErr != nil {
		return outErr
	}
	return buildExit(rep, err)
}

// buildExit maps a build outcome to the process exit status.
func buildExit(rep *sqlcache.Report, err error) error {
	switch {
	case err != nil:
		return &exitError{code: exitAborted, err: err}
	case rep.State == sqlcache.Aborted:
		return &exitError{code: exitAborted}
	case rep.Fatal:
		return &exitError{code: exitFatal, err: fmt.Errorf("a required file has no index")}
	}
	return nil
}

func newCLIBuild(rep *sqlcache.Report) CLIBuild {
	return CLIBuild{
		Report:   rep,
		Errors:   rep.ErrorStrings(),
		Duration: rep.Duration.Round(time.Millisecond).String(),
	}
}
