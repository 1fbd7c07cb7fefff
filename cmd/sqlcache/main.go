package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jward/sqlcache/internal/config"
	"github.com/jward/sqlcache/internal/logging"
)

// Process exit codes.
const (
	exitOK      = 0
	exitAborted = 1
	exitFatal   = 2
	exitStale   = 3
)

var (
	flagConfig string
	flagFormat string
)

// settings holds flag, environment and file configuration.
var settings = config.New()

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// exitError ends the process with code. A nil err means the command already
// reported the outcome.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit code, printing it unless
// it was already reported.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	code := exitAborted
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		err = ee.err
	}
	if err != nil && !errorHandled {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return code
}

var rootCmd = &cobra.Command{
	Use:           "sqlcache",
	Short:         "Incremental cache bundles for sqlc projects",
	Long:          "sqlcache indexes a sqlc project's schema, queries and generated Go code, and writes one self-contained cache bundle per query.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run: prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: sqlcache.yaml in the root)")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.String("root", "", "project root (default: current directory)")
	pf.String("output", "", "output directory (default: .sqlcache in the root)")
	pf.Int("workers", 0, "worker pool size (default: one per CPU)")
	pf.String("rules-script", "", "risor script choosing extra generated code per query")
	pf.Int("keep-generations", 0, "committed generations to keep (default 2)")
	pf.String("log-level", "", "log level: debug|info|warn|error")
	pf.String("log-format", "", "log format: text|json")

	bindFlag(settings, config.KeyRoot, "root")
	bindFlag(settings, config.KeyOutput, "output")
	bindFlag(settings, config.KeyWorkers, "workers")
	bindFlag(settings, config.KeyRulesScript, "rules-script")
	bindFlag(settings, config.KeyKeepGenerations, "keep-generations")
	bindFlag(settings, config.KeyLogLevel, "log-level")
	bindFlag(settings, config.KeyLogFormat, "log-format")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(watchCmd)
}

func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// loadSettings resolves configuration from flags, environment and files.
func loadSettings() (*config.Config, error) {
	return config.Load(settings, flagConfig)
}

// setup resolves configuration and the logger shared by every command.
// Logs go to stderr so stdout carries only results.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
