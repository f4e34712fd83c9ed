// Package cmd defines and implements the CLI commands for the cmvp-scraper
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmvp-api/cmvp-scraper/internal/config"
	"github.com/cmvp-api/cmvp-scraper/internal/logging"

	"go.uber.org/zap"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cmvp-scraper",
		Short: "Scrapes NIST CMVP validation records into a static JSON API.",
		Long: `cmvp-scraper pulls cryptographic module validation records from the
NIST CMVP public website, normalizes them into a canonical schema, optionally
enriches them with extracted algorithm lists, and publishes the result as a
set of static JSON files.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars and defaults apply otherwise)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadApp builds the shared config and logger for a command invocation.
func loadApp() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point. The process exits non-zero when any
// command fails, which is how the scheduled trigger detects a bad run.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
