package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
	"github.com/cmvp-api/cmvp-scraper/internal/config"
	"github.com/cmvp-api/cmvp-scraper/internal/enrich"
	"github.com/cmvp-api/cmvp-scraper/internal/fetch"
	"github.com/cmvp-api/cmvp-scraper/internal/normalize"
	"github.com/cmvp-api/cmvp-scraper/internal/publish"
	"github.com/cmvp-api/cmvp-scraper/internal/run"
)

// snapshotVersion is stamped into metadata.json.
const snapshotVersion = "1.0"

// newScrapeCmd creates the 'scrape' subcommand, the scheduled trigger's
// entry point. It runs the full pipeline once and exits.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Runs the full scrape-normalize-publish pipeline once",
		Long: `Fetches the validated, historical, and in-process module listings,
normalizes them, optionally enriches validated modules with algorithm lists,
and writes the published JSON file set. Exits non-zero if any category
failed to fetch.`,
		RunE: runScrapeCommand,
	}
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := orchestrator.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("run interrupted before output was written")
		return err
	case err != nil:
		logger.Error("run aborted", zap.Error(err))
		return err
	}

	if report.Failed() {
		failed := 0
		for _, res := range report.Results {
			if res.Err != nil {
				failed++
			}
		}
		return fmt.Errorf("%d of %d categories failed to fetch", failed, len(report.Results))
	}
	return nil
}

// buildPipeline assembles the orchestrator and its collaborators from
// config. The returned cleanup closes any long-lived clients.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*run.Orchestrator, func(), error) {
	fetchCfg := fetch.Config{
		UserAgent:         cfg.Source.UserAgent,
		RequestTimeout:    cfg.RequestTimeout(),
		MaxRetries:        cfg.HTTP.MaxRetries,
		BackoffInitial:    cfg.BackoffInitial(),
		BackoffMax:        cfg.BackoffMax(),
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	}
	fetcher, err := fetch.NewCollyFetcher(fetchCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init fetcher: %w", err)
	}
	client := fetch.NewClient(fetcher, fetchCfg, logger)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	enrichOpts := []enrich.Option{
		enrich.WithConcurrency(cfg.Enrich.Concurrency),
		enrich.WithLogger(logger),
	}
	if cfg.Scraper.LocalDBPath != "" {
		localDB, err := enrich.OpenLocalDB(cfg.Scraper.LocalDBPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open local algorithm database: %w", err)
		}
		closers = append(closers, func() {
			if cerr := localDB.Close(); cerr != nil {
				logger.Warn("close local algorithm database", zap.Error(cerr))
			}
		})
		logger.Info("using local algorithm database", zap.String("path", cfg.Scraper.LocalDBPath))
		enrichOpts = append(enrichOpts, enrich.WithLocalSource(localDB))
	}
	enricher := enrich.New(client, enrichOpts...)

	writer, err := publish.NewWriter(cfg.Scraper.OutputDir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init writer: %w", err)
	}

	var storage publish.Provider = &publish.NoOpProvider{}
	if cfg.Publish.GCSBucket != "" {
		gcs, err := publish.NewGCSProvider(ctx, cfg.Publish.GCSBucket, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init GCS mirror: %w", err)
		}
		closers = append(closers, func() {
			if cerr := gcs.Close(); cerr != nil {
				logger.Warn("close GCS client", zap.Error(cerr))
			}
		})
		storage = gcs
	}

	var notifier publish.Notifier = &publish.NoOpNotifier{}
	if cfg.Publish.PubSubProject != "" {
		ps, err := publish.NewPubSubNotifier(ctx, cfg.Publish.PubSubProject, cfg.Publish.PubSubTopic)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		closers = append(closers, func() {
			if cerr := ps.Close(); cerr != nil {
				logger.Warn("close pubsub notifier", zap.Error(cerr))
			}
		})
		notifier = ps
	}

	runCfg := run.Config{
		Sources: []run.CategorySource{
			{Category: cmvp.CategoryValidated, StartURL: cfg.Source.SearchURL + cfg.Source.SearchPath},
			{Category: cmvp.CategoryHistorical, StartURL: cfg.Source.SearchURL + cfg.Source.HistoricalPath},
			{Category: cmvp.CategoryInProcess, StartURL: cfg.Source.InProcessURL},
		},
		SkipAlgorithms: cfg.Scraper.SkipAlgorithms,
		MaxPages:       cfg.Scraper.MaxPages,
		OutputDir:      cfg.Scraper.OutputDir,
		Version:        snapshotVersion,
		SearchSource:   cfg.Source.SearchURL,
		InProcessSrc:   cfg.Source.InProcessURL,
	}

	orchestrator := run.New(
		runCfg,
		client,
		normalize.New(logger),
		enricher,
		writer,
		storage,
		notifier,
		logger,
	)
	return orchestrator, cleanup, nil
}
