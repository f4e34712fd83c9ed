// Package run sequences the scraping pipeline for each data category.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
	"github.com/cmvp-api/cmvp-scraper/internal/fetch"
	"github.com/cmvp-api/cmvp-scraper/internal/normalize"
	"github.com/cmvp-api/cmvp-scraper/internal/parse"
	"github.com/cmvp-api/cmvp-scraper/internal/publish"
)

// PageGetter is the slice of the fetch client the orchestrator needs.
type PageGetter interface {
	Get(ctx context.Context, rawURL string) (fetch.Page, error)
}

// Enricher annotates validated records with algorithm lists.
type Enricher interface {
	EnrichAll(ctx context.Context, records []cmvp.ModuleRecord) ([]cmvp.ModuleRecord, int, error)
}

// SnapshotWriter persists the published file set.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snap publish.Snapshot) ([]string, error)
}

// CategorySource names the listing entry point for one category.
type CategorySource struct {
	Category cmvp.Category
	StartURL string
}

// Config controls one orchestrator run.
type Config struct {
	Sources        []CategorySource
	SkipAlgorithms bool
	MaxPages       int
	OutputDir      string
	Version        string
	SearchSource   string
	InProcessSrc   string
}

// CategoryResult records the outcome of one category's fetch phase.
type CategoryResult struct {
	Category cmvp.Category
	Pages    int
	Records  int
	Err      error
}

// Report summarizes a run for the caller to derive the exit status.
type Report struct {
	Results  []CategoryResult
	Enriched int
	Written  []string
}

// Failed reports whether any category failed to fetch.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Orchestrator wires the pipeline stages together and runs them in order:
// fetch each category, enrich when enabled, aggregate, write, then the
// optional mirror and notification.
type Orchestrator struct {
	cfg        Config
	client     PageGetter
	normalizer *normalize.Normalizer
	enricher   Enricher
	writer     SnapshotWriter
	storage    publish.Provider
	notifier   publish.Notifier
	logger     *zap.Logger

	now      func() time.Time
	newRunID func() string
}

// New constructs an Orchestrator. storage and notifier may be nil, which
// disables the corresponding post-write step.
func New(
	cfg Config,
	client PageGetter,
	normalizer *normalize.Normalizer,
	enricher Enricher,
	writer SnapshotWriter,
	storage publish.Provider,
	notifier publish.Notifier,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	return &Orchestrator{
		cfg:        cfg,
		client:     client,
		normalizer: normalizer,
		enricher:   enricher,
		writer:     writer,
		storage:    storage,
		notifier:   notifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newRunID:   uuid.NewString,
	}
}

// Run executes the full pipeline. A category fetch failure marks that
// category failed in the report without halting the others; enrichment
// failures degrade per record. The returned error is non-nil only for hard
// aborts: cancellation or a write failure.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var report Report
	collections := make(map[cmvp.Category][]cmvp.ModuleRecord, len(o.cfg.Sources))

	for _, src := range o.cfg.Sources {
		records, pages, err := o.fetchCategory(ctx, src)
		if cerr := ctx.Err(); cerr != nil {
			return report, cerr
		}

		result := CategoryResult{Category: src.Category, Pages: pages, Records: len(records), Err: err}
		if err == nil && src.Category == cmvp.CategoryValidated && len(records) == 0 {
			// An empty validated collection means the source layout
			// changed under us; publishing it would wipe the dataset.
			result.Err = &cmvp.ParseError{URL: src.StartURL, Row: -1, Reason: "no validated modules parsed"}
		}
		if result.Err != nil {
			o.logger.Error("category failed",
				zap.String("category", src.Category.String()),
				zap.Error(result.Err),
			)
		} else {
			o.logger.Info("category fetched",
				zap.String("category", src.Category.String()),
				zap.Int("pages", pages),
				zap.Int("records", len(records)),
			)
			collections[src.Category] = records
		}
		report.Results = append(report.Results, result)
	}

	validated := collections[cmvp.CategoryValidated]
	if !o.cfg.SkipAlgorithms && o.enricher != nil && len(validated) > 0 {
		enriched, count, err := o.enricher.EnrichAll(ctx, validated)
		if err != nil {
			return report, err
		}
		validated = enriched
		collections[cmvp.CategoryValidated] = enriched
		report.Enriched = count
		o.logger.Info("enrichment finished",
			zap.Int("enriched", count),
			zap.Int("total", len(validated)),
		)
	}

	algorithms := normalize.Aggregate(validated)

	if err := ctx.Err(); err != nil {
		// Interrupted: stop cleanly without writing partial output.
		return report, err
	}

	metadata := cmvp.DatasetMetadata{
		GeneratedAt:        o.now().Format(time.RFC3339),
		RunID:              o.newRunID(),
		TotalModules:       len(validated),
		TotalHistorical:    len(collections[cmvp.CategoryHistorical]),
		TotalInProcess:     len(collections[cmvp.CategoryInProcess]),
		AlgorithmsIncluded: !o.cfg.SkipAlgorithms,
		Source:             o.cfg.SearchSource,
		InProcessSource:    o.cfg.InProcessSrc,
		Version:            o.cfg.Version,
	}

	written, err := o.writer.WriteSnapshot(ctx, publish.Snapshot{
		Metadata:   metadata,
		Validated:  validated,
		Historical: collections[cmvp.CategoryHistorical],
		InProcess:  collections[cmvp.CategoryInProcess],
		Algorithms: algorithms,
	})
	if err != nil {
		return report, fmt.Errorf("write snapshot: %w", err)
	}
	report.Written = written

	o.publishSnapshot(ctx, metadata, written)

	o.logger.Info("run complete",
		zap.String("run_id", metadata.RunID),
		zap.Int("modules", metadata.TotalModules),
		zap.Int("historical", metadata.TotalHistorical),
		zap.Int("in_process", metadata.TotalInProcess),
		zap.Bool("algorithms_included", metadata.AlgorithmsIncluded),
	)
	return report, nil
}

// fetchCategory walks the category's pagination until no next page is
// reported, normalizing rows as pages arrive. Fetch errors abort the
// category; parse trouble on a page is absorbed and logged.
func (o *Orchestrator) fetchCategory(ctx context.Context, src CategorySource) ([]cmvp.ModuleRecord, int, error) {
	var records []cmvp.ModuleRecord
	pages := 0

	url := src.StartURL
	for url != "" && pages < o.cfg.MaxPages {
		page, err := o.client.Get(ctx, url)
		if err != nil {
			return nil, pages, err
		}
		pages++

		listing, perr := parse.ParseListing(page.FinalURL, page.Body)
		if perr != nil {
			o.logger.Warn("page parse issue",
				zap.String("category", src.Category.String()),
				zap.String("url", url),
				zap.Error(perr),
			)
		}
		records = append(records, o.normalizer.Rows(page.FinalURL, listing.Rows, src.Category)...)

		if listing.NextURL == url {
			// Self-referential pagination would loop forever.
			break
		}
		url = listing.NextURL
	}

	return normalize.Dedupe(records), pages, nil
}

// publishSnapshot pushes the written files to the optional mirror and
// notifier. Failures here are logged, not fatal: the local snapshot is
// already complete.
func (o *Orchestrator) publishSnapshot(ctx context.Context, metadata cmvp.DatasetMetadata, written []string) {
	if o.storage != nil {
		if err := publish.Mirror(ctx, o.storage, o.cfg.OutputDir, written, o.logger); err != nil {
			o.logger.Error("mirror failed", zap.Error(err))
		}
	}
	if o.notifier != nil {
		payload := map[string]any{
			"run_id":           metadata.RunID,
			"generated_at":     metadata.GeneratedAt,
			"total_modules":    metadata.TotalModules,
			"total_historical": metadata.TotalHistorical,
			"total_in_process": metadata.TotalInProcess,
		}
		if err := o.notifier.Publish(ctx, payload); err != nil {
			o.logger.Error("run notification failed", zap.Error(err))
		}
	}
}
