// Package enrich fetches certificate detail pages to extract algorithm
// lists, the most expensive and failure-prone step of the pipeline.
package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
	"github.com/cmvp-api/cmvp-scraper/internal/fetch"
	"github.com/cmvp-api/cmvp-scraper/internal/metrics"
	"github.com/cmvp-api/cmvp-scraper/internal/parse"
)

// PageGetter is the slice of the fetch client the enricher needs.
type PageGetter interface {
	Get(ctx context.Context, rawURL string) (fetch.Page, error)
}

// Source answers algorithm lookups without a live fetch, typically from a
// local database snapshot (CMVP_DB_PATH).
type Source interface {
	Lookup(ctx context.Context, certificate string) (cmvp.Detail, bool, error)
}

// Enricher runs the detail-page fan-out with bounded concurrency.
type Enricher struct {
	client      PageGetter
	local       Source
	concurrency int
	logger      *zap.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLocalSource installs a local lookup consulted before any live fetch.
func WithLocalSource(src Source) Option {
	return func(e *Enricher) { e.local = src }
}

// WithConcurrency caps the number of concurrent detail fetches.
// Default is 5 if not specified.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Enricher) { e.logger = logger }
}

// New creates an Enricher around the shared fetch client.
func New(client PageGetter, opts ...Option) *Enricher {
	e := &Enricher{
		client:      client,
		concurrency: 5,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichAll annotates each record with its extracted algorithm list. A
// single detail-page failure degrades gracefully: the module is kept with
// algorithms left nil. Workers write into a pre-allocated slice indexed by
// the input order, so the merge is deterministic by certificate ordering
// rather than arrival order. The returned count is the number of records
// successfully enriched; the error is non-nil only on cancellation.
func (e *Enricher) EnrichAll(ctx context.Context, records []cmvp.ModuleRecord) ([]cmvp.ModuleRecord, int, error) {
	out := make([]cmvp.ModuleRecord, len(records))
	copy(out, records)

	var (
		mu       sync.Mutex
		enriched int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range out {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			detail, err := e.enrichOne(ctx, &out[i])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				metrics.EnrichFailures.Inc()
				e.logger.Warn("enrichment failed, keeping record without algorithms",
					zap.String("certificate", out[i].CertificateNumber),
					zap.Error(err),
				)
				return nil
			}
			if detail == nil {
				return nil
			}

			e.apply(&out[i], *detail)
			mu.Lock()
			enriched++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return out, enriched, err
}

// enrichOne resolves one record's detail, preferring the local source. A
// nil detail with nil error means there was nothing to look up.
func (e *Enricher) enrichOne(ctx context.Context, rec *cmvp.ModuleRecord) (*cmvp.Detail, error) {
	if e.local != nil {
		detail, ok, err := e.local.Lookup(ctx, rec.CertificateNumber)
		if err != nil {
			e.logger.Warn("local lookup failed, falling back to live fetch",
				zap.String("certificate", rec.CertificateNumber),
				zap.Error(err),
			)
		} else if ok {
			return &detail, nil
		}
	}

	if rec.DetailURL == "" {
		e.logger.Debug("no detail URL for certificate",
			zap.String("certificate", rec.CertificateNumber))
		return nil, nil
	}

	page, err := e.client.Get(ctx, rec.DetailURL)
	if err != nil {
		return nil, &cmvp.EnrichmentError{
			Certificate: rec.CertificateNumber,
			URL:         rec.DetailURL,
			Err:         err,
		}
	}

	detail, err := parse.ParseDetail(page.FinalURL, page.Body)
	if err != nil {
		return nil, &cmvp.EnrichmentError{
			Certificate: rec.CertificateNumber,
			URL:         rec.DetailURL,
			Err:         err,
		}
	}
	return &detail, nil
}

func (e *Enricher) apply(rec *cmvp.ModuleRecord, detail cmvp.Detail) {
	if detail.Algorithms != nil {
		rec.Algorithms = detail.Algorithms
	} else {
		// Enrichment ran and found no approved algorithms: an empty
		// list, distinct from the null of a skipped or failed fetch.
		rec.Algorithms = []string{}
	}
	if rec.SecurityPolicyURL == "" && detail.SecurityPolicyURL != "" {
		rec.SecurityPolicyURL = detail.SecurityPolicyURL
	}
}
