package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
	"github.com/cmvp-api/cmvp-scraper/internal/metrics"
)

// Client wraps a Fetcher with politeness rate limiting and bounded retries.
// It is the one HTTP entry point shared by the listing loop and the
// enrichment workers, so the inter-request delay applies globally.
type Client struct {
	fetcher Fetcher
	retry   *ExponentialRetryPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient constructs a Client from a base fetcher and config.
func NewClient(fetcher Fetcher, cfg Config, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		fetcher: fetcher,
		retry:   NewRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// Get fetches a page, retrying transient failures per the retry policy.
// Non-retryable failures surface as a *cmvp.FetchError for the caller to
// classify.
func (c *Client) Get(ctx context.Context, rawURL string) (Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Page{}, err
		}

		metrics.TotalRequests.Inc()
		page, err := c.fetcher.Fetch(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		metrics.TotalRequestErrors.Inc()

		if throttled(err) {
			metrics.TotalRateLimitHits.Inc()
		}
		if !c.retry.ShouldRetry(err, attempt) {
			return Page{}, err
		}

		delay := c.retry.Backoff(attempt)
		c.logger.Warn("fetch failed, backing off",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.pause(ctx, delay); err != nil {
			return Page{}, lastErr
		}
	}
}

// pause waits for the backoff delay unless the context finishes first.
func (c *Client) pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func throttled(err error) bool {
	var fetchErr *cmvp.FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	return fetchErr.StatusCode == http.StatusTooManyRequests ||
		fetchErr.StatusCode == http.StatusServiceUnavailable
}
