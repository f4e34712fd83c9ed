// Package metrics exposes Prometheus counters for the scraping pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of HTTP requests dispatched.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmvp_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// TotalRequestErrors tracks the number of requests that resulted in an error.
	TotalRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmvp_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// TotalRateLimitHits tracks the number of times the source rate-limited us (HTTP 429/503).
	TotalRateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmvp_rate_limit_hits_total",
		Help: "The total number of times the scraper was rate limited.",
	})
	// RowsParsed tracks listing rows parsed per category.
	RowsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmvp_rows_parsed_total",
		Help: "The total number of listing rows parsed.",
	}, []string{"category"})
	// RowsDropped tracks rows dropped for lacking a certificate number.
	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmvp_rows_dropped_total",
		Help: "The total number of rows dropped during normalization.",
	}, []string{"category"})
	// EnrichFailures tracks detail-page enrichment failures.
	EnrichFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmvp_enrich_failures_total",
		Help: "The total number of certificates whose detail page could not be enriched.",
	})
)
