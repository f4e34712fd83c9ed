package cmvp

import (
	"fmt"
	"net/http"
)

// FetchError reports a network or HTTP failure on a listing or detail page.
// StatusCode is zero when the request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient: server errors and
// rate limiting are worth another attempt, other client errors are not.
func (e *FetchError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ParseError reports a malformed row or page. Rows carrying a ParseError
// are dropped and logged; the page continues.
type ParseError struct {
	URL    string
	Row    int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("parse %s row %d: %s", e.URL, e.Row, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

// EnrichmentError reports a detail-page failure for one certificate. The
// module is kept with algorithms omitted rather than dropped.
type EnrichmentError struct {
	Certificate string
	URL         string
	Err         error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich certificate %s (%s): %v", e.Certificate, e.URL, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// WriteError reports a filesystem failure on output. Partial publication is
// worse than none, so a WriteError aborts the run.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
