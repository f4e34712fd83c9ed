package cmvp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchErrorRetryable(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"no response", 0, true},
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"rate limited", 429, true},
		{"not found", 404, false},
		{"forbidden", 403, false},
		{"ok is not retried", 200, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &FetchError{URL: "https://example.com", StatusCode: tc.status, Err: errors.New("boom")}
			assert.Equal(t, tc.retryable, err.Retryable())
		})
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &FetchError{URL: "https://example.com", Err: inner}
	require.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "https://example.com")
}

func TestParseErrorMessage(t *testing.T) {
	withRow := &ParseError{URL: "https://example.com/page", Row: 3, Reason: "missing cells"}
	assert.Contains(t, withRow.Error(), "row 3")

	pageLevel := &ParseError{URL: "https://example.com/page", Row: -1, Reason: "no table found on page"}
	assert.NotContains(t, pageLevel.Error(), "row")
}

func TestEnrichmentErrorWrapsCause(t *testing.T) {
	cause := &FetchError{URL: "https://example.com/cert/100", StatusCode: 500, Err: errors.New("boom")}
	err := &EnrichmentError{Certificate: "100", URL: "https://example.com/cert/100", Err: cause}

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 500, fetchErr.StatusCode)
}

func TestWriteErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := &WriteError{Path: "api/modules.json", Err: cause}
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "api/modules.json")
}
