package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultSearchURL, cfg.Source.SearchURL)
	assert.Equal(t, "/all", cfg.Source.SearchPath)
	assert.Equal(t, "/all?CertificateStatus=Historical", cfg.Source.HistoricalPath)
	assert.Equal(t, DefaultInProcessURL, cfg.Source.InProcessURL)
	assert.Equal(t, "NIST-CMVP-Data-Scraper/1.0 (GitHub Project)", cfg.Source.UserAgent)
	assert.Equal(t, "api", cfg.Scraper.OutputDir)
	assert.Equal(t, 50, cfg.Scraper.MaxPages)
	assert.False(t, cfg.Scraper.SkipAlgorithms)
	assert.Empty(t, cfg.Scraper.LocalDBPath)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffInitial())
	assert.Equal(t, 5*time.Second, cfg.BackoffMax())
	assert.InDelta(t, 2.0, cfg.HTTP.RequestsPerSecond, 0.001)
	assert.Equal(t, 5, cfg.Enrich.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
source:
  search_path: /all?Standard=FIPS+140-3
  user_agent: custom-agent/2.0
scraper:
  output_dir: out
  max_pages: 10
  skip_algorithms: true
http:
  timeout_seconds: 45
  max_retries: 5
  backoff_initial_ms: 100
  backoff_max_ms: 2000
  requests_per_second: 0.5
enrich:
  concurrency: 2
publish:
  gcs_bucket: snapshots
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/all?Standard=FIPS+140-3", cfg.Source.SearchPath)
	assert.Equal(t, "custom-agent/2.0", cfg.Source.UserAgent)
	assert.Equal(t, "out", cfg.Scraper.OutputDir)
	assert.Equal(t, 10, cfg.Scraper.MaxPages)
	assert.True(t, cfg.Scraper.SkipAlgorithms)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 5, cfg.HTTP.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BackoffInitial())
	assert.Equal(t, 2*time.Second, cfg.BackoffMax())
	assert.InDelta(t, 0.5, cfg.HTTP.RequestsPerSecond, 0.001)
	assert.Equal(t, 2, cfg.Enrich.Concurrency)
	assert.Equal(t, "snapshots", cfg.Publish.GCSBucket)
	assert.False(t, cfg.Logging.Development)

	// Unset values keep their defaults.
	assert.Equal(t, DefaultSearchURL, cfg.Source.SearchURL)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CMVP_SCRAPER_MAX_PAGES", "7")
	t.Setenv("CMVP_SOURCE_USER_AGENT", "env-agent/1.0")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scraper.MaxPages)
	assert.Equal(t, "env-agent/1.0", cfg.Source.UserAgent)
}

func TestLoadLegacyEnvNames(t *testing.T) {
	t.Setenv("NIST_SEARCH_PATH", "/all?CertificateStatus=Active")
	t.Setenv("SKIP_ALGORITHMS", "1")
	t.Setenv("CMVP_DB_PATH", "/data/cmvp.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/all?CertificateStatus=Active", cfg.Source.SearchPath)
	assert.True(t, cfg.Scraper.SkipAlgorithms)
	assert.Equal(t, "/data/cmvp.db", cfg.Scraper.LocalDBPath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero max pages", "scraper:\n  max_pages: 0\n"},
		{"empty user agent", "source:\n  user_agent: \"\"\n"},
		{"zero timeout", "http:\n  timeout_seconds: 0\n"},
		{"zero rate", "http:\n  requests_per_second: 0\n"},
		{"zero concurrency", "enrich:\n  concurrency: 0\n"},
		{"pubsub project without topic", "publish:\n  pubsub_project: proj\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
