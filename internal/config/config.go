// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default source locations, recoverable via config or environment.
const (
	DefaultBaseURL = "https://csrc.nist.gov"

	// DefaultSearchURL is the validated-modules search endpoint; the
	// category path (default "/all") is appended to it.
	DefaultSearchURL = "https://csrc.nist.gov/projects/cryptographic-module-validation-program/validated-modules/search"

	// DefaultInProcessURL lists modules still working through validation.
	DefaultInProcessURL = "https://csrc.nist.gov/Projects/cryptographic-module-validation-program/modules-in-process/modules-in-process-list"
)

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
	Publish PublishConfig `mapstructure:"publish"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig locates the NIST CMVP listing endpoints.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SearchURL      string `mapstructure:"search_url"`
	SearchPath     string `mapstructure:"search_path"`
	HistoricalPath string `mapstructure:"historical_path"`
	InProcessURL   string `mapstructure:"in_process_url"`
	UserAgent      string `mapstructure:"user_agent"`
}

// ScraperConfig governs pipeline behavior.
type ScraperConfig struct {
	OutputDir      string `mapstructure:"output_dir"`
	MaxPages       int    `mapstructure:"max_pages"`
	SkipAlgorithms bool   `mapstructure:"skip_algorithms"`
	LocalDBPath    string `mapstructure:"local_db_path"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BackoffInitialMs  int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs      int     `mapstructure:"backoff_max_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// EnrichConfig bounds the detail-page fan-out.
type EnrichConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// PublishConfig names the optional post-write publish targets.
type PublishConfig struct {
	GCSBucket     string `mapstructure:"gcs_bucket"`
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// ServerConfig controls the serve subcommand.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CMVP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy environment names carried over from the original deployment.
	bindLegacyEnv(v)

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	// Weak typing lets env-provided strings ("1", "true") fill bool and
	// numeric fields.
	weaklyTyped := func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true }
	if err := v.Unmarshal(&cfg, weaklyTyped); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func bindLegacyEnv(v *viper.Viper) {
	// Errors here only occur for empty key lists; safe to ignore.
	_ = v.BindEnv("source.search_path", "NIST_SEARCH_PATH")
	_ = v.BindEnv("scraper.skip_algorithms", "SKIP_ALGORITHMS")
	_ = v.BindEnv("scraper.local_db_path", "CMVP_DB_PATH")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", DefaultBaseURL)
	v.SetDefault("source.search_url", DefaultSearchURL)
	v.SetDefault("source.search_path", "/all")
	v.SetDefault("source.historical_path", "/all?CertificateStatus=Historical")
	v.SetDefault("source.in_process_url", DefaultInProcessURL)
	v.SetDefault("source.user_agent", "NIST-CMVP-Data-Scraper/1.0 (GitHub Project)")
	v.SetDefault("scraper.output_dir", "api")
	v.SetDefault("scraper.max_pages", 50)
	v.SetDefault("scraper.skip_algorithms", false)
	v.SetDefault("scraper.local_db_path", "")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.requests_per_second", 2.0)
	v.SetDefault("enrich.concurrency", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.SearchURL == "" {
		return fmt.Errorf("source.search_url must be set")
	}
	if c.Source.InProcessURL == "" {
		return fmt.Errorf("source.in_process_url must be set")
	}
	if c.Source.UserAgent == "" {
		return fmt.Errorf("source.user_agent must be set")
	}
	if c.Scraper.OutputDir == "" {
		return fmt.Errorf("scraper.output_dir must be set")
	}
	if c.Scraper.MaxPages <= 0 {
		return fmt.Errorf("scraper.max_pages must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RequestsPerSecond <= 0 {
		return fmt.Errorf("http.requests_per_second must be > 0")
	}
	if c.Enrich.Concurrency <= 0 {
		return fmt.Errorf("enrich.concurrency must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if (c.Publish.PubSubProject == "") != (c.Publish.PubSubTopic == "") {
		return fmt.Errorf("publish.pubsub_project and publish.pubsub_topic must be set together")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the retry delay growth.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
