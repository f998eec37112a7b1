// Package config loads the monitor configuration from a YAML file
// merged with environment variables. Credentials come from the
// environment (or a .env file) only, never from flags.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gap-monitor/internal/logging"
)

// Default tick cadence and fetch parameters.
const (
	DefaultIntervalSeconds       = 60
	DefaultBatchSize             = 300
	DefaultConcurrency           = 2
	DefaultMaxAttempts           = 3
	DefaultAttemptTimeoutSeconds = 12
	DefaultRetryBackoffMs        = 500
	DefaultEscalateAfter         = 5
	DefaultDiscardAfter          = 3
)

// FeedConfig points at the snapshot websocket feed.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// FetchConfig shapes the batched snapshot retrieval.
type FetchConfig struct {
	BatchSize             int `yaml:"batchSize"`
	Concurrency           int `yaml:"concurrency"`
	MaxAttempts           int `yaml:"maxAttempts"`
	AttemptTimeoutSeconds int `yaml:"attemptTimeoutSeconds"`
	RetryBackoffMs        int `yaml:"retryBackoffMs"`
}

// MonitorConfig shapes the session driver.
type MonitorConfig struct {
	IntervalSeconds int    `yaml:"intervalSeconds"`
	Mode            string `yaml:"mode"` // no-discard | strict-discard
	DiscardAfter    int    `yaml:"discardAfter"`
	EscalateAfter   int    `yaml:"escalateAfter"`

	// RecordBars persists each session's snapshots as 1-minute bars
	// for after-hours replay. Requires a ClickHouse DSN.
	RecordBars bool `yaml:"recordBars"`
}

// MetricsConfig exposes the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables the endpoint
}

// CandidatesConfig selects where the daily candidate table comes from.
type CandidatesConfig struct {
	Source  string `yaml:"source"` // csv | postgres
	CSVPath string `yaml:"csvPath"`
	Date    string `yaml:"date"` // empty means latest / today
}

// StorageConfig holds database DSNs. Normally provided via environment.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgresDSN"`
	ClickhouseDSN string `yaml:"clickhouseDSN"`
}

// NotifyConfig holds LINE push settings. Token and recipient come from
// the environment.
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	LineToken string `yaml:"-"`
	LineTo    string `yaml:"-"`
}

// Config is the full application configuration.
type Config struct {
	Feed       FeedConfig       `yaml:"feed"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Candidates CandidatesConfig `yaml:"candidates"`
	Storage    StorageConfig    `yaml:"storage"`
	Notify     NotifyConfig     `yaml:"notify"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    logging.Config   `yaml:"logging"`
}

// Load reads the YAML file (optional), applies defaults and overlays
// environment variables. A .env file in the working directory is
// loaded best-effort first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Fetch.BatchSize == 0 {
		c.Fetch.BatchSize = DefaultBatchSize
	}
	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = DefaultConcurrency
	}
	if c.Fetch.MaxAttempts == 0 {
		c.Fetch.MaxAttempts = DefaultMaxAttempts
	}
	if c.Fetch.AttemptTimeoutSeconds == 0 {
		c.Fetch.AttemptTimeoutSeconds = DefaultAttemptTimeoutSeconds
	}
	if c.Fetch.RetryBackoffMs == 0 {
		c.Fetch.RetryBackoffMs = DefaultRetryBackoffMs
	}
	if c.Monitor.IntervalSeconds == 0 {
		c.Monitor.IntervalSeconds = DefaultIntervalSeconds
	}
	if c.Monitor.Mode == "" {
		c.Monitor.Mode = "no-discard"
	}
	if c.Monitor.DiscardAfter == 0 {
		c.Monitor.DiscardAfter = DefaultDiscardAfter
	}
	if c.Monitor.EscalateAfter == 0 {
		c.Monitor.EscalateAfter = DefaultEscalateAfter
	}
	if c.Candidates.Source == "" {
		c.Candidates.Source = "csv"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// applyEnvironment overlays GAPMON_* variables over the file values.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("GAPMON_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("GAPMON_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("GAPMON_CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("GAPMON_CANDIDATE_CSV"); v != "" {
		c.Candidates.CSVPath = v
	}
	if v := os.Getenv("GAPMON_INTERVAL_SECONDS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Monitor.IntervalSeconds = i
		}
	}
	if v := os.Getenv("GAPMON_MODE"); v != "" {
		c.Monitor.Mode = v
	}

	// Credentials live only in the environment.
	c.Notify.LineToken = os.Getenv("GAPMON_LINE_TOKEN")
	c.Notify.LineTo = os.Getenv("GAPMON_LINE_TO")
}

// Validate checks invariants that would otherwise surface mid-session.
func (c *Config) Validate() error {
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.intervalSeconds must be positive, got %d", c.Monitor.IntervalSeconds)
	}
	if c.Monitor.Mode != "no-discard" && c.Monitor.Mode != "strict-discard" {
		return fmt.Errorf("monitor.mode must be 'no-discard' or 'strict-discard', got %q", c.Monitor.Mode)
	}
	if c.Fetch.BatchSize <= 0 {
		return fmt.Errorf("fetch.batchSize must be positive, got %d", c.Fetch.BatchSize)
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be positive, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.AttemptTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.attemptTimeoutSeconds must be positive, got %d", c.Fetch.AttemptTimeoutSeconds)
	}
	switch c.Candidates.Source {
	case "csv":
		if c.Candidates.CSVPath == "" {
			return fmt.Errorf("candidates.csvPath required when candidates.source is csv")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgresDSN required when candidates.source is postgres")
		}
	default:
		return fmt.Errorf("candidates.source must be 'csv' or 'postgres', got %q", c.Candidates.Source)
	}
	if c.Notify.Enabled && (c.Notify.LineToken == "" || c.Notify.LineTo == "") {
		return fmt.Errorf("notify enabled but GAPMON_LINE_TOKEN or GAPMON_LINE_TO is unset")
	}
	if c.Monitor.RecordBars && c.Storage.ClickhouseDSN == "" {
		return fmt.Errorf("storage.clickhouseDSN required when monitor.recordBars is enabled")
	}
	return nil
}
