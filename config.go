package tidal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults applied by NewClient to zero-valued fields.
const (
	DefaultBatchSize       = 20
	DefaultFlushInterval   = 30 * time.Second
	DefaultMaxQueueSize    = 1000
	DefaultRequestTimeout  = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultSessionTimeout  = 30 * time.Minute
	DefaultShutdownTimeout = 2 * time.Second
	DefaultPlatform        = "server"
)

// resolve fills defaults and rejects inconsistent settings.
func (c *ClientConfig) resolve() error {
	if c.APIKey == "" {
		return errors.New("apiKey must be provided in config")
	}
	if c.BaseURL == "" {
		return errors.New("baseURL must be provided in config")
	}

	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = max(DefaultMaxQueueSize, c.BatchSize)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxRetries == nil {
		c.MaxRetries = Int(DefaultMaxRetries)
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = RetryBackoffExponential
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.EnableLocalStorage == nil {
		c.EnableLocalStorage = Bool(true)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Platform == "" {
		c.Platform = DefaultPlatform
	}

	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("batchSize must be >= 1, got %d", c.BatchSize)
	case c.FlushInterval < 0:
		return fmt.Errorf("flushInterval must be > 0, got %v", c.FlushInterval)
	case c.MaxQueueSize < c.BatchSize:
		return fmt.Errorf("maxQueueSize (%d) must be >= batchSize (%d)", c.MaxQueueSize, c.BatchSize)
	case c.RequestTimeout < 0:
		return fmt.Errorf("requestTimeout must be >= 0, got %v", c.RequestTimeout)
	case *c.MaxRetries < 0:
		return fmt.Errorf("maxRetries must be >= 0, got %d", *c.MaxRetries)
	case c.RetryBackoff != RetryBackoffExponential && c.RetryBackoff != RetryBackoffLinear:
		return fmt.Errorf("retryBackoff must be %q or %q, got %q", RetryBackoffExponential, RetryBackoffLinear, c.RetryBackoff)
	case c.SessionTimeout < 0:
		return fmt.Errorf("sessionTimeout must be > 0, got %v", c.SessionTimeout)
	}
	return nil
}

// FileConfig is the on-disk and environment form of the client settings,
// using the units of the collector's configuration surface.
type FileConfig struct {
	APIKey                string `yaml:"api_key" env:"TIDAL_API_KEY"`
	BaseURL               string `yaml:"base_url" env:"TIDAL_BASE_URL"`
	APIKeyHeader          string `yaml:"api_key_header" env:"TIDAL_API_KEY_HEADER"`
	BatchSize             int    `yaml:"batch_size" env:"TIDAL_BATCH_SIZE"`
	FlushIntervalSeconds  int    `yaml:"flush_interval_seconds" env:"TIDAL_FLUSH_INTERVAL_SECONDS"`
	MaxQueueSize          int    `yaml:"max_queue_size" env:"TIDAL_MAX_QUEUE_SIZE"`
	RequestTimeoutMs      int    `yaml:"request_timeout_ms" env:"TIDAL_REQUEST_TIMEOUT_MS"`
	MaxRetries            *int   `yaml:"max_retries" env:"TIDAL_MAX_RETRIES"`
	RetryBackoff          string `yaml:"retry_backoff" env:"TIDAL_RETRY_BACKOFF"`
	SessionTimeoutSeconds int    `yaml:"session_timeout_seconds" env:"TIDAL_SESSION_TIMEOUT_SECONDS"`
	EnableLocalStorage    *bool  `yaml:"enable_local_storage" env:"TIDAL_ENABLE_LOCAL_STORAGE"`
	TrackSessions         bool   `yaml:"track_sessions" env:"TIDAL_TRACK_SESSIONS"`
	Compression           bool   `yaml:"compression" env:"TIDAL_COMPRESSION"`
	Platform              string `yaml:"platform" env:"TIDAL_PLATFORM"`
	AppVersion            string `yaml:"app_version" env:"TIDAL_APP_VERSION"`
	LogLevel              string `yaml:"log_level" env:"TIDAL_LOG_LEVEL"`
	StoragePath           string `yaml:"storage_path" env:"TIDAL_STORAGE_PATH"`
}

// LoadConfig reads a YAML file (skipped when path is empty) and then
// applies TIDAL_* environment overrides.
func LoadConfig(path string) (FileConfig, error) {
	var fc FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return FileConfig{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return FileConfig{}, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := env.Parse(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return fc, nil
}

// ClientConfig converts the file form into a ClientConfig. Adapters and
// hooks are left for the caller to set.
func (fc FileConfig) ClientConfig() ClientConfig {
	cfg := ClientConfig{
		APIKey:             fc.APIKey,
		BaseURL:            fc.BaseURL,
		BatchSize:          fc.BatchSize,
		FlushInterval:      time.Duration(fc.FlushIntervalSeconds) * time.Second,
		MaxQueueSize:       fc.MaxQueueSize,
		RequestTimeout:     time.Duration(fc.RequestTimeoutMs) * time.Millisecond,
		MaxRetries:         fc.MaxRetries,
		RetryBackoff:       RetryBackoff(fc.RetryBackoff),
		SessionTimeout:     time.Duration(fc.SessionTimeoutSeconds) * time.Second,
		EnableLocalStorage: fc.EnableLocalStorage,
		TrackSessions:      fc.TrackSessions,
		Compression:        fc.Compression,
		Platform:           fc.Platform,
		AppVersion:         fc.AppVersion,
	}
	if fc.APIKeyHeader != "" {
		cfg.APIKeyHeader = String(fc.APIKeyHeader)
	}
	return cfg
}
