// Package config defines service configuration and its loading.
//
// Keys are flat and snake_case so that a YAML file and SENTIMENT_* env vars
// map onto the same koanf tags.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PredictorBaseURL is the root of the inference service; /predict is appended.
	PredictorBaseURL         string `koanf:"predictor_base_url"`
	PredictorConnectTimeoutMS int   `koanf:"predictor_connect_timeout_ms"`
	PredictorRequestTimeoutMS int   `koanf:"predictor_request_timeout_ms"`
	PredictorMaxConnections   int   `koanf:"predictor_max_connections"`

	// AdmissionCapacity bounds concurrent store writes. Values <= 0 mean 1.
	AdmissionCapacity int `koanf:"admission_capacity"`

	DBDriver       string `koanf:"db_driver"`
	DBDSN          string `koanf:"db_dsn"`
	DBMaxOpenConns int    `koanf:"db_max_open_conns"`
	DBMaxIdleConns int    `koanf:"db_max_idle_conns"`
	DBSlowQueryMS  int    `koanf:"db_slow_query_ms"`

	// HistoryMaxPageSize caps GET /sentiment/history?size.
	HistoryMaxPageSize int `koanf:"history_max_page_size"`

	AnalyticsHighConfidence float64 `koanf:"analytics_high_confidence"`
	AnalyticsShortTextMax   int     `koanf:"analytics_short_text_max"`
	AnalyticsLongTextMin    int     `koanf:"analytics_long_text_min"`
	// AnalyticsEmptyOnError returns zero-filled series instead of an error
	// when the store cannot be read.
	AnalyticsEmptyOnError bool `koanf:"analytics_empty_on_error"`

	// CORSAllowedOrigins is a comma separated list; "*" allows all.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// RateLimitRPS limits POST /sentiment. Zero disables the limiter.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":8080",
		PredictorBaseURL:          "http://localhost:8000",
		PredictorConnectTimeoutMS: 10_000,
		PredictorRequestTimeoutMS: 30_000,
		PredictorMaxConnections:   50,
		AdmissionCapacity:         10,
		DBDriver:                  DriverSQLite,
		DBDSN:                     "sentiment.db",
		DBMaxOpenConns:            25,
		DBMaxIdleConns:            5,
		DBSlowQueryMS:             200,
		HistoryMaxPageSize:        100,
		AnalyticsHighConfidence:   0.9,
		AnalyticsShortTextMax:     50,
		AnalyticsLongTextMin:      140,
		CORSAllowedOrigins:        "*",
		RateLimitRPS:              0,
		RateLimitBurst:            20,
	}
}

// PredictorConnectTimeout returns the dial timeout as a duration.
func (c *Config) PredictorConnectTimeout() time.Duration {
	return time.Duration(c.PredictorConnectTimeoutMS) * time.Millisecond
}

// PredictorRequestTimeout returns the per-request timeout as a duration.
func (c *Config) PredictorRequestTimeout() time.Duration {
	return time.Duration(c.PredictorRequestTimeoutMS) * time.Millisecond
}

// DBSlowQueryThreshold returns the slow query log threshold.
func (c *Config) DBSlowQueryThreshold() time.Duration {
	return time.Duration(c.DBSlowQueryMS) * time.Millisecond
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.PredictorBaseURL) == "":
		return fmt.Errorf("%w: predictor_base_url must not be empty", ErrInvalidConfig)
	case c.PredictorConnectTimeoutMS <= 0 || c.PredictorRequestTimeoutMS <= 0:
		return fmt.Errorf("%w: predictor timeouts must be positive", ErrInvalidConfig)
	case c.PredictorMaxConnections <= 0:
		return fmt.Errorf("%w: predictor_max_connections must be positive", ErrInvalidConfig)
	case c.DBDriver != DriverSQLite && c.DBDriver != DriverMySQL:
		return fmt.Errorf("%w: unsupported db_driver %q", ErrInvalidConfig, c.DBDriver)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.HistoryMaxPageSize <= 0:
		return fmt.Errorf("%w: history_max_page_size must be positive", ErrInvalidConfig)
	case c.AnalyticsHighConfidence < 0 || c.AnalyticsHighConfidence > 1:
		return fmt.Errorf("%w: analytics_high_confidence must be within [0,1]", ErrInvalidConfig)
	case c.AnalyticsShortTextMax <= 0 || c.AnalyticsLongTextMin < c.AnalyticsShortTextMax:
		return fmt.Errorf("%w: analytics text length bounds must satisfy 0 < short <= long", ErrInvalidConfig)
	case c.RateLimitRPS < 0:
		return fmt.Errorf("%w: rate_limit_rps must not be negative", ErrInvalidConfig)
	}
	return nil
}
