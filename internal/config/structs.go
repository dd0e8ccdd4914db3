//nolint:lll
package config

import "time"

// Config is the complete configuration of the cellgrid commands. Values come
// from a config file, CELLGRID_ environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	OCR     OCRConfig     `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Headers HeadersConfig `mapstructure:"headers" yaml:"headers" json:"headers"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`
	Session SessionConfig `mapstructure:"session" yaml:"session" json:"session"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client limits. A zero limit is not enforced.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// OCRConfig selects the table analysis backend.
type OCRConfig struct {
	Backend           string   `mapstructure:"backend" yaml:"backend" json:"backend"`
	Region            string   `mapstructure:"region" yaml:"region" json:"region"`
	Endpoint          string   `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	TimeoutSec        int      `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions" json:"allowed_extensions"`
}

// HeadersConfig selects the header inference provider.
type HeadersConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider" json:"provider"`
	Model      string `mapstructure:"model" yaml:"model" json:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// Timeout returns the header inference deadline.
func (h HeadersConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSec) * time.Second
}

// StorageConfig selects where saved tags go.
type StorageConfig struct {
	Sink          string `mapstructure:"sink" yaml:"sink" json:"sink"`
	RedisAddress  string `mapstructure:"redis_address" yaml:"redis_address" json:"redis_address"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password" json:"-"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db" json:"redis_db"`
	RedisTTLHours int    `mapstructure:"redis_ttl_hours" yaml:"redis_ttl_hours" json:"redis_ttl_hours"`
	PostgresDSN   string `mapstructure:"postgres_dsn" yaml:"postgres_dsn" json:"-"`
}

// SessionConfig contains annotation session limits.
type SessionConfig struct {
	MinSelectionPx int `mapstructure:"min_selection_px" yaml:"min_selection_px" json:"min_selection_px"`
	IdleTimeoutMin int `mapstructure:"idle_timeout_min" yaml:"idle_timeout_min" json:"idle_timeout_min"`
	MaxSessions    int `mapstructure:"max_sessions" yaml:"max_sessions" json:"max_sessions"`
}

// IdleTimeout returns how long an untouched session is kept.
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMin) * time.Minute
}

// OutputConfig contains CLI output and overlay rendering settings.
type OutputConfig struct {
	Format               string `mapstructure:"format" yaml:"format" json:"format"`
	OverlayBoxColor      string `mapstructure:"overlay_box_color" yaml:"overlay_box_color" json:"overlay_box_color"`
	OverlaySelectedColor string `mapstructure:"overlay_selected_color" yaml:"overlay_selected_color" json:"overlay_selected_color"`
	OverlayTaggedColor   string `mapstructure:"overlay_tagged_color" yaml:"overlay_tagged_color" json:"overlay_tagged_color"`
}
