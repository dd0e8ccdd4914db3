package config

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/overlay"
)

const (
	infoLevel = "info"

	defaultPort = 8080
)

// Supported values of the enumerated settings.
var (
	logLevels       = []string{"debug", "info", "warn", "error"}
	ocrBackends     = []string{"textract", "remote"}
	headerProviders = []string{"none", "openai", "anthropic", "remote"}
	storageSinks    = []string{"log", "redis", "postgres"}
	outputFormats   = []string{"text", "json", "yaml", "csv"}
)

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: infoLevel,
		Verbose:  false,
		Server: ServerConfig{
			Host:            "localhost",
			Port:            defaultPort,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			TimeoutSec:      60,
			ShutdownTimeout: 10 * time.Second,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDay:     100 * 1024 * 1024,
			},
		},
		OCR: OCRConfig{
			Backend:           "textract",
			Region:            "us-east-1",
			TimeoutSec:        60,
			AllowedExtensions: []string{"png", "jpg", "jpeg", "pdf"},
		},
		Headers: HeadersConfig{
			Provider:   "none",
			TimeoutSec: 30,
		},
		Storage: StorageConfig{
			Sink:          "log",
			RedisAddress:  "localhost:6379",
			RedisDB:       0,
			RedisTTLHours: 24 * 7,
		},
		Session: SessionConfig{
			MinSelectionPx: 5,
			IdleTimeoutMin: 60,
			MaxSessions:    100,
		},
		Output: OutputConfig{
			Format:               "text",
			OverlayBoxColor:      "#0066FF",
			OverlaySelectedColor: "#FF0000",
			OverlayTaggedColor:   "#00C850",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if !contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log_level %q (valid: %s)", c.LogLevel, strings.Join(logLevels, ", ")))
	}

	errs = append(errs, c.Server.validate()...)
	errs = append(errs, c.OCR.validate()...)
	errs = append(errs, c.Headers.validate()...)
	errs = append(errs, c.Storage.validate()...)
	errs = append(errs, c.Session.validate()...)
	errs = append(errs, c.Output.validate()...)

	return errors.Join(errs...)
}

func (s ServerConfig) validate() []error {
	var errs []error
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port))
	}
	if s.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", s.MaxUploadMB))
	}
	if s.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("server.timeout_sec cannot be negative, got %d", s.TimeoutSec))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout cannot be negative, got %s", s.ShutdownTimeout))
	}
	rl := s.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDay < 0 {
		errs = append(errs, errors.New("server.rate_limit limits cannot be negative"))
	}
	return errs
}

func (o OCRConfig) validate() []error {
	var errs []error
	if !contains(ocrBackends, o.Backend) {
		errs = append(errs, fmt.Errorf("invalid ocr.backend %q (valid: %s)", o.Backend, strings.Join(ocrBackends, ", ")))
	}
	if o.Backend == "remote" && o.Endpoint == "" {
		errs = append(errs, errors.New("ocr.endpoint is required for the remote backend"))
	}
	if o.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("ocr.timeout_sec must be positive, got %d", o.TimeoutSec))
	}
	if len(o.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("ocr.allowed_extensions cannot be empty"))
	}
	return errs
}

func (h HeadersConfig) validate() []error {
	var errs []error
	if !contains(headerProviders, h.Provider) {
		errs = append(errs, fmt.Errorf("invalid headers.provider %q (valid: %s)", h.Provider, strings.Join(headerProviders, ", ")))
	}
	if h.Provider == "remote" && h.Endpoint == "" {
		errs = append(errs, errors.New("headers.endpoint is required for the remote provider"))
	}
	if h.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("headers.timeout_sec must be positive, got %d", h.TimeoutSec))
	}
	return errs
}

func (s StorageConfig) validate() []error {
	var errs []error
	if !contains(storageSinks, s.Sink) {
		errs = append(errs, fmt.Errorf("invalid storage.sink %q (valid: %s)", s.Sink, strings.Join(storageSinks, ", ")))
	}
	if s.Sink == "redis" && s.RedisAddress == "" {
		errs = append(errs, errors.New("storage.redis_address is required for the redis sink"))
	}
	if s.Sink == "postgres" && s.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres sink"))
	}
	if s.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("storage.redis_db cannot be negative, got %d", s.RedisDB))
	}
	if s.RedisTTLHours < 0 {
		errs = append(errs, fmt.Errorf("storage.redis_ttl_hours cannot be negative, got %d", s.RedisTTLHours))
	}
	return errs
}

func (s SessionConfig) validate() []error {
	var errs []error
	if s.MinSelectionPx < 0 {
		errs = append(errs, fmt.Errorf("session.min_selection_px cannot be negative, got %d", s.MinSelectionPx))
	}
	if s.IdleTimeoutMin < 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout_min cannot be negative, got %d", s.IdleTimeoutMin))
	}
	if s.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("session.max_sessions cannot be negative, got %d", s.MaxSessions))
	}
	return errs
}

func (o OutputConfig) validate() []error {
	var errs []error
	if !contains(outputFormats, o.Format) {
		errs = append(errs, fmt.Errorf("invalid output.format %q (valid: %s)", o.Format, strings.Join(outputFormats, ", ")))
	}
	for key, value := range map[string]string{
		"output.overlay_box_color":      o.OverlayBoxColor,
		"output.overlay_selected_color": o.OverlaySelectedColor,
		"output.overlay_tagged_color":   o.OverlayTaggedColor,
	} {
		if _, ok := overlay.ParseHexColor(value); value != "" && !ok {
			errs = append(errs, fmt.Errorf("%s must be #RRGGBB, got %q", key, value))
		}
	}
	return errs
}

func contains(values []string, v string) bool {
	return slices.Contains(values, v)
}

// OverlayStyle returns the coverage overlay style with the configured colors
// applied over the defaults.
func (o OutputConfig) OverlayStyle() overlay.Style {
	style := overlay.DefaultStyle()
	if c, ok := overlay.ParseHexColor(o.OverlayBoxColor); ok {
		style.Box = c
	}
	if c, ok := overlay.ParseHexColor(o.OverlaySelectedColor); ok {
		style.Selected = c
	}
	if c, ok := overlay.ParseHexColor(o.OverlayTaggedColor); ok {
		style.Tagged = color.NRGBA{R: c.R, G: c.G, B: c.B, A: style.Tagged.A}
	}
	return style
}
