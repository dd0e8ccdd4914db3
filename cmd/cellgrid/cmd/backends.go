package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v3/option"

	"github.com/MeKo-Tech/cellgrid/internal/config"
	"github.com/MeKo-Tech/cellgrid/internal/headers"
	"github.com/MeKo-Tech/cellgrid/internal/ocr"
	"github.com/MeKo-Tech/cellgrid/internal/storage"
)

// newAnalyzer builds the OCR backend named in the configuration.
func newAnalyzer(ctx context.Context, cfg config.OCRConfig) (ocr.Analyzer, error) {
	switch cfg.Backend {
	case "textract", "":
		analyzer, err := ocr.NewTextractAnalyzerFromEnv(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		slog.Debug("Using Textract backend", "region", cfg.Region, "endpoint", cfg.Endpoint)
		return analyzer, nil
	case "remote":
		if cfg.Endpoint == "" {
			return nil, errors.New("ocr endpoint is required for the remote backend")
		}
		slog.Debug("Using remote OCR backend", "endpoint", cfg.Endpoint)
		return ocr.NewRemoteAnalyzer(cfg.Endpoint, time.Duration(cfg.TimeoutSec)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown ocr backend %q (use textract or remote)", cfg.Backend)
	}
}

// newInferrer builds the header inference provider. A nil Inferrer disables
// header inference.
func newInferrer(cfg config.HeadersConfig) (headers.Inferrer, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "openai":
		var opts []openaioption.RequestOption
		if cfg.Endpoint != "" {
			opts = append(opts, openaioption.WithBaseURL(cfg.Endpoint))
		}
		return headers.NewOpenAIInferrer(cfg.APIKey, cfg.Model, opts...), nil
	case "anthropic":
		var opts []anthropicoption.RequestOption
		if cfg.Endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.Endpoint))
		}
		return headers.NewAnthropicInferrer(cfg.APIKey, cfg.Model, opts...), nil
	case "remote":
		if cfg.Endpoint == "" {
			return nil, errors.New("headers endpoint is required for the remote provider")
		}
		return headers.NewRemoteInferrer(cfg.Endpoint, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown headers provider %q (use none, openai, anthropic or remote)", cfg.Provider)
	}
}

// openSink connects the storage sink named in the configuration.
func openSink(ctx context.Context, cfg config.StorageConfig) (storage.Sink, error) {
	return storage.Open(ctx, storage.Options{
		Kind:          storage.Kind(cfg.Sink),
		RedisAddr:     cfg.RedisAddress,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		TTL:           time.Duration(cfg.RedisTTLHours) * time.Hour,
		PostgresDSN:   cfg.PostgresDSN,
	})
}
