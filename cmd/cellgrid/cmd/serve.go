package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cellgrid/internal/config"
	"github.com/MeKo-Tech/cellgrid/internal/server"
	"github.com/MeKo-Tech/cellgrid/internal/session"
)

// sessionSweepInterval is how often idle sessions are evicted.
const sessionSweepInterval = time.Minute

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for table annotation sessions",
	Long: `Start an HTTP server that analyzes uploaded documents and hosts annotation
sessions over the reconstructed table grids.

The server provides the following endpoints:
  POST   /api/analyze                     - Analyze a document, return the block graph
  POST   /api/sessions                    - Upload a document and open a session
  GET    /api/sessions/{id}               - Session state
  POST   /api/sessions/{id}/documents     - Replace the main document
  POST   /api/sessions/{id}/crops         - Analyze a sub-region of a document
  PUT    /api/sessions/{id}/tags/{doc}/{cell}
  POST   /api/sessions/{id}/save          - Hand the tags to the storage sink
  GET    /api/sessions/{id}/events        - Websocket event stream
  GET    /health                          - Health check endpoint
  GET    /metrics                         - Prometheus metrics

Examples:
  cellgrid serve
  cellgrid serve --port 8080
  cellgrid serve --host 0.0.0.0 --headers-provider openai --storage-sink redis`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := applyServeFlags(cmd, *GetConfig())
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		analyzer, err := newAnalyzer(ctx, cfg.OCR)
		if err != nil {
			return fmt.Errorf("failed to initialize OCR backend: %w", err)
		}
		inferrer, err := newInferrer(cfg.Headers)
		if err != nil {
			return fmt.Errorf("failed to initialize header inference: %w", err)
		}
		sink, err := openSink(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage sink: %w", err)
		}

		manager := session.NewManager(cfg.Session.MaxSessions, cfg.Session.IdleTimeout())
		go manager.Run(ctx, sessionSweepInterval)

		service := session.NewService(session.Options{
			Analyzer:       analyzer,
			Inferrer:       inferrer,
			Sink:           sink,
			Manager:        manager,
			MinSelectionPx: cfg.Session.MinSelectionPx,
			HeaderTimeout:  cfg.Headers.Timeout(),
			Style:          cfg.Output.OverlayStyle(),
		})

		apiServer, err := server.NewServer(serverConfig(cfg), service)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		go apiServer.Run(ctx)

		mux := http.NewServeMux()
		apiServer.SetupRoutes(mux)

		host, port := cfg.Server.Host, cfg.Server.Port
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			slog.Info("Starting cellgrid server", "host", host, "port", port,
				"ocr", cfg.OCR.Backend, "headers", cfg.Headers.Provider, "storage", cfg.Storage.Sink)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		// Shutdown HTTP server first
		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Closing sessions")
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Error("Session shutdown error", "error", err)
		}
		if err := apiServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// applyServeFlags overrides configuration values with the flags that were set.
func applyServeFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt64("max-upload-size")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetDuration("shutdown-timeout")
	}
	if flags.Changed("overlay-enable") {
		cfg.Server.OverlayEnabled, _ = flags.GetBool("overlay-enable")
	}

	if flags.Changed("rate-limit-enabled") {
		cfg.Server.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		cfg.Server.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		cfg.Server.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		cfg.Server.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		cfg.Server.RateLimit.MaxDataPerDay, _ = flags.GetInt64("max-data-per-day")
	}

	if flags.Changed("ocr-backend") {
		cfg.OCR.Backend, _ = flags.GetString("ocr-backend")
	}
	if flags.Changed("ocr-endpoint") {
		cfg.OCR.Endpoint, _ = flags.GetString("ocr-endpoint")
	}
	if flags.Changed("headers-provider") {
		cfg.Headers.Provider, _ = flags.GetString("headers-provider")
	}
	if flags.Changed("headers-model") {
		cfg.Headers.Model, _ = flags.GetString("headers-model")
	}
	if flags.Changed("storage-sink") {
		cfg.Storage.Sink, _ = flags.GetString("storage-sink")
	}
	if flags.Changed("max-sessions") {
		cfg.Session.MaxSessions, _ = flags.GetInt("max-sessions")
	}
	return cfg
}

// serverConfig maps the server section onto the API server configuration.
func serverConfig(cfg config.Config) server.Config {
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		CORSOrigin:        cfg.Server.CORSOrigin,
		MaxUploadMB:       cfg.Server.MaxUploadMB,
		TimeoutSec:        cfg.Server.TimeoutSec,
		AllowedExtensions: cfg.OCR.AllowedExtensions,
		OverlayEnabled:    cfg.Server.OverlayEnabled,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDay,
		},
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int64("max-upload-size", 10, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().Bool("overlay-enable", true, "enable coverage overlay images")
	// Backend selection flags
	serveCmd.Flags().String("ocr-backend", "textract", "OCR backend: textract or remote")
	serveCmd.Flags().String("ocr-endpoint", "", "OCR endpoint (remote backend URL or Textract endpoint override)")
	serveCmd.Flags().String("headers-provider", "none", "header inference provider: none, openai, anthropic or remote")
	serveCmd.Flags().String("headers-model", "", "model used for header inference")
	serveCmd.Flags().String("storage-sink", "log", "storage sink for saved tags: log, redis or postgres")
	serveCmd.Flags().Int("max-sessions", 100, "maximum number of concurrent sessions (0 = unlimited)")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 100*1024*1024, "maximum data processed per day per client (bytes)")
}
