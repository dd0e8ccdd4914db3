package storage

import (
	"context"
	"log/slog"

	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// LogSink only logs the payload.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger, or the default logger when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Save implements Sink.
func (s *LogSink) Save(ctx context.Context, sessionID string, entries []workspace.Entry) error {
	s.logger.InfoContext(ctx, "Saving sensor tags", "session", sessionID, "entries", len(entries), "payload", entries)
	return nil
}

// Close implements Sink.
func (s *LogSink) Close() error { return nil }
