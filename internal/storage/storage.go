// Package storage hands the tag payload of a session to a downstream store.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// Sink persists the save payload of one session. Saving again replaces the
// previous payload of that session.
type Sink interface {
	Save(ctx context.Context, sessionID string, entries []workspace.Entry) error
	Close() error
}

// Loader is implemented by sinks that can read a stored payload back.
type Loader interface {
	Load(ctx context.Context, sessionID string) ([]workspace.Entry, error)
}

// Kind names a sink implementation.
type Kind string

const (
	KindLog      Kind = "log"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)

// Options selects and configures a sink.
type Options struct {
	Kind Kind

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration

	PostgresDSN string
}

// Open connects the configured sink.
func Open(ctx context.Context, opts Options) (Sink, error) {
	switch opts.Kind {
	case KindLog, "":
		return NewLogSink(nil), nil
	case KindRedis:
		return NewRedisSink(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.TTL)
	case KindPostgres:
		sink, err := NewPostgresSink(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = sink.Close()
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown storage sink %q (use log, redis or postgres)", opts.Kind)
	}
}
