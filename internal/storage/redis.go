package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/workspace"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cellgrid:tags:"

func tagsKey(sessionID string) string {
	return keyPrefix + sessionID
}

// RedisSink stores each session's payload as a list of JSON entries.
type RedisSink struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSink connects and pings the server. A zero ttl keeps keys forever.
func NewRedisSink(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisSink{rdb: rdb, ttl: ttl}, nil
}

// Save implements Sink.
func (s *RedisSink) Save(ctx context.Context, sessionID string, entries []workspace.Entry) error {
	values, err := encodeEntries(entries)
	if err != nil {
		return err
	}

	key := tagsKey(sessionID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store tags for session %s: %w", sessionID, err)
	}
	return nil
}

// Load returns the stored payload of a session.
func (s *RedisSink) Load(ctx context.Context, sessionID string) ([]workspace.Entry, error) {
	values, err := s.rdb.LRange(ctx, tagsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tags for session %s: %w", sessionID, err)
	}
	return decodeEntries(values)
}

// Close implements Sink.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

func encodeEntries(entries []workspace.Entry) ([]any, error) {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entry %s: %w", e.BlockID, err)
		}
		values = append(values, string(data))
	}
	return values, nil
}

func decodeEntries(values []string) ([]workspace.Entry, error) {
	out := make([]workspace.Entry, 0, len(values))
	for _, v := range values {
		var e workspace.Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
