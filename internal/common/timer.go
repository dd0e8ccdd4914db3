// Package common holds small helpers shared by the backend adapters.
package common

import (
	"fmt"
	"log/slog"
	"time"
)

// Timer measures one named operation.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Elapsed returns the time since the timer started without stopping it.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stop records and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the operation name.
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// LogValue implements slog.LogValuer.
func (t *Timer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("op", t.name),
		slog.Float64("ms", float64(t.duration.Microseconds())/1000),
	)
}
