package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/google/uuid"
)

// Manager owns the open sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	idle     time.Duration
	now      func() time.Time
}

// NewManager creates a manager. Zero max or idle disables the limit or the
// eviction.
func NewManager(maxSessions int, idle time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		max:      maxSessions,
		idle:     idle,
		now:      time.Now,
	}
}

// Create opens a new session.
func (m *Manager) Create() (*Session, error) {
	m.EvictIdle()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, apperr.New(apperr.KindInternal, apperr.CodeTooManySessions,
			fmt.Sprintf("Too many open sessions (limit %d)", m.max))
	}

	s := newSession(uuid.NewString())
	m.sessions[s.id] = s
	activeSessions.Inc()
	slog.Info("Session created", "session", s.id)
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || s.Closed() {
		return nil, apperr.NotFound(apperr.CodeSessionNotFound, fmt.Sprintf("Session %s not found", id))
	}
	return s, nil
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	activeSessions.Dec()
	slog.Info("Session closed", "session", id)
	return true
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed.
func (m *Manager) EvictIdle() int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		if m.Remove(id) {
			sessionsEvicted.Inc()
			slog.Info("Evicted idle session", "session", id)
		}
	}
	return len(stale)
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.idle <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
}
