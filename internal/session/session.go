// Package session runs one goroutine per editing session that owns its
// workspace, and the services that feed OCR and header inference results
// into it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// ErrClosed is returned by Do after the session was closed.
var ErrClosed = errors.New("session closed")

const subscriberBuffer = 32

// Session serializes all access to one workspace through its loop.
type Session struct {
	id string
	ws *workspace.Workspace

	cmds      chan func(*workspace.Workspace)
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	lastUsed atomic.Int64

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func newSession(id string) *Session {
	s := &Session{
		id:      id,
		ws:      workspace.New(),
		cmds:    make(chan func(*workspace.Workspace)),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		subs:    make(map[int]chan Event),
	}
	s.touch()
	go s.loop()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) loop() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.cmds:
			fn(s.ws)
		case <-s.done:
			s.ws.Reset()
			return
		}
	}
}

// Do runs fn on the session loop and waits for its result. fn must not call
// Do itself.
func (s *Session) Do(ctx context.Context, fn func(*workspace.Workspace) error) error {
	errc := make(chan error, 1)
	cmd := func(w *workspace.Workspace) { errc <- fn(w) }

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	s.touch()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting for it. It is dropped once the session is
// closed.
func (s *Session) post(fn func(*workspace.Workspace)) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

// Close stops the loop and releases the workspace.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped
		s.publish(Event{Type: EventSessionClosed})

		s.subsMu.Lock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
		s.subsMu.Unlock()
	})
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsed returns when a command was last accepted.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Subscribe returns a channel of session events and a function that ends the
// subscription. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.Closed() {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

// publish delivers ev to every subscriber without blocking.
func (s *Session) publish(ev Event) {
	ev.Session = s.id
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			eventsDropped.Inc()
			slog.Debug("Dropping event for slow subscriber", "session", s.id, "event", ev.Type)
		}
	}
}
