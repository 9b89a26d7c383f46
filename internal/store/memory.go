// internal/store/memory.go
//
// In-memory session store.
// A session is one player's game: its turn engine and the websocket hub its
// board commands and events are published to.
//
// Characteristics:
//   - Sessions keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Delete and Expire close the session's hub and halt its engine.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itxchy/simon/internal/hub"
	"github.com/itxchy/simon/internal/simon"
)

// ErrNotFound is returned by Get for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Session is one player's game.
type Session struct {
	ID        string
	Engine    *simon.Engine
	Hub       *hub.Hub
	Daily     string // date key when playing the daily challenge
	CreatedAt time.Time
}

// NewID returns a fresh session identifier.
func NewID() string { return uuid.NewString() }

// Store defines the persistence interface for sessions.
type Store interface {
	// Save persists or updates a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID.
	// Returns ErrNotFound if the session does not exist.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session, stopping its engine and hub.
	Delete(ctx context.Context, id string) error

	// Expire deletes every session created at or before cutoff and
	// reports how many were removed.
	Expire(ctx context.Context, cutoff time.Time) int

	// Len reports the number of stored sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex        // guards sessions map
	sessions map[string]*Session // keyed by Session.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session)}
}

// Save adds or updates the session in the map.
func (m *memory) Save(ctx context.Context, s *Session) error {
	if s.ID == "" {
		return errors.New("session without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get looks up a session by ID.
func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

// Delete removes the session and releases its resources.
func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	release(s)
	return nil
}

// Expire removes sessions whose CreatedAt is not after cutoff.
func (m *memory) Expire(ctx context.Context, cutoff time.Time) int {
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if !s.CreatedAt.After(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		release(s)
	}
	return len(stale)
}

// release stops the session's engine and hub.
func release(s *Session) {
	if s.Engine != nil {
		s.Engine.ResetGame()
	}
	if s.Hub != nil {
		s.Hub.Close()
	}
}

// Len reports the number of sessions.
func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
