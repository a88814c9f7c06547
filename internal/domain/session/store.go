package session

import (
	"context"
	"sync"
	"time"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
)

// Store persists sessions.
type Store interface {
	// Get returns a copy of the session or a NotFound error.
	Get(ctx context.Context, sid id.SessionID) (*Session, error)
	// Save inserts or replaces the session and stamps UpdatedAt.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sid id.SessionID) error
	// DeleteIdle removes sessions not updated since before.
	DeleteIdle(ctx context.Context, before time.Time) (int, error)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[id.SessionID]*Session), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, sid id.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sid]
	if !ok {
		return nil, apperror.NewNotFound("session", sid)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[s.ID] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sid id.SessionID) error {
	m.mu.Lock()
	delete(m.sessions, sid)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteIdle(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for sid, s := range m.sessions {
		if s.UpdatedAt.Before(before) {
			delete(m.sessions, sid)
			n++
		}
	}
	return n, nil
}
