package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs an in-process Store. Sessions idle for longer than ttl
// are dropped on read; ttl <= 0 keeps them until cleared.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{
		sessions: make(map[int64]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session for a user if it exists, otherwise an idle session.
func (m *memoryStore) Get(ctx context.Context, userID int64) (Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return Idle(), nil
	}
	if m.ttl > 0 && m.now().Sub(session.UpdatedAt) > m.ttl {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Save may have refreshed it.
		if cur, ok := m.sessions[userID]; ok && cur.UpdatedAt.Equal(session.UpdatedAt) {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
		logger.Debug(ctx, "tg.state", "session.expired",
			slog.Int64("user_id", userID),
			slog.String("state", string(session.State)),
		)
		return Idle(), nil
	}
	return session.clone(), nil
}

// Save stores the session, stamping UpdatedAt. Idle sessions are removed.
func (m *memoryStore) Save(ctx context.Context, userID int64, s Session) error {
	if !s.InProgress() {
		return m.Clear(ctx, userID)
	}
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[userID] = s.clone()
	m.mu.Unlock()
	return nil
}

// Clear removes the entire session for a user.
func (m *memoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}
