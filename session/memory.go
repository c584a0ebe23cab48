package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MEMORY STORE - In-memory session store
// =============================================================================

// Memory keeps sessions in a map guarded by a mutex. Sessions are values;
// callers get copies and mutate through Update.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Create starts a session on a unit.
func (m *Memory) Create(propertyID, unitID string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &Session{
		ID:         uuid.NewString(),
		PropertyID: propertyID,
		UnitID:     unitID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.sessions[s.ID] = s
	return s.snapshot()
}

// Get returns a copy of the session.
func (m *Memory) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Update runs fn on the session under the store lock. If fn returns an error
// the session is left exactly as it was.
func (m *Memory) Update(id string, fn func(*Session) error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	working := s.snapshot()
	if err := fn(&working); err != nil {
		return s.snapshot(), err
	}
	working.ID = s.ID
	working.UpdatedAt = m.now()
	*s = working
	return s.snapshot(), nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than idleFor and returns how many
// were removed. Sessions with an analysis in flight are kept.
func (m *Memory) Sweep(idleFor time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idleFor)
	removed := 0
	for id, s := range m.sessions {
		if s.Analysis.Pending {
			continue
		}
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// snapshot copies the session, including the suggestion it points to.
func (s *Session) snapshot() Session {
	c := *s
	if s.Suggestion != nil {
		sg := *s.Suggestion
		c.Suggestion = &sg
	}
	return c
}
