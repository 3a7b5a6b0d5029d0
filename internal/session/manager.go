package session

import (
	"context"
	"sync"
	"time"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/metrics"
)

// InitialProfileFunc returns the profile name new sessions start on,
// normally the persisted current-profile pointer.
type InitialProfileFunc func(ctx context.Context) (string, error)

// Manager tracks sessions by ID.
type Manager struct {
	initial InitialProfileFunc
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty manager. A nil initial starts sessions on "".
func NewManager(initial InitialProfileFunc, m *metrics.Metrics) *Manager {
	if initial == nil {
		initial = func(context.Context) (string, error) { return "", nil }
	}
	return &Manager{
		initial:  initial,
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a fresh ID.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	return m.create(ctx, NewID())
}

func (m *Manager) create(ctx context.Context, id string) (*Session, error) {
	name, err := m.initial(ctx)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	s := New(id, name)

	// A concurrent caller may have created id while initial ran.
	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		existing.touch()
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	return s, nil
}

// Get returns the session with id, if any.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.touch()
	}
	return s, ok
}

// GetOrCreate returns the session for id. An empty or unknown id gets a new session;
// a non-empty unknown id is reused as the new session's ID.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, nil
		}
		return m.create(ctx, id)
	}
	return m.Create(ctx)
}

// Delete forgets a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune removes sessions idle for longer than maxIdle and returns how many were removed.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	return removed
}
