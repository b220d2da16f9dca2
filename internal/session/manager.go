package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the reconciliation state of one rendered form
type Session struct {
	ID         string
	FormID     string
	CreatedAt  time.Time
	LastAccess time.Time
	State      *State
}

// Manager keeps the sessions of the forms currently open
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
	onExpire func(*Session)
}

// NewManager creates a new session manager
func NewManager(ttl time.Duration) *Manager {
	if ttl == 0 {
		ttl = 24 * time.Hour // Default 24 hours
	}

	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// OnExpire registers a hook called, outside the lock, for every session
// dropped because it expired
func (m *Manager) OnExpire(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// CreateSession starts tracking a form with an empty state
func (m *Manager) CreateSession(formID string) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	sessionID := id.String()

	now := time.Now()
	session := &Session{
		ID:         sessionID,
		FormID:     formID,
		CreatedAt:  now,
		LastAccess: now,
		State:      NewState(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = session
	m.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by ID, dropping it if it expired
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return nil, false
	}

	if time.Since(session.LastAccess) > m.ttl {
		delete(m.sessions, sessionID)
		onExpire := m.onExpire
		m.mu.Unlock()
		if onExpire != nil {
			onExpire(session)
		}
		return nil, false
	}

	session.LastAccess = time.Now()
	m.mu.Unlock()
	return session, true
}

// Count returns the number of tracked sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DeleteSession removes a session
func (m *Manager) DeleteSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// CleanupExpiredSessions removes expired sessions
func (m *Manager) CleanupExpiredSessions() int {
	m.mu.Lock()
	var expired []*Session
	cutoff := time.Now().Add(-m.ttl)

	for sessionID, session := range m.sessions {
		if session.LastAccess.Before(cutoff) {
			delete(m.sessions, sessionID)
			expired = append(expired, session)
		}
	}
	onExpire := m.onExpire
	m.mu.Unlock()

	if onExpire != nil {
		for _, session := range expired {
			onExpire(session)
		}
	}
	return len(expired)
}
