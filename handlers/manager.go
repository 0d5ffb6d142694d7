package handlers

import (
	"sync"

	"tilenet/server/world"
)

// SessionManager is the live directory of logged-in sessions, keyed by
// agent objid. It implements world.Directory for plugin broadcasts.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty session directory.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Add registers a session under its agent id.
func (m *SessionManager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.AgentID()] = s
}

// Remove drops the session for an agent id, if present.
func (m *SessionManager) Remove(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, agentID)
}

// Len returns the number of logged-in sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Get returns the session for an agent id.
func (m *SessionManager) Get(agentID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[agentID]
	return s, ok
}

// Peer implements world.Directory.
func (m *SessionManager) Peer(agentID string) (world.Peer, bool) {
	s, ok := m.Get(agentID)
	if !ok {
		return nil, false
	}
	return s, true
}

// Each calls fn for every logged-in session.
func (m *SessionManager) Each(fn func(*Session)) {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}
