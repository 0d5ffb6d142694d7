package handlers

import (
	"sync"

	"tilenet/server/messages"
	"tilenet/server/models"
	"tilenet/server/world"
)

// sender is the outbound half of a connection. *network.Connection satisfies
// it; tests substitute a recording fake.
type sender interface {
	SendMessage(msg any) error
}

// Session is one connected client's server-side replication state: which
// objects the client has been told about and which matrix it believes is
// current. This is advisory bookkeeping to avoid redundant full-object
// sends, not authoritative game state.
type Session struct {
	conn    sender
	agentID string

	mu            sync.Mutex
	known         map[string]struct{}
	currentMatrix string
}

// NewSession attaches replication state to a connection after a successful
// login.
func NewSession(conn sender, agentID string) *Session {
	return &Session{
		conn:    conn,
		agentID: agentID,
		known:   make(map[string]struct{}),
	}
}

// AgentID returns the objid of the agent this session controls.
func (s *Session) AgentID() string { return s.agentID }

// Knows reports whether the client has been told about an object.
func (s *Session) Knows(objid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.known[objid]
	return ok
}

// CurrentMatrix returns the matrix the client believes is current.
func (s *Session) CurrentMatrix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMatrix
}

// Reset clears the replication state. Postcondition: the client is assumed
// to know no objects and to be in no matrix; the next sync must start from
// full object definitions.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known = make(map[string]struct{})
	s.currentMatrix = ""
}

// SendSet emits an attribute delta and records the object as known to the
// client.
func (s *Session) SendSet(objid string, attrs messages.Attrs) error {
	s.mu.Lock()
	s.known[objid] = struct{}{}
	s.mu.Unlock()
	return s.conn.SendMessage(messages.MakeSet(objid, attrs))
}

// SendFullObject emits every attribute of an object, used the first time a
// client learns of it.
func (s *Session) SendFullObject(obj models.Object) error {
	return s.SendSet(obj.ObjID, obj.FullAttrs())
}

// SendHear delivers chat to this client.
func (s *Session) SendHear(from, to, message string) error {
	return s.conn.SendMessage(messages.MakeHear(from, to, message))
}

// SendLoggedIn delivers the login reply. An empty objid marks a rejection.
func (s *Session) SendLoggedIn(message, objid string) error {
	return s.conn.SendMessage(messages.MakeLoggedIn(message, objid))
}

// SendLoggedOut delivers the session-ending notice.
func (s *Session) SendLoggedOut(message string) error {
	return s.conn.SendMessage(messages.MakeLoggedOut(message))
}

// SendMatrixState sends the full state of a matrix, in the protocol's fixed
// order:
//
//  1. the matrix definition (the client-side trigger to switch rooms)
//  2. images, so later image references resolve
//  3. tokens
//  4. keys
//  5. agents, including this client's own agent
//
// The ordering is a protocol contract, not an optimization.
func (s *Session) SendMatrixState(w *world.World, matrixID string) error {
	matrix, ok := w.Get(matrixID)
	if !ok || matrix.Kind() != messages.KindMatrix {
		return nil
	}

	s.mu.Lock()
	s.currentMatrix = matrixID
	s.mu.Unlock()

	if err := s.SendFullObject(matrix); err != nil {
		return err
	}
	for _, img := range w.ImagesIn(matrixID) {
		if err := s.SendFullObject(img); err != nil {
			return err
		}
	}
	for _, tok := range w.TokensIn(matrixID) {
		if err := s.SendFullObject(tok); err != nil {
			return err
		}
	}
	for _, key := range w.KeysIn(matrixID) {
		if err := s.SendFullObject(key); err != nil {
			return err
		}
	}
	for _, agent := range w.AgentsIn(matrixID) {
		if err := s.SendFullObject(agent); err != nil {
			return err
		}
	}
	return nil
}
