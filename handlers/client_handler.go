package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"tilenet/server/journal"
	"tilenet/server/messages"
	"tilenet/server/network"
)

// ClientHandler is the per-connection state machine. Until login succeeds
// it only accepts login frames; afterwards it routes commands to the
// server. All frames for one connection are handled sequentially by the
// read pump.
type ClientHandler struct {
	srv  *Server
	conn *network.Connection

	session  *Session
	agentID  string
	attempts int
}

// HandleMessage implements network.MessageHandler.
func (h *ClientHandler) HandleMessage(conn *network.Connection, raw []byte) {
	if h.session == nil {
		h.handleLogin(raw)
		return
	}

	msgType, err := messages.ValidateClientFrame(raw)
	if err != nil {
		// Malformed post-login frames are dropped, not fatal.
		log.Printf("handler: dropped frame from %s: %v", h.agentID, err)
		return
	}

	switch msgType {
	case messages.MessageTypeCmd:
		var cmd messages.CmdMessage
		if err := json.Unmarshal(raw, &cmd); err != nil {
			log.Printf("handler: bad cmd from %s: %v", h.agentID, err)
			return
		}
		h.srv.dispatchCmd(h.session, h.agentID, cmd)
	case messages.MessageTypeLogout:
		log.Printf("handler: agent %s logging out", h.agentID)
		// Cleanup runs after the read pump unwinds.
		h.conn.Close()
	default:
		log.Printf("handler: unexpected %q frame from %s", msgType, h.agentID)
	}
}

// handleLogin processes one login attempt. Rejections reply without
// closing; the connection is closed once the attempt budget is spent, on a
// malformed frame, or on an unexpected frame type.
func (h *ClientHandler) handleLogin(raw []byte) {
	msgType, err := messages.ValidateClientFrame(raw)
	if err != nil || msgType != messages.MessageTypeLogin {
		log.Printf("handler: expected login from %s, got %q (%v)", h.conn.RemoteAddr(), msgType, err)
		h.conn.Close()
		return
	}

	var login messages.LoginMessage
	if err := json.Unmarshal(raw, &login); err != nil {
		log.Printf("handler: bad login frame from %s: %v", h.conn.RemoteAddr(), err)
		h.conn.Close()
		return
	}

	user := strings.TrimSpace(login.User)
	if user == "" || strings.Contains(user, "<") {
		h.reject("Invalid username. Must be non-empty and contain no '<'.")
		return
	}

	h.srv.loginMu.Lock()
	if h.srv.nameInUse(user) {
		h.srv.loginMu.Unlock()
		h.reject(fmt.Sprintf("Username %q is already in use.", user))
		return
	}

	remote := h.conn.RemoteAddr()
	agent := h.srv.world.CreateAgent(messages.Attrs{
		Name:   messages.String(user),
		Text:   messages.String(remote),
		Energy: messages.Int(agentStartEnergy),
	})
	session := NewSession(h.conn, agent.ObjID)
	h.srv.sessions.Add(session)
	h.srv.loginMu.Unlock()

	h.session = session
	h.agentID = agent.ObjID

	if err := session.SendLoggedIn(fmt.Sprintf("Welcome to %s, %s!", h.srv.cfg.ServerName, user), agent.ObjID); err != nil {
		log.Printf("handler: login reply to %s failed: %v", agent.ObjID, err)
		return
	}
	log.Printf("handler: agent %s (%s) logged in from %s", agent.ObjID, user, remote)
	if err := h.srv.journal.Record(journal.Event{Kind: "login", Agent: agent.ObjID, Detail: user}); err != nil {
		log.Printf("handler: journal: %v", err)
	}

	// The login handshake is the only phase with a read timeout.
	h.conn.SetReadTimeout(0)

	h.srv.placeAgent(session, agent.ObjID, h.srv.homeMatrixID)
}

// reject replies to a failed login attempt and closes the connection once
// the attempt budget is spent.
func (h *ClientHandler) reject(reason string) {
	h.attempts++
	if err := h.conn.SendMessage(messages.MakeLoggedIn(reason, "")); err != nil {
		h.conn.Close()
		return
	}
	if h.attempts >= h.srv.cfg.LoginAttempts {
		log.Printf("handler: too many login attempts from %s", h.conn.RemoteAddr())
		// Shutdown drains the queued rejection before the socket closes;
		// a plain Close could drop it.
		h.conn.Shutdown()
		return
	}
	h.conn.SetReadTimeout(h.srv.cfg.LoginTimeout())
}

// nameInUse reports whether any currently-logged-in agent has this exact
// name. Comparison is case-sensitive. Caller holds srv.loginMu.
func (srv *Server) nameInUse(user string) bool {
	inUse := false
	srv.sessions.Each(func(s *Session) {
		if agent, ok := srv.world.Get(s.AgentID()); ok && agent.Name == user {
			inUse = true
		}
	})
	return inUse
}
