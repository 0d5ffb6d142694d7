package handlers

import (
	"log"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"tilenet/server/config"
	"tilenet/server/journal"
	"tilenet/server/messages"
	"tilenet/server/network"
	"tilenet/server/world"
)

// Agents start with enough energy that one game entry cost does not
// immediately deplete them.
const agentStartEnergy = 10

// Server orchestrates the connection lifecycle: handshake, login
// arbitration, command dispatch, matrix transfers and disconnect cleanup.
// It implements world.Controller so plugins can request agent transfers
// without holding a server back-reference.
type Server struct {
	world    *world.World
	cfg      config.Config
	sessions *SessionManager
	journal  *journal.Recorder

	// loginMu serializes the duplicate-name check against agent creation.
	loginMu sync.Mutex

	homeMatrixID string
}

// NewServer wires a server over a world. rec may be nil.
func NewServer(w *world.World, cfg config.Config, rec *journal.Recorder) *Server {
	return &Server{
		world:    w,
		cfg:      cfg,
		sessions: NewSessionManager(),
		journal:  rec,
	}
}

// SetHomeMatrix designates the matrix new logins are placed into. Called
// once during world setup, before the server accepts connections.
func (srv *Server) SetHomeMatrix(matrixID string) { srv.homeMatrixID = matrixID }

// HomeMatrixID implements world.Controller.
func (srv *Server) HomeMatrixID() string { return srv.homeMatrixID }

// Sessions exposes the live session directory.
func (srv *Server) Sessions() *SessionManager { return srv.sessions }

// MoveAgentToMatrix implements world.Controller; plugins use it for lobby
// navigation and "return home" tokens.
func (srv *Server) MoveAgentToMatrix(agentID, matrixID string) {
	session, ok := srv.sessions.Get(agentID)
	if !ok {
		log.Printf("server: move requested for unknown agent %s", agentID)
		return
	}
	srv.placeAgent(session, agentID, matrixID)
}

// HandleConnection runs one client connection through its full lifecycle.
// It blocks until the connection closes.
func (srv *Server) HandleConnection(wsConn *websocket.Conn) {
	remote := "unknown"
	if addr := wsConn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	status := messages.StatusOpen
	if srv.sessions.Len() >= srv.cfg.MaxClients {
		status = messages.StatusBusy
	}
	kind := "connect"
	if status == messages.StatusBusy {
		kind = "busy-reject"
	}
	if err := srv.journal.Record(journal.Event{Kind: kind, Detail: remote}); err != nil {
		log.Printf("server: journal: %v", err)
	}
	hello := messages.MakeServerHello(srv.cfg.Group, srv.cfg.ServerName, status)
	if err := wsConn.WriteJSON(hello); err != nil {
		wsConn.Close()
		return
	}
	if status == messages.StatusBusy {
		log.Printf("server: rejected connection from %s (busy)", wsConn.RemoteAddr())
		wsConn.Close()
		return
	}

	conn := network.NewConnection(wsConn)
	h := &ClientHandler{srv: srv, conn: conn}

	go conn.WritePump()
	conn.SetReadTimeout(srv.cfg.LoginTimeout())
	conn.ReadPump(h)

	if h.session != nil {
		srv.removeAgent(h.session, h.agentID)
	}
	conn.Shutdown()
}

// placeAgent moves an agent into a matrix, both at initial placement and on
// plugin-initiated transfers. Order matters: the old matrix's occupants see
// the exit delta and the old plugin is notified before containment changes,
// so no peer can observe a half-moved agent.
func (srv *Server) placeAgent(session *Session, agentID, matrixID string) {
	agent, ok := srv.world.Get(agentID)
	if !ok {
		return
	}

	if old := agent.ContainerMatrix; old != "" {
		srv.world.RemoveFromMatrix(agentID)
		exit := messages.Attrs{X: messages.Int(-1)}
		for _, other := range srv.world.AgentsIn(old) {
			peer, ok := srv.sessions.Get(other.ObjID)
			if !ok {
				continue
			}
			if err := peer.SendSet(agentID, exit); err != nil {
				log.Printf("server: exit delta to %s failed: %v", other.ObjID, err)
			}
		}
		if plugin, ok := srv.world.PluginFor(old); ok {
			plugin.OnAgentLeave(session, agentID, srv.sessions)
		}
	}

	srv.world.PlaceInMatrix(agentID, matrixID)

	if err := session.SendMatrixState(srv.world, matrixID); err != nil {
		log.Printf("server: matrix state to %s failed: %v", agentID, err)
	}

	agent, _ = srv.world.Get(agentID)
	for _, other := range srv.world.AgentsIn(matrixID) {
		if other.ObjID == agentID {
			continue
		}
		peer, ok := srv.sessions.Get(other.ObjID)
		if !ok {
			continue
		}
		if err := peer.SendFullObject(agent); err != nil {
			log.Printf("server: arrival notice to %s failed: %v", other.ObjID, err)
		}
	}

	if plugin, ok := srv.world.PluginFor(matrixID); ok {
		plugin.OnAgentEnter(session, agentID, srv.sessions)
	}
}

// dispatchCmd routes one validated client command. Commands for one agent
// run synchronously on its connection goroutine.
func (srv *Server) dispatchCmd(session *Session, agentID string, cmd messages.CmdMessage) {
	agent, ok := srv.world.Get(agentID)
	if !ok {
		return
	}
	matrixID := agent.ContainerMatrix
	if matrixID == "" {
		return
	}

	if _, _, err := messages.ParseObjID(cmd.ObjID); err != nil {
		log.Printf("server: %s sent %s with bad objid: %v", agentID, cmd.CmdType, err)
		return
	}

	switch cmd.CmdType {
	case messages.CmdClick:
		srv.handleClick(session, agentID, cmd.ObjID, matrixID)
	case messages.CmdSay:
		srv.handleSay(session, agentID, cmd.ObjID, cmd.Text, matrixID)
	case messages.CmdPress:
		srv.handlePress(session, agentID, cmd.ObjID, matrixID)
	default:
		log.Printf("server: unknown cmd_type %q from %s", cmd.CmdType, agentID)
	}
}

// handleClick validates the target token and forwards to the matrix plugin.
// Agent-energy eligibility is the plugin's call, so control tokens stay
// clickable for depleted agents.
func (srv *Server) handleClick(session *Session, agentID, tokenID, matrixID string) {
	if messages.KindOf(tokenID) != messages.KindToken {
		log.Printf("server: illegal click target %q from %s", tokenID, agentID)
		return
	}
	token, ok := srv.world.Get(tokenID)
	if !ok || token.ContainerMatrix != matrixID {
		return
	}
	if token.Energy <= 0 {
		return
	}
	if plugin, ok := srv.world.PluginFor(matrixID); ok {
		plugin.OnClick(session, agentID, tokenID, srv.sessions)
	}
}

// handleSay routes speech. Parenthesized text to an agent is a whisper to
// that agent only; other agent-targeted speech is broadcast to the target
// agent's matrix, which lets the speaker shout into the target's room.
// Non-agent targets go to the sender's matrix plugin.
func (srv *Server) handleSay(session *Session, agentID, targetID, text, matrixID string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if messages.KindOf(targetID) != messages.KindAgent {
		if plugin, ok := srv.world.PluginFor(matrixID); ok {
			plugin.OnSay(session, agentID, targetID, text, srv.sessions)
		}
		return
	}

	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		if target, ok := srv.sessions.Get(targetID); ok {
			if err := target.SendHear(agentID, targetID, text); err != nil {
				log.Printf("server: whisper to %s failed: %v", targetID, err)
			}
		}
		// Whisper bodies stay private; the audit trail records only that
		// one happened.
		if err := srv.journal.Record(journal.Event{Kind: "whisper", Agent: agentID, Matrix: matrixID}); err != nil {
			log.Printf("server: journal: %v", err)
		}
		return
	}

	targetMatrix := matrixID
	if target, ok := srv.world.Get(targetID); ok {
		targetMatrix = target.ContainerMatrix
	}
	for _, a := range srv.world.AgentsIn(targetMatrix) {
		peer, ok := srv.sessions.Get(a.ObjID)
		if !ok {
			continue
		}
		if err := peer.SendHear(agentID, targetID, text); err != nil {
			log.Printf("server: hear to %s failed: %v", a.ObjID, err)
		}
	}

	if err := srv.journal.Record(journal.Event{Kind: "say", Agent: agentID, Matrix: matrixID, Detail: text}); err != nil {
		log.Printf("server: journal: %v", err)
	}
}

// handlePress forwards a key press to the matrix plugin unless the pressing
// agent is depleted.
func (srv *Server) handlePress(session *Session, agentID, keyID, matrixID string) {
	agent, ok := srv.world.Get(agentID)
	if !ok || agent.Energy <= 0 {
		return
	}
	if plugin, ok := srv.world.PluginFor(matrixID); ok {
		plugin.OnPress(session, agentID, keyID, srv.sessions)
	}
}

// removeAgent reverses an agent's placement on disconnect or logout. The
// Agent object itself is retained in the world; only presence is transient.
func (srv *Server) removeAgent(session *Session, agentID string) {
	agent, ok := srv.world.Get(agentID)
	if !ok {
		return
	}

	if matrixID := agent.ContainerMatrix; matrixID != "" {
		if plugin, ok := srv.world.PluginFor(matrixID); ok {
			plugin.OnAgentLeave(session, agentID, srv.sessions)
		}
		srv.world.RemoveFromMatrix(agentID)
		exit := messages.Attrs{X: messages.Int(-1)}
		for _, other := range srv.world.AgentsIn(matrixID) {
			peer, ok := srv.sessions.Get(other.ObjID)
			if !ok {
				continue
			}
			if err := peer.SendSet(agentID, exit); err != nil {
				log.Printf("server: exit delta to %s failed: %v", other.ObjID, err)
			}
		}
	}

	// Best-effort farewell; the socket may already be gone.
	_ = session.SendLoggedOut("Goodbye!")

	srv.sessions.Remove(agentID)
	session.Reset()
	if err := srv.journal.Record(journal.Event{Kind: "logout", Agent: agentID}); err != nil {
		log.Printf("server: journal: %v", err)
	}
	log.Printf("server: agent %s removed", agentID)
}
