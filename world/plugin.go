package world

import "tilenet/server/messages"

// Peer is a plugin's view of one connected client: enough to address that
// client with deltas and chat, nothing more.
type Peer interface {
	AgentID() string
	SendSet(objid string, attrs messages.Attrs) error
	SendHear(from, to, message string) error
}

// Directory resolves agent ids to live peers. Plugins use it to address
// broadcasts; entries appear at login and disappear at disconnect.
type Directory interface {
	Peer(agentID string) (Peer, bool)
}

// Controller is the capability handed to plugins that need to move agents
// between matrices (lobby navigation, "return home" tokens). It replaces a
// raw back-reference to the server.
type Controller interface {
	HomeMatrixID() string
	MoveAgentToMatrix(agentID, matrixID string)
}

// Plugin is the per-matrix game behavior contract. A plugin is bound to
// exactly one matrix for its lifetime. Initialize, OnAgentEnter,
// OnAgentLeave and OnClick are required; OnSay and OnPress may be defaulted
// by embedding NopHooks.
//
// Hooks are invoked with the acting peer, the acting agent's objid, and the
// live peer directory. All hooks for one matrix are serialized by the
// plugin's own state guard; hooks must not assume anything about ordering
// across matrices.
type Plugin interface {
	Initialize(dir Directory) error
	OnAgentEnter(p Peer, agentID string, dir Directory)
	OnAgentLeave(p Peer, agentID string, dir Directory)
	OnClick(p Peer, agentID, tokenID string, dir Directory)
	OnSay(p Peer, agentID, targetID, text string, dir Directory)
	OnPress(p Peer, agentID, keyID string, dir Directory)
}

// NopHooks provides no-op implementations of the optional plugin hooks.
type NopHooks struct{}

func (NopHooks) OnSay(Peer, string, string, string, Directory) {}

func (NopHooks) OnPress(Peer, string, string, Directory) {}
