// Package game contains the per-matrix behaviors: the Home lobby and the
// PairPanicking matching game.
package game

import (
	"fmt"
	"log"
	"sync"

	"tilenet/server/journal"
	"tilenet/server/messages"
	"tilenet/server/world"
)

// Home is the lobby plugin. It is stateless beyond a navigation-token
// registry mapping token objids to target matrices.
type Home struct {
	world.NopHooks

	w        *world.World
	matrixID string
	ctrl     world.Controller
	rec      *journal.Recorder

	mu  sync.Mutex
	nav map[string]string // token objid -> target matrix objid
}

// NewHome creates the lobby behavior for a matrix. rec may be nil.
func NewHome(w *world.World, matrixID string, ctrl world.Controller, rec *journal.Recorder) *Home {
	return &Home{
		w:        w,
		matrixID: matrixID,
		ctrl:     ctrl,
		rec:      rec,
		nav:      make(map[string]string),
	}
}

// Initialize implements world.Plugin. Navigation tokens are added with
// AddDestination once the target matrices exist.
func (h *Home) Initialize(world.Directory) error { return nil }

// AddDestination creates a navigation token in the lobby grid and registers
// its target matrix. Returns the token objid.
func (h *Home) AddDestination(name string, x, y int, targetMatrixID string) string {
	token := h.w.CreateToken(messages.Attrs{
		Name:    messages.String(name),
		Text:    messages.String(fmt.Sprintf("Click to play %s!", name)),
		X:       messages.Int(x),
		Y:       messages.Int(y),
		Energy:  messages.Int(1),
		BgColor: messages.String("ff2255aa"),
		FgColor: messages.String("ffffffff"),
	})
	h.w.PlaceInMatrix(token.ObjID, h.matrixID)

	h.mu.Lock()
	h.nav[token.ObjID] = targetMatrixID
	h.mu.Unlock()

	log.Printf("home: destination %s -> %s via token %s", name, targetMatrixID, token.ObjID)
	return token.ObjID
}

// OnAgentEnter announces the arrival to the other lobby occupants.
func (h *Home) OnAgentEnter(p world.Peer, agentID string, dir world.Directory) {
	agent, ok := h.w.Get(agentID)
	if !ok {
		return
	}
	h.announce(dir, agentID, fmt.Sprintf("%s has entered the lobby.", agent.Name))
}

// OnAgentLeave announces the departure to the remaining occupants.
func (h *Home) OnAgentLeave(p world.Peer, agentID string, dir world.Directory) {
	agent, ok := h.w.Get(agentID)
	if !ok {
		return
	}
	h.announce(dir, agentID, fmt.Sprintf("%s has left the lobby.", agent.Name))
}

// OnClick moves the clicking agent to the target matrix of a navigation
// token. Clicks on unregistered tokens are logged and ignored.
func (h *Home) OnClick(p world.Peer, agentID, tokenID string, dir world.Directory) {
	h.mu.Lock()
	target, ok := h.nav[tokenID]
	h.mu.Unlock()

	if !ok {
		log.Printf("home: agent %s clicked unregistered token %s", agentID, tokenID)
		return
	}
	log.Printf("home: agent %s navigating to matrix %s", agentID, target)
	if err := h.rec.Record(journal.Event{Kind: "navigate", Agent: agentID, Matrix: target}); err != nil {
		log.Printf("home: journal: %v", err)
	}
	h.ctrl.MoveAgentToMatrix(agentID, target)
}

// announce delivers chat to every lobby occupant except the acting agent.
func (h *Home) announce(dir world.Directory, actingID, text string) {
	for _, other := range h.w.AgentsIn(h.matrixID) {
		if other.ObjID == actingID {
			continue
		}
		peer, ok := dir.Peer(other.ObjID)
		if !ok {
			continue
		}
		if err := peer.SendHear(h.matrixID, other.ObjID, text); err != nil {
			log.Printf("home: announce to %s failed: %v", other.ObjID, err)
		}
	}
}
