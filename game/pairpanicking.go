package game

import (
	"encoding/hex"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"tilenet/server/journal"
	"tilenet/server/messages"
	"tilenet/server/world"
)

// The 16 symbols dealt onto the board, four copies each.
var symbols = []string{
	"beer", "duck", "fairy", "flowers", "hobbiton", "hydrant",
	"lady", "panda", "robot", "rose", "saturn", "skull",
	"tardis", "toilet", "turtle", "woman",
}

const (
	gridRows   = 8
	gridCols   = 8
	totalCells = gridRows * gridCols
	copies     = 4

	revealTimeout = 2 * time.Second
	startScore    = 10

	hiddenName = "???"
)

// Cell visibility states.
type cellState int

const (
	cellHidden cellState = iota
	cellShowing
	cellSolved
)

// Colors (RGBA hex).
const (
	hiddenBg  = "ff334455"
	hiddenFg  = "ffaabbcc"
	showingBg = "ff225588"
	showingFg = "ffffffff"
	solvedBg  = "33222222"
	solvedFg  = "33666666"
	controlBg = "ff11aa44"
	controlFg = "ffffffff"
	homeBg    = "ffcc6600"
	homeFg    = "ffffffff"
)

// PairPanicking is the real-time matching game. The matrix is 9x8: an 8x8
// cell grid plus a control column with Home, Help and Restart tokens.
//
// All game state is guarded by mu; clicks arrive on connection goroutines
// and the resolution timer fires on its own goroutine, so the mutex plus
// the timer generation counter give single-writer semantics per matrix.
type PairPanicking struct {
	world.NopHooks

	w         *world.World
	matrixID  string
	ctrl      world.Controller
	imagesDir string
	rec       *journal.Recorder

	mu      sync.Mutex
	board   [gridRows][gridCols]string
	state   [gridRows][gridCols]cellState
	cells   [gridRows][gridCols]string // token objids
	cellPos map[string][2]int          // token objid -> row, col

	showing  [][2]int
	trigger  string // agent that completed the showing pair
	timer    *time.Timer
	timerGen uint64

	scores     map[string]int
	inProgress bool
	solvedN    int

	homeToken    string
	helpToken    string
	restartToken string

	symbolImages map[string]string // symbol -> image objid

	// resolveAfter is revealTimeout in production; tests shorten it.
	resolveAfter time.Duration
}

// NewPairPanicking creates the game behavior for a matrix. imagesDir may be
// empty, in which case cells are text-only. rec may be nil.
func NewPairPanicking(w *world.World, matrixID string, ctrl world.Controller, imagesDir string, rec *journal.Recorder) *PairPanicking {
	return &PairPanicking{
		w:            w,
		matrixID:     matrixID,
		ctrl:         ctrl,
		imagesDir:    imagesDir,
		rec:          rec,
		cellPos:      make(map[string][2]int),
		scores:       make(map[string]int),
		symbolImages: make(map[string]string),
		resolveAfter: revealTimeout,
	}
}

// Initialize loads images, creates the board and control tokens, and deals
// the first game.
func (g *PairPanicking) Initialize(world.Directory) error {
	g.loadImages()
	g.createCells()
	g.createControls()

	g.mu.Lock()
	g.dealLocked()
	g.mu.Unlock()
	return nil
}

// loadImages reads one image file per symbol from imagesDir, hex-encodes
// the bytes into an Image object, and places it in the matrix. Missing
// files are logged and skipped; the cell falls back to its text label.
func (g *PairPanicking) loadImages() {
	if g.imagesDir == "" {
		return
	}
	for _, symbol := range symbols {
		path := filepath.Join(g.imagesDir, symbol+".jpg")
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("pairpanicking: image %s: %v", path, err)
			continue
		}
		img := g.w.CreateImage(messages.Attrs{
			Text: messages.String(hex.EncodeToString(raw)),
			X:    messages.Int(64),
			Y:    messages.Int(64),
		})
		g.w.PlaceInMatrix(img.ObjID, g.matrixID)
		g.symbolImages[symbol] = img.ObjID
	}
	log.Printf("pairpanicking: loaded %d symbol images", len(g.symbolImages))
}

func (g *PairPanicking) createCells() {
	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			token := g.w.CreateToken(messages.Attrs{
				Name:    messages.String(hiddenName),
				X:       messages.Int(col),
				Y:       messages.Int(row),
				Energy:  messages.Int(1),
				BgColor: messages.String(hiddenBg),
				FgColor: messages.String(hiddenFg),
			})
			g.w.PlaceInMatrix(token.ObjID, g.matrixID)
			g.cells[row][col] = token.ObjID
			g.cellPos[token.ObjID] = [2]int{row, col}
		}
	}
}

func (g *PairPanicking) createControls() {
	controlCol := gridCols // column just past the grid

	home := g.w.CreateToken(messages.Attrs{
		Name:    messages.String("< Home"),
		Text:    messages.String("Return to lobby"),
		X:       messages.Int(controlCol),
		Y:       messages.Int(0),
		Energy:  messages.Int(1),
		BgColor: messages.String(homeBg),
		FgColor: messages.String(homeFg),
	})
	g.w.PlaceInMatrix(home.ObjID, g.matrixID)
	g.homeToken = home.ObjID

	help := g.w.CreateToken(messages.Attrs{
		Name:    messages.String("? Help"),
		Text:    messages.String("Click for instructions"),
		X:       messages.Int(controlCol),
		Y:       messages.Int(2),
		Energy:  messages.Int(1),
		BgColor: messages.String(controlBg),
		FgColor: messages.String(controlFg),
	})
	g.w.PlaceInMatrix(help.ObjID, g.matrixID)
	g.helpToken = help.ObjID

	restart := g.w.CreateToken(messages.Attrs{
		Name:    messages.String("New Game"),
		Text:    messages.String("Start a new game"),
		X:       messages.Int(controlCol),
		Y:       messages.Int(4),
		Energy:  messages.Int(1),
		BgColor: messages.String(controlBg),
		FgColor: messages.String(controlFg),
	})
	g.w.PlaceInMatrix(restart.ObjID, g.matrixID)
	g.restartToken = restart.ObjID
}

// dealLocked shuffles a fresh board and resets pair state. Caller holds mu.
func (g *PairPanicking) dealLocked() {
	deck := make([]string, 0, totalCells)
	for i := 0; i < copies; i++ {
		deck = append(deck, symbols...)
	}
	rand.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	idx := 0
	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			g.board[row][col] = deck[idx]
			g.state[row][col] = cellHidden
			idx++
		}
	}
	g.showing = nil
	g.trigger = ""
	g.solvedN = 0
	g.inProgress = true
	g.stopTimerLocked()
}

// stopTimerLocked cancels any pending resolution timer and invalidates its
// generation so a concurrently-firing callback cannot resolve. Caller
// holds mu.
func (g *PairPanicking) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.timerGen++
}

// OnAgentEnter charges the entry cost and re-enables restart when no game
// is running.
func (g *PairPanicking) OnAgentEnter(p world.Peer, agentID string, dir world.Directory) {
	g.mu.Lock()
	defer g.mu.Unlock()

	score := startScore - 1 // entry cost
	g.scores[agentID] = score
	g.setAndBroadcast(dir, agentID, messages.Attrs{Energy: messages.Int(score)})

	name := g.agentName(agentID)
	g.broadcastHear(dir, fmt.Sprintf("%s joined PairPanicking! (Score: %d)", name, score))

	if !g.inProgress {
		g.setAndBroadcast(dir, g.restartToken, messages.Attrs{Energy: messages.Int(1)})
	}
}

// OnAgentLeave drops score tracking; a mid-game departure that leaves no
// active agent ends the game without a winner.
func (g *PairPanicking) OnAgentLeave(p world.Peer, agentID string, dir world.Directory) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.scores, agentID)
	g.broadcastHear(dir, fmt.Sprintf("%s left PairPanicking.", g.agentName(agentID)))

	if g.inProgress && !g.anyActiveLocked() {
		g.gameOverLocked(dir, false)
	}
}

// OnClick routes control tokens and grid cells.
func (g *PairPanicking) OnClick(p world.Peer, agentID, tokenID string, dir world.Directory) {
	switch tokenID {
	case g.homeToken:
		// Transfer re-enters this plugin via OnAgentLeave; must not hold mu.
		g.ctrl.MoveAgentToMatrix(agentID, g.ctrl.HomeMatrixID())
		return
	case g.helpToken:
		g.sendHelp(p, agentID)
		return
	case g.restartToken:
		g.handleRestart(p, agentID, dir)
		return
	}
	g.handleCellClick(agentID, tokenID, dir)
}

func (g *PairPanicking) handleCellClick(agentID, tokenID string, dir world.Directory) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.cellPos[tokenID]
	if !ok {
		return
	}
	row, col := pos[0], pos[1]

	if !g.inProgress {
		return
	}
	if g.scores[agentID] <= 0 {
		return
	}
	if g.state[row][col] != cellHidden {
		return
	}

	// A third click pre-empts the pending pair's timer and resolves it
	// before the new reveal. Resolution can end the game.
	if len(g.showing) >= 2 {
		g.resolveLocked(dir)
		if !g.inProgress {
			return
		}
	}

	g.state[row][col] = cellShowing
	g.showing = append(g.showing, [2]int{row, col})

	symbol := g.board[row][col]
	g.setAndBroadcast(dir, tokenID, messages.Attrs{
		Name:    messages.String(symbol),
		BgColor: messages.String(showingBg),
		FgColor: messages.String(showingFg),
		Image:   messages.String(g.symbolImages[symbol]),
	})

	if len(g.showing) == 2 {
		g.trigger = agentID
		g.startTimerLocked(dir)
	}
}

// startTimerLocked arms the resolution timer for the currently showing
// pair. Caller holds mu.
func (g *PairPanicking) startTimerLocked(dir world.Directory) {
	g.timerGen++
	gen := g.timerGen
	g.timer = time.AfterFunc(g.resolveAfter, func() {
		g.timerFired(gen, dir)
	})
}

// timerFired is the natural-expiry path. The generation check ensures a
// pair is resolved at most once even when expiry races a forced
// pre-emption or a reset.
func (g *PairPanicking) timerFired(gen uint64, dir world.Directory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.timerGen {
		return // cancelled
	}
	g.resolveLocked(dir)
}

// resolveLocked compares the two showing cells and applies match or
// mismatch effects. Postcondition: showing is empty and no timer is
// pending. Caller holds mu.
func (g *PairPanicking) resolveLocked(dir world.Directory) {
	g.stopTimerLocked()

	if len(g.showing) < 2 {
		return
	}
	a, b := g.showing[0], g.showing[1]
	g.showing = nil

	if g.board[a[0]][a[1]] == g.board[b[0]][b[1]] {
		g.resolveMatchLocked(a, b, dir)
	} else {
		g.resolveMismatchLocked(a, b, dir)
	}
	g.trigger = ""
}

func (g *PairPanicking) resolveMatchLocked(a, b [2]int, dir world.Directory) {
	for _, pos := range [][2]int{a, b} {
		g.state[pos[0]][pos[1]] = cellSolved
		g.solvedN++
		g.setAndBroadcast(dir, g.cells[pos[0]][pos[1]], messages.Attrs{
			Name:    messages.String(""),
			BgColor: messages.String(solvedBg),
			FgColor: messages.String(solvedFg),
			Energy:  messages.Int(0),
			Image:   messages.String(""),
		})
	}

	// +2 to every tracked agent, +4 extra for the trigger.
	for _, agentID := range g.trackedLocked() {
		delta := 2
		if agentID == g.trigger {
			delta += 4
		}
		g.scores[agentID] += delta
		g.setAndBroadcast(dir, agentID, messages.Attrs{Energy: messages.Int(g.scores[agentID])})
	}

	g.broadcastHear(dir, fmt.Sprintf("%s found a match!", g.agentName(g.trigger)))
	g.record(journal.Event{Kind: "match", Agent: g.trigger, Detail: g.board[a[0]][a[1]]})

	if g.solvedN >= totalCells {
		g.gameOverLocked(dir, true)
	}
}

func (g *PairPanicking) resolveMismatchLocked(a, b [2]int, dir world.Directory) {
	for _, pos := range [][2]int{a, b} {
		g.state[pos[0]][pos[1]] = cellHidden
		g.setAndBroadcast(dir, g.cells[pos[0]][pos[1]], messages.Attrs{
			Name:    messages.String(hiddenName),
			BgColor: messages.String(hiddenBg),
			FgColor: messages.String(hiddenFg),
			Image:   messages.String(""),
		})
	}

	// -1 to every agent still in the game, -1 extra for the trigger.
	var eliminated []string
	for _, agentID := range g.trackedLocked() {
		if g.scores[agentID] <= 0 {
			continue
		}
		penalty := 1
		if agentID == g.trigger {
			penalty++
		}
		g.scores[agentID] -= penalty
		g.setAndBroadcast(dir, agentID, messages.Attrs{Energy: messages.Int(g.scores[agentID])})
		if g.scores[agentID] <= 0 {
			eliminated = append(eliminated, agentID)
		}
	}

	g.record(journal.Event{Kind: "mismatch", Agent: g.trigger})
	for _, agentID := range eliminated {
		g.broadcastHear(dir, fmt.Sprintf("%s has been eliminated!", g.agentName(agentID)))
		g.record(journal.Event{Kind: "eliminated", Agent: agentID})
	}

	if g.inProgress && !g.anyActiveLocked() {
		g.gameOverLocked(dir, false)
	}
}

// gameOverLocked ends the current game. With a winner, the highest score
// takes it (ties broken by lowest agent sequence number); without one, the
// remaining hidden cells are revealed face-up for inspection. Caller
// holds mu.
func (g *PairPanicking) gameOverLocked(dir world.Directory, hasWinner bool) {
	g.inProgress = false

	if hasWinner {
		winner := ""
		best := 0
		for _, agentID := range g.trackedLocked() {
			if winner == "" || g.scores[agentID] > best {
				winner = agentID
				best = g.scores[agentID]
			}
		}
		if winner != "" {
			g.broadcastHear(dir, fmt.Sprintf("Game Over! %s wins with %d points!", g.agentName(winner), best))
		} else {
			g.broadcastHear(dir, "Game Over!")
		}
		g.record(journal.Event{Kind: "game-over", Agent: winner})
	} else {
		g.broadcastHear(dir, "Game Over! No active players remain.")
		g.revealAllLocked(dir)
		g.record(journal.Event{Kind: "game-over"})
	}

	g.setAndBroadcast(dir, g.restartToken, messages.Attrs{Energy: messages.Int(1)})
}

// revealAllLocked turns the remaining hidden cells face-up. Display only:
// the cells stay non-clickable because no game is in progress.
func (g *PairPanicking) revealAllLocked(dir world.Directory) {
	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			if g.state[row][col] != cellHidden {
				continue
			}
			symbol := g.board[row][col]
			g.setAndBroadcast(dir, g.cells[row][col], messages.Attrs{
				Name:  messages.String(symbol),
				Image: messages.String(g.symbolImages[symbol]),
			})
		}
	}
}

func (g *PairPanicking) sendHelp(p world.Peer, agentID string) {
	help := "PairPanicking: A multiplayer memory game! " +
		"Click hidden tiles (???) to reveal symbols. " +
		"Match pairs to score points! " +
		"Match: +2 all players, +4 bonus for you. " +
		"Mismatch: -1 all active players, -1 extra for you. " +
		"Game ends when all tiles are matched or all players are eliminated. " +
		"Good luck!"
	if err := p.SendHear(g.matrixID, agentID, help); err != nil {
		log.Printf("pairpanicking: help to %s failed: %v", agentID, err)
	}
}

func (g *PairPanicking) handleRestart(p world.Peer, agentID string, dir world.Directory) {
	g.mu.Lock()
	if g.inProgress {
		g.mu.Unlock()
		if err := p.SendHear(g.matrixID, agentID, "A game is already in progress!"); err != nil {
			log.Printf("pairpanicking: notice to %s failed: %v", agentID, err)
		}
		return
	}
	defer g.mu.Unlock()

	// Restart penalty, then everyone resets to the starting score below.
	if _, ok := g.scores[agentID]; ok {
		g.scores[agentID]--
		g.setAndBroadcast(dir, agentID, messages.Attrs{Energy: messages.Int(g.scores[agentID])})
	}

	g.broadcastHear(dir, fmt.Sprintf("%s started a new game!", g.agentName(agentID)))
	g.record(journal.Event{Kind: "restart", Agent: agentID})
	g.resetLocked(dir)
}

// resetLocked deals a fresh board, resets every tracked score, and disables
// the restart control until the game ends again. Caller holds mu.
func (g *PairPanicking) resetLocked(dir world.Directory) {
	g.dealLocked()

	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			g.setAndBroadcast(dir, g.cells[row][col], messages.Attrs{
				Name:    messages.String(hiddenName),
				BgColor: messages.String(hiddenBg),
				FgColor: messages.String(hiddenFg),
				Energy:  messages.Int(1),
				Image:   messages.String(""),
			})
		}
	}

	for _, agentID := range g.trackedLocked() {
		g.scores[agentID] = startScore
		g.setAndBroadcast(dir, agentID, messages.Attrs{Energy: messages.Int(startScore)})
	}

	g.setAndBroadcast(dir, g.restartToken, messages.Attrs{Energy: messages.Int(-1)})
}

// trackedLocked returns the tracked agent ids ordered by sequence number,
// so score updates and the winner scan are deterministic. Caller holds mu.
func (g *PairPanicking) trackedLocked() []string {
	ids := make([]string, 0, len(g.scores))
	for agentID := range g.scores {
		ids = append(ids, agentID)
	}
	sort.Slice(ids, func(i, j int) bool {
		_, a, _ := messages.ParseObjID(ids[i])
		_, b, _ := messages.ParseObjID(ids[j])
		return a < b
	})
	return ids
}

// anyActiveLocked reports whether any tracked agent still has a positive
// score. Caller holds mu.
func (g *PairPanicking) anyActiveLocked() bool {
	for _, score := range g.scores {
		if score > 0 {
			return true
		}
	}
	return false
}

func (g *PairPanicking) agentName(agentID string) string {
	if agent, ok := g.w.Get(agentID); ok && agent.Name != "" {
		return agent.Name
	}
	return agentID
}

// setAndBroadcast applies an attribute delta through the world and sends
// the same delta to every current occupant, so the world's truth and the
// wire stay consistent. Per-peer failures are logged and skipped.
func (g *PairPanicking) setAndBroadcast(dir world.Directory, objid string, attrs messages.Attrs) {
	g.w.Apply(objid, attrs)
	for _, agent := range g.w.AgentsIn(g.matrixID) {
		peer, ok := dir.Peer(agent.ObjID)
		if !ok {
			continue
		}
		if err := peer.SendSet(objid, attrs); err != nil {
			log.Printf("pairpanicking: set %s to %s failed: %v", objid, agent.ObjID, err)
		}
	}
}

// record appends a game event to the journal, if one is configured.
func (g *PairPanicking) record(ev journal.Event) {
	ev.Matrix = g.matrixID
	if err := g.rec.Record(ev); err != nil {
		log.Printf("pairpanicking: journal: %v", err)
	}
}

// broadcastHear sends chat from the matrix to every current occupant.
func (g *PairPanicking) broadcastHear(dir world.Directory, text string) {
	for _, agent := range g.w.AgentsIn(g.matrixID) {
		peer, ok := dir.Peer(agent.ObjID)
		if !ok {
			continue
		}
		if err := peer.SendHear(g.matrixID, agent.ObjID, text); err != nil {
			log.Printf("pairpanicking: hear to %s failed: %v", agent.ObjID, err)
		}
	}
}
