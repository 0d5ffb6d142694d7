package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"

	"tilenet/server/journal"
	"tilenet/server/messages"
	"tilenet/server/world"
)

// readJournal decodes every event written under dir.
func readJournal(t *testing.T, dir string) []journal.Event {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil {
		t.Fatal(err)
	}
	var events []journal.Event
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			t.Fatal(err)
		}
		scanner := bufio.NewScanner(dec)
		for scanner.Scan() {
			var ev journal.Event
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				t.Fatalf("bad journal line %q: %v", scanner.Text(), err)
			}
			events = append(events, ev)
		}
		if err := scanner.Err(); err != nil {
			t.Fatal(err)
		}
		dec.Close()
		f.Close()
	}
	return events
}

func journalKinds(events []journal.Event) map[string]int {
	kinds := make(map[string]int)
	for _, ev := range events {
		kinds[ev.Kind]++
	}
	return kinds
}

// fakePeer records what one client would have received.
type fakePeer struct {
	id string

	mu    sync.Mutex
	sets  map[string]messages.Attrs // objid -> last delta
	hears []string
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, sets: make(map[string]messages.Attrs)}
}

func (p *fakePeer) AgentID() string { return p.id }

func (p *fakePeer) SendSet(objid string, attrs messages.Attrs) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sets[objid] = attrs
	return nil
}

func (p *fakePeer) SendHear(from, to, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hears = append(p.hears, message)
	return nil
}

func (p *fakePeer) lastSet(objid string) (messages.Attrs, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.sets[objid]
	return a, ok
}

func (p *fakePeer) heard(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.hears {
		if strings.Contains(h, substr) {
			return true
		}
	}
	return false
}

// fakeDirectory resolves agent ids to fake peers.
type fakeDirectory struct {
	mu    sync.Mutex
	peers map[string]*fakePeer
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{peers: make(map[string]*fakePeer)}
}

func (d *fakeDirectory) add(p *fakePeer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[p.id] = p
}

func (d *fakeDirectory) Peer(agentID string) (world.Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[agentID]
	if !ok {
		return nil, false
	}
	return p, true
}

// fakeController records transfer requests.
type fakeController struct {
	home  string
	moves [][2]string // agentID, matrixID
}

func (c *fakeController) HomeMatrixID() string { return c.home }

func (c *fakeController) MoveAgentToMatrix(agentID, matrixID string) {
	c.moves = append(c.moves, [2]string{agentID, matrixID})
}
