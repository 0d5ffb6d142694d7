package world

import (
	"testing"

	"tilenet/server/messages"
	"tilenet/server/models"
)

func TestCreateMatrixClampsDimensions(t *testing.T) {
	w := New()
	m := w.CreateMatrix(messages.Attrs{X: messages.Int(0), Y: messages.Int(1)})
	if m.X != models.MinMatrixDim || m.Y != models.MinMatrixDim {
		t.Errorf("dims %dx%d, want %dx%d", m.X, m.Y, models.MinMatrixDim, models.MinMatrixDim)
	}

	big := w.CreateMatrix(messages.Attrs{X: messages.Int(9), Y: messages.Int(8)})
	if big.X != 9 || big.Y != 8 {
		t.Errorf("dims %dx%d, want 9x8", big.X, big.Y)
	}
}

func TestObjIDSequences(t *testing.T) {
	w := New()
	if m := w.CreateMatrix(messages.Attrs{}); m.ObjID != "m1" {
		t.Errorf("first matrix = %s", m.ObjID)
	}
	if a := w.CreateAgent(messages.Attrs{}); a.ObjID != "a1" {
		t.Errorf("first agent = %s", a.ObjID)
	}
	if a := w.CreateAgent(messages.Attrs{}); a.ObjID != "a2" {
		t.Errorf("second agent = %s", a.ObjID)
	}
	// Sequences are per kind, not global.
	if tok := w.CreateToken(messages.Attrs{}); tok.ObjID != "t1" {
		t.Errorf("first token = %s", tok.ObjID)
	}
}

func TestDefaults(t *testing.T) {
	w := New()
	a := w.CreateAgent(messages.Attrs{Name: messages.String("zork")})
	if a.Energy != models.DefaultEnergy {
		t.Errorf("energy = %d", a.Energy)
	}
	if a.BgColor != models.DefaultBgColor || a.FgColor != models.DefaultFgColor {
		t.Errorf("colors = %s/%s", a.BgColor, a.FgColor)
	}
	if a.ContainerMatrix != "" {
		t.Errorf("new agent already contained in %s", a.ContainerMatrix)
	}
}

func TestPlaceInMatrixSingleContainment(t *testing.T) {
	w := New()
	m1 := w.CreateMatrix(messages.Attrs{})
	m2 := w.CreateMatrix(messages.Attrs{})
	a := w.CreateAgent(messages.Attrs{})

	w.PlaceInMatrix(a.ObjID, m1.ObjID)
	got, _ := w.Get(a.ObjID)
	if got.ContainerMatrix != m1.ObjID {
		t.Fatalf("container = %q, want %s", got.ContainerMatrix, m1.ObjID)
	}

	// Moving removes from the old matrix first.
	w.PlaceInMatrix(a.ObjID, m2.ObjID)
	if agents := w.AgentsIn(m1.ObjID); len(agents) != 0 {
		t.Errorf("agent still listed in old matrix: %v", agents)
	}
	if agents := w.AgentsIn(m2.ObjID); len(agents) != 1 || agents[0].ObjID != a.ObjID {
		t.Errorf("agent missing from new matrix: %v", agents)
	}
}

func TestPlaceInMatrixEdgeCases(t *testing.T) {
	w := New()
	m := w.CreateMatrix(messages.Attrs{})
	other := w.CreateMatrix(messages.Attrs{})
	a := w.CreateAgent(messages.Attrs{})

	// Matrices cannot be contained.
	w.PlaceInMatrix(other.ObjID, m.ObjID)
	if got, _ := w.Get(other.ObjID); got.ContainerMatrix != "" {
		t.Errorf("matrix got contained: %q", got.ContainerMatrix)
	}

	// An unknown target matrix leaves the agent where it was.
	w.PlaceInMatrix(a.ObjID, m.ObjID)
	w.PlaceInMatrix(a.ObjID, "m999")
	if got, _ := w.Get(a.ObjID); got.ContainerMatrix != m.ObjID {
		t.Errorf("container = %q after bad place, want %s", got.ContainerMatrix, m.ObjID)
	}
	if agents := w.AgentsIn(m.ObjID); len(agents) != 1 {
		t.Errorf("agent lost from matrix index: %v", agents)
	}

	// Re-placing into the same matrix is idempotent.
	w.PlaceInMatrix(a.ObjID, m.ObjID)
	w.PlaceInMatrix(a.ObjID, m.ObjID)
	if agents := w.AgentsIn(m.ObjID); len(agents) != 1 {
		t.Errorf("idempotent place broke index: %v", agents)
	}
}

func TestImagesIndexedWithoutBackRef(t *testing.T) {
	w := New()
	m := w.CreateMatrix(messages.Attrs{})
	img := w.CreateImage(messages.Attrs{Text: messages.String("cafe")})

	w.PlaceInMatrix(img.ObjID, m.ObjID)
	if imgs := w.ImagesIn(m.ObjID); len(imgs) != 1 || imgs[0].ObjID != img.ObjID {
		t.Fatalf("images in matrix: %v", imgs)
	}
	if got, _ := w.Get(img.ObjID); got.ContainerMatrix != "" {
		t.Errorf("image has container back-ref %q", got.ContainerMatrix)
	}
}

func TestRemoveFromMatrix(t *testing.T) {
	w := New()
	m := w.CreateMatrix(messages.Attrs{})
	a := w.CreateAgent(messages.Attrs{})
	w.PlaceInMatrix(a.ObjID, m.ObjID)

	old, ok := w.RemoveFromMatrix(a.ObjID)
	if !ok || old != m.ObjID {
		t.Fatalf("RemoveFromMatrix = %q, %v", old, ok)
	}
	if agents := w.AgentsIn(m.ObjID); len(agents) != 0 {
		t.Errorf("agent still indexed: %v", agents)
	}
	if _, ok := w.RemoveFromMatrix(a.ObjID); ok {
		t.Error("second remove reported success")
	}
}

func TestAccessorsFilterAndSort(t *testing.T) {
	w := New()
	m := w.CreateMatrix(messages.Attrs{})

	// Create out of order so sorting is observable.
	tokens := []string{
		w.CreateToken(messages.Attrs{}).ObjID, // t1
		w.CreateToken(messages.Attrs{}).ObjID, // t2
		w.CreateToken(messages.Attrs{}).ObjID, // t3
	}
	a := w.CreateAgent(messages.Attrs{})
	k := w.CreateKey(messages.Attrs{})

	w.PlaceInMatrix(tokens[2], m.ObjID)
	w.PlaceInMatrix(tokens[0], m.ObjID)
	w.PlaceInMatrix(a.ObjID, m.ObjID)
	w.PlaceInMatrix(k.ObjID, m.ObjID)
	w.PlaceInMatrix(tokens[1], m.ObjID)

	got := w.TokensIn(m.ObjID)
	if len(got) != 3 {
		t.Fatalf("tokens = %v", got)
	}
	for i, want := range tokens {
		if got[i].ObjID != want {
			t.Errorf("tokens[%d] = %s, want %s", i, got[i].ObjID, want)
		}
	}
	if keys := w.KeysIn(m.ObjID); len(keys) != 1 || keys[0].ObjID != k.ObjID {
		t.Errorf("keys = %v", keys)
	}
}

func TestApplyAndCopySemantics(t *testing.T) {
	w := New()
	a := w.CreateAgent(messages.Attrs{Name: messages.String("zork")})

	if !w.Apply(a.ObjID, messages.Attrs{Energy: messages.Int(5)}) {
		t.Fatal("Apply failed")
	}
	if w.Apply("a999", messages.Attrs{Energy: messages.Int(5)}) {
		t.Error("Apply to unknown object reported success")
	}

	got, _ := w.Get(a.ObjID)
	if got.Energy != 5 || got.Name != "zork" {
		t.Errorf("after apply: %+v", got)
	}

	// Mutating a returned copy must not touch world state.
	got.Energy = 99
	again, _ := w.Get(a.ObjID)
	if again.Energy != 5 {
		t.Errorf("Get returned a live view, energy = %d", again.Energy)
	}
}

type pluginStub struct {
	NopHooks
	name string
}

func (pluginStub) Initialize(Directory) error              { return nil }
func (pluginStub) OnAgentEnter(Peer, string, Directory)    {}
func (pluginStub) OnAgentLeave(Peer, string, Directory)    {}
func (pluginStub) OnClick(Peer, string, string, Directory) {}

func TestRegisterPluginOverwrites(t *testing.T) {
	w := New()
	m := w.CreateMatrix(messages.Attrs{})

	first := pluginStub{name: "first"}
	second := pluginStub{name: "second"}
	w.RegisterPlugin(m.ObjID, first)
	w.RegisterPlugin(m.ObjID, second)

	p, ok := w.PluginFor(m.ObjID)
	if !ok {
		t.Fatal("no plugin registered")
	}
	if p.(pluginStub).name != "second" {
		t.Errorf("plugin = %q, want second", p.(pluginStub).name)
	}
	if _, ok := w.PluginFor("m999"); ok {
		t.Error("plugin found for unknown matrix")
	}
}
