package world

import (
	"log"
	"sort"
	"sync"

	"tilenet/server/messages"
	"tilenet/server/models"
)

// World is the single source of truth for all objects, their matrix
// containment, and the per-matrix game plugins. All mutations go through
// World methods so that the object table and the reverse containment index
// stay consistent; read accessors return point-in-time copies, never live
// views.
type World struct {
	mu       sync.RWMutex
	objects  map[string]models.Object
	nextIDs  map[byte]int
	contents map[string]map[string]struct{} // matrix objid -> contained objids
	plugins  map[string]Plugin
}

func New() *World {
	return &World{
		objects: make(map[string]models.Object),
		nextIDs: map[byte]int{
			messages.KindMatrix: 1,
			messages.KindAgent:  1,
			messages.KindToken:  1,
			messages.KindKey:    1,
			messages.KindImage:  1,
		},
		contents: make(map[string]map[string]struct{}),
		plugins:  make(map[string]Plugin),
	}
}

// newObjID allocates the next id for a type. Caller holds w.mu.
func (w *World) newObjID(kind byte) string {
	num := w.nextIDs[kind]
	w.nextIDs[kind] = num + 1
	return messages.FormatObjID(kind, num)
}

func (w *World) create(kind byte, attrs messages.Attrs) models.Object {
	w.mu.Lock()
	defer w.mu.Unlock()

	obj := models.New(w.newObjID(kind))
	obj.ApplyAttrs(attrs)
	if kind == messages.KindMatrix {
		if obj.X < models.MinMatrixDim {
			obj.X = models.MinMatrixDim
		}
		if obj.Y < models.MinMatrixDim {
			obj.Y = models.MinMatrixDim
		}
		w.contents[obj.ObjID] = make(map[string]struct{})
	}
	w.objects[obj.ObjID] = obj
	return obj
}

// CreateMatrix creates a new matrix. X/Y in attrs are the grid dimensions
// and are clamped to at least 2x2.
func (w *World) CreateMatrix(attrs messages.Attrs) models.Object {
	m := w.create(messages.KindMatrix, attrs)
	log.Printf("world: created matrix %s (%s) %dx%d", m.ObjID, m.Name, m.X, m.Y)
	return m
}

// CreateAgent creates a new agent with no containment.
func (w *World) CreateAgent(attrs messages.Attrs) models.Object {
	a := w.create(messages.KindAgent, attrs)
	log.Printf("world: created agent %s (%s)", a.ObjID, a.Name)
	return a
}

// CreateToken creates a new token with no containment.
func (w *World) CreateToken(attrs messages.Attrs) models.Object {
	return w.create(messages.KindToken, attrs)
}

// CreateKey creates a new key binding object.
func (w *World) CreateKey(attrs messages.Attrs) models.Object {
	return w.create(messages.KindKey, attrs)
}

// CreateImage creates a new image object. Text carries the hex-encoded
// payload; X/Y record the pixel dimensions.
func (w *World) CreateImage(attrs messages.Attrs) models.Object {
	img := w.create(messages.KindImage, attrs)
	log.Printf("world: created image %s (%dx%d, %d hex chars)", img.ObjID, img.X, img.Y, len(img.Text))
	return img
}

// Get returns a copy of an object.
func (w *World) Get(objid string) (models.Object, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.objects[objid]
	return obj, ok
}

// Apply updates an object's attributes. This is the single mutation path
// for attribute state; it returns false if the object does not exist.
func (w *World) Apply(objid string, attrs messages.Attrs) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.objects[objid]
	if !ok {
		return false
	}
	obj.ApplyAttrs(attrs)
	w.objects[objid] = obj
	return true
}

// PlaceInMatrix places an object into a matrix, removing it from its
// previous matrix first. Agents, tokens and keys get their container
// back-reference updated; images are only recorded in the matrix contents
// (they carry no containment of their own). Placing into the matrix an
// object already occupies is a no-op beyond the containment write. An
// unknown matrix id leaves all state untouched; callers are trusted
// internal collaborators.
func (w *World) PlaceInMatrix(objid, matrixID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	obj, ok := w.objects[objid]
	if !ok || obj.Kind() == messages.KindMatrix {
		return
	}
	members, ok := w.contents[matrixID]
	if !ok {
		return
	}
	if obj.Containable() && obj.ContainerMatrix != "" {
		if old, ok := w.contents[obj.ContainerMatrix]; ok {
			delete(old, objid)
		}
	}
	members[objid] = struct{}{}
	if obj.Containable() {
		obj.ContainerMatrix = matrixID
		w.objects[objid] = obj
	}
}

// RemoveFromMatrix clears an object's containment and returns the matrix it
// was in, or false if it was not placed anywhere.
func (w *World) RemoveFromMatrix(objid string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	obj, ok := w.objects[objid]
	if !ok || obj.ContainerMatrix == "" {
		return "", false
	}
	old := obj.ContainerMatrix
	if members, ok := w.contents[old]; ok {
		delete(members, objid)
	}
	obj.ContainerMatrix = ""
	w.objects[objid] = obj
	return old, true
}

// inMatrix returns copies of the contained objects of one kind, ordered by
// sequence number. Caller must not hold w.mu.
func (w *World) inMatrix(matrixID string, kind byte) []models.Object {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []models.Object
	for objid := range w.contents[matrixID] {
		if objid[0] != kind {
			continue
		}
		if obj, ok := w.objects[objid]; ok {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		_, a, _ := messages.ParseObjID(out[i].ObjID)
		_, b, _ := messages.ParseObjID(out[j].ObjID)
		return a < b
	})
	return out
}

// AgentsIn returns a snapshot of the agents currently in a matrix.
func (w *World) AgentsIn(matrixID string) []models.Object {
	return w.inMatrix(matrixID, messages.KindAgent)
}

// TokensIn returns a snapshot of the tokens currently in a matrix.
func (w *World) TokensIn(matrixID string) []models.Object {
	return w.inMatrix(matrixID, messages.KindToken)
}

// KeysIn returns a snapshot of the keys currently in a matrix.
func (w *World) KeysIn(matrixID string) []models.Object {
	return w.inMatrix(matrixID, messages.KindKey)
}

// ImagesIn returns a snapshot of the images placed in a matrix.
// Images have no containment back-reference of their own; they are indexed
// through the matrix contents only.
func (w *World) ImagesIn(matrixID string) []models.Object {
	return w.inMatrix(matrixID, messages.KindImage)
}

// RegisterPlugin binds a plugin to a matrix. At most one plugin per matrix;
// a later registration overwrites the previous one silently.
func (w *World) RegisterPlugin(matrixID string, p Plugin) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.plugins[matrixID] = p
}

// PluginFor returns the plugin bound to a matrix, if any.
func (w *World) PluginFor(matrixID string) (Plugin, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.plugins[matrixID]
	return p, ok
}
