package models

import "tilenet/server/messages"

// Attribute defaults shared by every object variant.
const (
	DefaultBgColor = "ff333333"
	DefaultFgColor = "ffffffff"
	DefaultEnergy  = 1
)

// Minimum matrix grid dimensions. A room is always at least 2x2.
const MinMatrixDim = 2

// Object is one TileNet world entity. The five variants (matrix, agent,
// token, key, image) share this attribute schema; the variant is encoded
// in the objid's type character. The meaning of X/Y is variant-dependent:
// grid dimensions for a matrix, grid coordinates for agent/token/key,
// pixel dimensions for an image.
type Object struct {
	ObjID   string `json:"objid"`
	Name    string `json:"name"`
	Text    string `json:"text"`
	Energy  int    `json:"energy"`
	BgColor string `json:"bgcolor"`
	FgColor string `json:"fgcolor"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Image   string `json:"image"`

	// ContainerMatrix is the objid of the matrix currently holding this
	// object. Only agents, tokens and keys are containable; empty means
	// not placed anywhere.
	ContainerMatrix string `json:"container_matrix,omitempty"`
}

// New returns an object with the default attribute values.
func New(objid string) Object {
	return Object{
		ObjID:   objid,
		Energy:  DefaultEnergy,
		BgColor: DefaultBgColor,
		FgColor: DefaultFgColor,
	}
}

// Kind returns the object's type character ('m', 'a', 't', 'k' or 'i').
func (o Object) Kind() byte {
	return messages.KindOf(o.ObjID)
}

// Containable reports whether this variant can be placed in a matrix.
func (o Object) Containable() bool {
	switch o.Kind() {
	case messages.KindAgent, messages.KindToken, messages.KindKey:
		return true
	}
	return false
}

// FullAttrs returns every attribute, including zero values, for a full
// object definition on the wire.
func (o Object) FullAttrs() messages.Attrs {
	return messages.Attrs{
		Name:    messages.String(o.Name),
		Text:    messages.String(o.Text),
		Energy:  messages.Int(o.Energy),
		BgColor: messages.String(o.BgColor),
		FgColor: messages.String(o.FgColor),
		X:       messages.Int(o.X),
		Y:       messages.Int(o.Y),
		Image:   messages.String(o.Image),
	}
}

// ApplyAttrs copies the non-nil fields of a onto the object.
func (o *Object) ApplyAttrs(a messages.Attrs) {
	if a.Name != nil {
		o.Name = *a.Name
	}
	if a.Text != nil {
		o.Text = *a.Text
	}
	if a.Energy != nil {
		o.Energy = *a.Energy
	}
	if a.BgColor != nil {
		o.BgColor = *a.BgColor
	}
	if a.FgColor != nil {
		o.FgColor = *a.FgColor
	}
	if a.X != nil {
		o.X = *a.X
	}
	if a.Y != nil {
		o.Y = *a.Y
	}
	if a.Image != nil {
		o.Image = *a.Image
	}
}
