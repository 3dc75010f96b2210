package scene

import (
	"fmt"
	"slices"
)

// LayerPosition is a stacking band. Higher values stack above lower ones.
type LayerPosition uint32

const (
	LayerPositionNone       LayerPosition = 0x00000000
	LayerPositionHidden     LayerPosition = 0x00000001
	LayerPositionBackground LayerPosition = 0x00000002
	LayerPositionBottomUI   LayerPosition = 0x30000000
	LayerPositionNormal     LayerPosition = 0x50000000
	LayerPositionUI         LayerPosition = 0x80000000
	LayerPositionFullscreen LayerPosition = 0xb0000000
	LayerPositionTopUI      LayerPosition = 0xe0000000
	LayerPositionLock       LayerPosition = 0xffff0000
	LayerPositionCursor     LayerPosition = 0xfffffffe
	LayerPositionFade       LayerPosition = 0xffffffff
)

func (p LayerPosition) String() string {
	switch p {
	case LayerPositionNone:
		return "unset"
	case LayerPositionHidden:
		return "hidden"
	case LayerPositionBackground:
		return "background"
	case LayerPositionBottomUI:
		return "bottom-ui"
	case LayerPositionNormal:
		return "normal"
	case LayerPositionUI:
		return "ui"
	case LayerPositionFullscreen:
		return "fullscreen"
	case LayerPositionTopUI:
		return "top-ui"
	case LayerPositionLock:
		return "lock"
	case LayerPositionCursor:
		return "cursor"
	case LayerPositionFade:
		return "fade"
	}
	return fmt.Sprintf("%#08x", uint32(p))
}

// Layer is an ordered stack of views. Index 0 is the top.
type Layer struct {
	c        *Compositor
	name     string
	position LayerPosition
	views    []*View
}

// NewLayer creates a layer that is not yet part of the stacking order.
func (c *Compositor) NewLayer(name string) *Layer {
	return &Layer{c: c, name: name}
}

func (l *Layer) Name() string { return l.name }
func (l *Layer) Position() LayerPosition { return l.position }
func (l *Layer) Compositor() *Compositor { return l.c }
func (l *Layer) Len() int { return len(l.views) }
func (l *Layer) Views() []*View { return slices.Clone(l.views) }
func (l *Layer) Contains(v *View) bool { return v != nil && v.layer == l }
func (l *Layer) IndexOf(v *View) int { return slices.Index(l.views, v) }

// Drawn reports whether views in this layer are painted and hit-tested.
func (l *Layer) Drawn() bool { return l.position > LayerPositionHidden }

// Top returns the topmost view or nil.
func (l *Layer) Top() *View {
	if len(l.views) == 0 {
		return nil
	}
	return l.views[0]
}

// SetPosition places the layer in the compositor's stacking order. A layer
// joining a band that already has layers goes above them.
func (l *Layer) SetPosition(p LayerPosition) {
	c := l.c
	if i := slices.Index(c.layers, l); i >= 0 {
		c.layers = slices.Delete(c.layers, i, i+1)
	}
	l.position = p
	if p != LayerPositionNone {
		at := len(c.layers)
		for i, other := range c.layers {
			if other.position <= p {
				at = i
				break
			}
		}
		c.layers = slices.Insert(c.layers, at, l)
	}
	c.DamageAll()
}

// UnsetPosition removes the layer from the stacking order. Its views stay
// linked but are no longer drawn.
func (l *Layer) UnsetPosition() {
	l.SetPosition(LayerPositionNone)
}

func (l *Layer) remove(v *View) {
	if i := slices.Index(l.views, v); i >= 0 {
		l.views = slices.Delete(l.views, i, i+1)
	}
}

func (l *Layer) insert(v *View, at int) {
	at = max(0, min(at, len(l.views)))
	l.views = slices.Insert(l.views, at, v)
}

func (l *Layer) String() string {
	return fmt.Sprintf("%s[%s]", l.name, l.position)
}
