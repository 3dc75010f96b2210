package desktop

import (
	"slices"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
)

// CreatePopup is xdg_surface.get_popup. positioner is the popup rectangle
// relative to the parent's window geometry.
func (d *Desktop) CreatePopup(s *scene.Surface, parent *Surface, positioner geom.Rect) (*Surface, error) {
	if parent == nil || parent.destroyed {
		return nil, s.Client().Post(protocol.InterfaceXdgWmBase, protocol.XdgWmBaseErrorInvalidPopupParent,
			"popup needs a live parent")
	}
	ds, err := d.newSurface(s, KindPopup)
	if err != nil {
		return nil, err
	}
	ds.positioner = positioner
	ds.reparent(parent)
	return ds, nil
}

func (ds *Surface) Positioner() geom.Rect { return ds.positioner }

// PopupView returns the view showing a mapped popup.
func (ds *Surface) PopupView() *scene.View { return ds.popupView }

// anchorView is the view popups of ds are placed against.
func (ds *Surface) anchorView() *scene.View {
	if ds.kind == KindPopup {
		return ds.popupView
	}
	if len(ds.views) == 0 {
		return nil
	}
	return ds.views[0]
}

func (ds *Surface) popupCommitted() {
	s := ds.surface
	if !s.HasContent() {
		if ds.popupView != nil {
			ds.popupView.Unmap()
		}
		s.Unmap()
		return
	}
	if ds.popupView == nil {
		ds.popupView = ds.CreateView()
	}
	ds.placePopup()
	s.Map()
}

// placePopup positions the popup view from its parent and stacks it right
// above the parent view.
func (ds *Surface) placePopup() {
	parent := ds.parent
	if parent == nil || ds.popupView == nil {
		return
	}
	pv := parent.anchorView()
	if pv == nil || pv.Layer() == nil {
		return
	}
	pg := parent.Geometry()
	g := ds.Geometry()
	pos := pv.Position()
	ds.popupView.SetPosition(
		pos.X+float64(pg.X+ds.positioner.X-g.X),
		pos.Y+float64(pg.Y+ds.positioner.Y-g.Y),
	)
	l := pv.Layer()
	if ds.popupView.Layer() == l && l.IndexOf(ds.popupView) == l.IndexOf(pv)-1 {
		return
	}
	ds.popupView.MoveToLayerAt(l, l.IndexOf(pv))
}

// UpdatePopups re-places every mapped popup below ds after the shell moved
// or restacked its view.
func (ds *Surface) UpdatePopups() {
	for _, child := range ds.children {
		if child.kind != KindPopup || child.popupView == nil || !child.surface.IsMapped() {
			continue
		}
		child.placePopup()
		child.UpdatePopups()
	}
}

// Grab is xdg_popup.grab. Nested popups must be opened from the topmost
// popup of the chain.
func (ds *Surface) Grab(s *seat.Seat, serial uint32) error {
	client := ds.surface.Client()
	if ds.kind != KindPopup || ds.surface.IsMapped() {
		return client.Post(protocol.InterfaceXdgPopup, protocol.XdgPopupErrorInvalidGrab,
			"grab requested on a mapped popup")
	}
	d := ds.d
	g := d.grabs[s]
	if g == nil {
		g = d.startPopupGrab(s, ds.client)
	} else if g.client != ds.client || g.top() != ds.parent {
		return client.Post(protocol.InterfaceXdgWmBase, protocol.XdgWmBaseErrorNotTheTopmost,
			"popup parent is not the topmost grabbing popup")
	}
	g.popups = append(g.popups, ds)
	ds.popupGrab = g
	s.SetKeyboardFocus(ds.surface)
	return nil
}

// dismissFrom removes a destroyed popup and any popups above it from its
// grab chain.
func (ds *Surface) dismissFrom() {
	g := ds.popupGrab
	if g == nil || g.ended {
		return
	}
	i := slices.Index(g.popups, ds)
	if i < 0 {
		return
	}
	if i != len(g.popups)-1 {
		ds.surface.Client().Post(protocol.InterfaceXdgWmBase, protocol.XdgWmBaseErrorNotTheTopmost,
			"destroyed popup was not the topmost")
	}
	g.popups = g.popups[:i]
	if len(g.popups) == 0 {
		g.end()
		return
	}
	g.seat.SetKeyboardFocus(g.top().surface)
}

// popupGrab routes a seat's input to one client's popup chain.
type popupGrab struct {
	d      *Desktop
	seat   *seat.Seat
	client *Client
	popups []*Surface
	root   *scene.Surface

	pointer  *seat.PointerGrab
	keyboard *seat.KeyboardGrab
	ended    bool
}

func (d *Desktop) startPopupGrab(s *seat.Seat, cl *Client) *popupGrab {
	g := &popupGrab{d: d, seat: s, client: cl, root: s.KeyboardFocus()}
	d.grabs[s] = g
	if p := s.Pointer(); p != nil {
		g.pointer = p.StartGrab(popupPointer{g})
	}
	if k := s.Keyboard(); k != nil {
		g.keyboard = k.StartGrab(popupKeyboard{g})
	}
	return g
}

// BreakGrabs dismisses the popup chain grabbing s, if any.
func (d *Desktop) BreakGrabs(s *seat.Seat) {
	if g := d.grabs[s]; g != nil {
		g.dismiss()
	}
}

func (g *popupGrab) top() *Surface {
	if len(g.popups) == 0 {
		return nil
	}
	return g.popups[len(g.popups)-1]
}

// dismiss closes the whole chain, topmost first.
func (g *popupGrab) dismiss() {
	if g.ended {
		return
	}
	for i := len(g.popups) - 1; i >= 0; i-- {
		g.popups[i].client.client.Send(protocol.PopupDone{})
	}
	g.end()
}

func (g *popupGrab) end() {
	if g.ended {
		return
	}
	g.ended = true
	if g.d.grabs[g.seat] == g {
		delete(g.d.grabs, g.seat)
	}
	for _, ds := range g.popups {
		ds.popupGrab = nil
	}
	g.popups = nil
	if g.pointer != nil {
		g.pointer.End()
	}
	if g.keyboard != nil {
		g.keyboard.End()
	}
	if g.root != nil && !g.root.Released() {
		g.seat.SetKeyboardFocus(g.root)
	}
}

type popupPointer struct{ g *popupGrab }

func (h popupPointer) Focus(pg *seat.PointerGrab) {
	p := pg.Pointer()
	v, local := p.Seat().Compositor().PickView(p.Position())
	if v != nil && v.Surface().Client() == h.g.client.client {
		p.SetFocus(v, local)
		return
	}
	p.ClearFocus()
}

func (h popupPointer) Motion(pg *seat.PointerGrab, _ geom.GlobalPoint) {
	h.Focus(pg)
	pg.Pointer().SendMotion()
}

func (h popupPointer) Button(pg *seat.PointerGrab, button uint32, pressed bool) {
	p := pg.Pointer()
	if p.Focus() != nil {
		p.SendButton(button, pressed)
		return
	}
	if pressed {
		h.g.dismiss()
	}
}

func (h popupPointer) Axis(pg *seat.PointerGrab, axis uint32, value float64) {
	pg.Pointer().SendAxis(axis, value)
}

func (h popupPointer) Cancel(*seat.PointerGrab) { h.g.dismiss() }

type popupKeyboard struct{ g *popupGrab }

func (h popupKeyboard) Key(kg *seat.KeyboardGrab, key uint32, pressed bool) {
	kg.Keyboard().SendKey(key, pressed)
}

func (popupKeyboard) Modifiers(*seat.KeyboardGrab, seat.Modifier) {}

func (h popupKeyboard) Cancel(*seat.KeyboardGrab) { h.g.dismiss() }
