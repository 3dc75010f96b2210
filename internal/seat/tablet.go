package seat

import (
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
)

// TabletToolGrabHandler receives tool events while a grab is active.
type TabletToolGrabHandler interface {
	Motion(g *TabletToolGrab, pos geom.GlobalPoint)
	Down(g *TabletToolGrab)
	Up(g *TabletToolGrab)
	Button(g *TabletToolGrab, button uint32, pressed bool)
	ProximityOut(g *TabletToolGrab)
	Cancel(g *TabletToolGrab)
}

type TabletToolGrab struct {
	tool    *TabletTool
	handler TabletToolGrabHandler
	ended   bool
}

func (g *TabletToolGrab) Tool() *TabletTool { return g.tool }
func (g *TabletToolGrab) Active() bool { return !g.ended }

func (g *TabletToolGrab) End() {
	if g.ended {
		return
	}
	g.ended = true
	if g.tool.grab == g {
		g.tool.grab = nil
	}
}

// TabletTool is a stylus or similar tool on a tablet.
type TabletTool struct {
	seat *Seat
	name string

	pos         geom.GlobalPoint
	focus       *scene.View
	focusSub    *signal.Subscription[*scene.View]
	inProximity bool
	tipDown     bool

	grab       *TabletToolGrab
	grabPos    geom.GlobalPoint
	grabSerial uint32

	FocusChanged signal.Signal[*TabletTool]
	Destroyed    signal.Signal[*TabletTool]
}

func newTabletTool(s *Seat, name string) *TabletTool {
	return &TabletTool{seat: s, name: name}
}

func (t *TabletTool) Seat() *Seat { return t.seat }
func (t *TabletTool) Name() string { return t.name }
func (t *TabletTool) Position() geom.GlobalPoint { return t.pos }
func (t *TabletTool) Focus() *scene.View { return t.focus }
func (t *TabletTool) InProximity() bool { return t.inProximity }
func (t *TabletTool) TipDown() bool { return t.tipDown }
func (t *TabletTool) GrabPosition() geom.GlobalPoint { return t.grabPos }
func (t *TabletTool) GrabSerial() uint32 { return t.grabSerial }
func (t *TabletTool) Grab() *TabletToolGrab { return t.grab }

func (t *TabletTool) StartGrab(h TabletToolGrabHandler) *TabletToolGrab {
	t.CancelGrab()
	g := &TabletToolGrab{tool: t, handler: h}
	t.grab = g
	return g
}

func (t *TabletTool) CancelGrab() {
	g := t.grab
	if g == nil {
		return
	}
	g.handler.Cancel(g)
	g.End()
}

// ProximityIn brings the tool into range at pos.
func (t *TabletTool) ProximityIn(pos geom.GlobalPoint) {
	t.inProximity = true
	t.Motion(pos)
}

// ProximityOut takes the tool out of range.
func (t *TabletTool) ProximityOut() {
	t.inProximity = false
	t.tipDown = false
	if t.grab != nil {
		t.grab.handler.ProximityOut(t.grab)
		return
	}
	t.setFocus(nil)
}

func (t *TabletTool) Motion(pos geom.GlobalPoint) {
	t.seat.activity()
	t.pos = pos
	if t.grab != nil {
		t.grab.handler.Motion(t.grab, pos)
		return
	}
	if !t.tipDown {
		v, _ := t.seat.c.PickView(pos)
		t.setFocus(v)
	}
}

// Down is tip contact. Tool bindings run on contact.
func (t *TabletTool) Down() {
	t.seat.activity()
	t.tipDown = true
	t.grabPos = t.pos
	t.grabSerial = t.seat.m.NextSerial()
	if t.grab == nil {
		t.seat.m.Bindings.runTabletTool(t, BtnTouch, t.seat.Modifiers())
	}
	if t.grab != nil {
		t.grab.handler.Down(t.grab)
	}
}

func (t *TabletTool) Up() {
	t.seat.activity()
	t.tipDown = false
	if t.grab != nil {
		t.grab.handler.Up(t.grab)
	}
}

func (t *TabletTool) Button(button uint32, pressed bool) {
	t.seat.activity()
	if t.grab != nil {
		t.grab.handler.Button(t.grab, button, pressed)
	}
}

func (t *TabletTool) setFocus(v *scene.View) {
	if v == t.focus {
		return
	}
	if t.focusSub != nil {
		t.focusSub.Cancel()
		t.focusSub = nil
	}
	t.focus = v
	if v != nil {
		t.focusSub = v.Destroyed.Subscribe(func(*scene.View) { t.setFocus(nil) })
	}
	t.FocusChanged.Emit(t)
}
