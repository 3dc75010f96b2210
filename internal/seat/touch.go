package seat

import (
	"maps"
	"slices"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
)

// TouchGrabHandler receives touch events while a grab is active.
type TouchGrabHandler interface {
	Down(g *TouchGrab, id int32, pos geom.GlobalPoint)
	Up(g *TouchGrab, id int32)
	Motion(g *TouchGrab, id int32, pos geom.GlobalPoint)
	Cancel(g *TouchGrab)
}

type TouchGrab struct {
	touch   *Touch
	handler TouchGrabHandler
	ended   bool
}

func (g *TouchGrab) Touch() *Touch { return g.touch }
func (g *TouchGrab) Active() bool { return !g.ended }

func (g *TouchGrab) End() {
	if g.ended {
		return
	}
	g.ended = true
	if g.touch.grab == g {
		g.touch.grab = nil
	}
}

// Touch is a seat's touchscreen.
type Touch struct {
	seat *Seat

	focus    *scene.View
	focusSub *signal.Subscription[*scene.View]
	points   map[int32]geom.GlobalPoint

	grab       *TouchGrab
	grabPos    geom.GlobalPoint
	grabSerial uint32

	Destroyed signal.Signal[*Touch]
}

func newTouch(s *Seat) *Touch {
	return &Touch{seat: s, points: map[int32]geom.GlobalPoint{}}
}

func (t *Touch) Seat() *Seat { return t.seat }
func (t *Touch) Focus() *scene.View { return t.focus }
func (t *Touch) NumPoints() int { return len(t.points) }
func (t *Touch) GrabPosition() geom.GlobalPoint { return t.grabPos }
func (t *Touch) GrabSerial() uint32 { return t.grabSerial }
func (t *Touch) Grab() *TouchGrab { return t.grab }

// IDs returns the active touch point ids in ascending order.
func (t *Touch) IDs() []int32 { return slices.Sorted(maps.Keys(t.points)) }

func (t *Touch) StartGrab(h TouchGrabHandler) *TouchGrab {
	t.CancelGrab()
	g := &TouchGrab{touch: t, handler: h}
	t.grab = g
	return g
}

func (t *Touch) CancelGrab() {
	g := t.grab
	if g == nil {
		return
	}
	g.handler.Cancel(g)
	g.End()
}

// Down starts a touch point. The first point picks the focus view and runs
// touch bindings.
func (t *Touch) Down(id int32, pos geom.GlobalPoint) {
	t.seat.activity()
	t.points[id] = pos
	if len(t.points) == 1 {
		t.grabPos = pos
		t.grabSerial = t.seat.m.NextSerial()
		if t.grab == nil {
			v, _ := t.seat.c.PickView(pos)
			t.setFocus(v)
			t.seat.m.Bindings.runTouch(t, t.seat.Modifiers())
		}
	}
	if t.grab != nil {
		t.grab.handler.Down(t.grab, id, pos)
		return
	}
	if t.focus != nil {
		local := t.focus.FromGlobal(pos)
		t.focus.Surface().Client().Send(protocol.TouchDown{
			Surface: t.focus.Surface().Ref32(), ID: id, X: local.X, Y: local.Y,
		})
	}
}

// Up ends a touch point. Unknown ids are ignored.
func (t *Touch) Up(id int32) {
	if _, ok := t.points[id]; !ok {
		return
	}
	t.seat.activity()
	delete(t.points, id)
	if t.grab != nil {
		t.grab.handler.Up(t.grab, id)
		return
	}
	if t.focus != nil {
		t.focus.Surface().Client().Send(protocol.TouchUp{ID: id})
	}
	if len(t.points) == 0 {
		t.setFocus(nil)
	}
}

// Motion moves a touch point.
func (t *Touch) Motion(id int32, pos geom.GlobalPoint) {
	if _, ok := t.points[id]; !ok {
		return
	}
	t.seat.activity()
	t.points[id] = pos
	if t.grab != nil {
		t.grab.handler.Motion(t.grab, id, pos)
		return
	}
	if t.focus != nil {
		local := t.focus.FromGlobal(pos)
		t.focus.Surface().Client().Send(protocol.TouchMotion{ID: id, X: local.X, Y: local.Y})
	}
}

func (t *Touch) setFocus(v *scene.View) {
	if t.focusSub != nil {
		t.focusSub.Cancel()
		t.focusSub = nil
	}
	t.focus = v
	if v != nil {
		t.focusSub = v.Destroyed.Subscribe(func(*scene.View) { t.setFocus(nil) })
	}
}
