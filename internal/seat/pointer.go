package seat

import (
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
)

// PointerGrabHandler receives pointer events while a grab is active.
type PointerGrabHandler interface {
	Focus(g *PointerGrab)
	Motion(g *PointerGrab, pos geom.GlobalPoint)
	Button(g *PointerGrab, button uint32, pressed bool)
	Axis(g *PointerGrab, axis uint32, value float64)
	Cancel(g *PointerGrab)
}

// PointerGrab is an active override of pointer delivery. It ends when End is
// called or another grab starts.
type PointerGrab struct {
	pointer *Pointer
	handler PointerGrabHandler
	ended   bool
}

func (g *PointerGrab) Pointer() *Pointer { return g.pointer }
func (g *PointerGrab) Handler() PointerGrabHandler { return g.handler }
func (g *PointerGrab) Active() bool { return !g.ended }

// End restores default delivery. It is safe to call more than once.
func (g *PointerGrab) End() {
	if g.ended {
		return
	}
	g.ended = true
	p := g.pointer
	if p.grab == g {
		p.grab = nil
		p.Repick()
	}
}

// Pointer is a seat's pointer device.
type Pointer struct {
	seat *Seat
	pos  geom.GlobalPoint

	focus       *scene.View
	focusPoint  geom.SurfacePoint
	focusSerial uint32
	focusSub    *signal.Subscription[*scene.View]

	grab        *PointerGrab
	buttonCount int
	grabButton  uint32
	grabSerial  uint32
	grabPos     geom.GlobalPoint

	FocusChanged signal.Signal[*Pointer]
	Destroyed    signal.Signal[*Pointer]
}

func newPointer(s *Seat) *Pointer {
	return &Pointer{seat: s}
}

func (p *Pointer) Seat() *Seat { return p.seat }
func (p *Pointer) Position() geom.GlobalPoint { return p.pos }
func (p *Pointer) Focus() *scene.View { return p.focus }
func (p *Pointer) FocusPoint() geom.SurfacePoint { return p.focusPoint }
func (p *Pointer) ButtonCount() int { return p.buttonCount }
func (p *Pointer) GrabButton() uint32 { return p.grabButton }
func (p *Pointer) GrabSerial() uint32 { return p.grabSerial }
func (p *Pointer) GrabPosition() geom.GlobalPoint { return p.grabPos }

// Grab returns the active grab or nil.
func (p *Pointer) Grab() *PointerGrab { return p.grab }

// StartGrab installs h, cancelling any grab already running.
func (p *Pointer) StartGrab(h PointerGrabHandler) *PointerGrab {
	p.CancelGrab()
	g := &PointerGrab{pointer: p, handler: h}
	p.grab = g
	h.Focus(g)
	return g
}

// CancelGrab aborts the active grab, if any.
func (p *Pointer) CancelGrab() {
	g := p.grab
	if g == nil {
		return
	}
	g.handler.Cancel(g)
	g.End()
}

// clamp keeps the pointer on an output.
func (p *Pointer) clamp(pos geom.GlobalPoint) geom.GlobalPoint {
	c := p.seat.c
	if len(c.Outputs()) == 0 || c.OutputAt(pos.X, pos.Y) != nil {
		return pos
	}
	o := c.OutputAt(p.pos.X, p.pos.Y)
	if o == nil {
		o = c.DefaultOutput()
	}
	a := o.Area()
	pos.X = max(float64(a.X), min(pos.X, float64(a.X2()-1)))
	pos.Y = max(float64(a.Y), min(pos.Y, float64(a.Y2()-1)))
	return pos
}

// MoveTo is absolute pointer motion.
func (p *Pointer) MoveTo(pos geom.GlobalPoint) {
	p.seat.activity()
	p.pos = p.clamp(pos)
	if p.grab != nil {
		p.grab.handler.Motion(p.grab, p.pos)
		return
	}
	p.Repick()
	p.sendMotion()
}

// MoveBy is relative pointer motion.
func (p *Pointer) MoveBy(dx, dy float64) {
	p.MoveTo(geom.GlobalPoint{X: p.pos.X + dx, Y: p.pos.Y + dy})
}

// SetPosition warps the pointer without delivering motion, as grabs do.
func (p *Pointer) SetPosition(pos geom.GlobalPoint) {
	p.pos = p.clamp(pos)
}

// Button is a button press or release.
func (p *Pointer) Button(button uint32, pressed bool) {
	p.seat.activity()
	if pressed {
		p.buttonCount++
		if p.buttonCount == 1 {
			p.grabButton = button
			p.grabSerial = p.seat.m.NextSerial()
			p.grabPos = p.pos
		}
	} else if p.buttonCount > 0 {
		p.buttonCount--
	}
	if p.grab == nil && pressed {
		p.seat.m.Bindings.runButton(p, button, p.seat.Modifiers())
	}
	if p.grab != nil {
		p.grab.handler.Button(p.grab, button, pressed)
		return
	}
	p.SendButton(button, pressed)
	if !pressed && p.buttonCount == 0 {
		p.Repick()
	}
}

// Axis is a scroll event. Matching axis bindings consume it.
func (p *Pointer) Axis(axis uint32, value float64) {
	p.seat.activity()
	if p.grab == nil && p.seat.m.Bindings.runAxis(p, axis, value, p.seat.Modifiers()) {
		return
	}
	if p.grab != nil {
		p.grab.handler.Axis(p.grab, axis, value)
		return
	}
	p.SendAxis(axis, value)
}

// Repick moves focus to the view under the pointer. Focus stays put while
// buttons are held.
func (p *Pointer) Repick() {
	if p.buttonCount > 0 {
		return
	}
	v, local := p.seat.c.PickView(p.pos)
	p.SetFocus(v, local)
}

// SetFocus sends leave and enter as needed.
func (p *Pointer) SetFocus(v *scene.View, local geom.SurfacePoint) {
	if v == p.focus {
		p.focusPoint = local
		return
	}
	if p.focus != nil {
		client := p.focus.Surface().Client()
		client.Send(protocol.PointerLeave{Surface: p.focus.Surface().Ref32(), Serial: p.seat.m.NextSerial()})
	}
	if p.focusSub != nil {
		p.focusSub.Cancel()
		p.focusSub = nil
	}
	p.focus = v
	p.focusPoint = local
	if v != nil {
		p.focusSerial = p.seat.m.NextSerial()
		v.Surface().Client().Send(protocol.PointerEnter{
			Surface: v.Surface().Ref32(), X: local.X, Y: local.Y, Serial: p.focusSerial,
		})
		p.focusSub = v.Destroyed.Subscribe(func(*scene.View) { p.ClearFocus() })
	}
	p.FocusChanged.Emit(p)
}

// ClearFocus drops pointer focus.
func (p *Pointer) ClearFocus() {
	p.SetFocus(nil, geom.SurfacePoint{})
}

func (p *Pointer) sendMotion() {
	if p.focus == nil {
		return
	}
	p.focusPoint = p.focus.FromGlobal(p.pos)
	p.focus.Surface().Client().Send(protocol.PointerMotion{X: p.focusPoint.X, Y: p.focusPoint.Y})
}

// SendMotion delivers motion to the focused client at the current position.
func (p *Pointer) SendMotion() { p.sendMotion() }

// SendButton delivers a button event to the focused client.
func (p *Pointer) SendButton(button uint32, pressed bool) {
	if p.focus == nil {
		return
	}
	p.focus.Surface().Client().Send(protocol.PointerButton{
		Button: button, Pressed: pressed, Serial: p.seat.m.NextSerial(),
	})
}

// SendAxis delivers a scroll event to the focused client.
func (p *Pointer) SendAxis(axis uint32, value float64) {
	if p.focus == nil {
		return
	}
	p.focus.Surface().Client().Send(protocol.PointerAxis{Axis: axis, Value: value})
}
