package kiosk

import (
	"math"

	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
)

// grab follows its target's destruction; handlers see ss == nil after it.
type grab struct {
	ss    *Surface
	sub   *signal.Subscription[*Surface]
	delta geom.GlobalPoint
}

func (g *grab) attach(ss *Surface, from geom.GlobalPoint) {
	g.ss = ss
	g.delta = ss.view.Position().Sub(from)
	ss.grabbed = true
	g.sub = ss.Destroyed.Subscribe(func(*Surface) {
		g.ss = nil
		g.sub = nil
	})
}

func (g *grab) release() {
	if g.sub != nil {
		g.sub.Cancel()
		g.sub = nil
	}
	if g.ss != nil {
		g.ss.grabbed = false
		g.ss = nil
	}
}

func (g *grab) moveTo(pos geom.GlobalPoint) {
	if g.ss == nil {
		return
	}
	p := pos.Add(g.delta)
	g.ss.view.SetPosition(math.Trunc(p.X), math.Trunc(p.Y))
}

type pointerMoveGrab struct{ grab }

func (g *pointerMoveGrab) Focus(*seat.PointerGrab) {}

func (g *pointerMoveGrab) Motion(_ *seat.PointerGrab, pos geom.GlobalPoint) { g.moveTo(pos) }

func (g *pointerMoveGrab) Button(pg *seat.PointerGrab, _ uint32, pressed bool) {
	if !pressed && pg.Pointer().ButtonCount() == 0 {
		g.release()
		pg.End()
	}
}

func (g *pointerMoveGrab) Axis(*seat.PointerGrab, uint32, float64) {}

func (g *pointerMoveGrab) Cancel(pg *seat.PointerGrab) {
	g.release()
	pg.End()
}

type touchMoveGrab struct {
	grab
	id int32
}

func (g *touchMoveGrab) Down(*seat.TouchGrab, int32, geom.GlobalPoint) {}

func (g *touchMoveGrab) Up(tg *seat.TouchGrab, _ int32) {
	if tg.Touch().NumPoints() == 0 {
		g.release()
		tg.End()
	}
}

func (g *touchMoveGrab) Motion(_ *seat.TouchGrab, id int32, pos geom.GlobalPoint) {
	if id == g.id {
		g.moveTo(pos)
	}
}

func (g *touchMoveGrab) Cancel(tg *seat.TouchGrab) {
	g.release()
	tg.End()
}

// Move starts a move grab for a client that asks with the serial of the
// press or touch that is still held on it. Fullscreen and maximized
// windows stay put.
func (s *Shell) Move(ds *desktop.Surface, st *seat.Seat, serial uint32) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil || ss.grabbed || ds.Fullscreen() || ds.Maximized() {
		return
	}
	surf := ds.Surface()
	if p := st.Pointer(); p != nil && p.Focus() != nil && p.ButtonCount() > 0 && p.GrabSerial() == serial {
		if p.Focus().Surface().MainSurface() != surf {
			return
		}
		s.d.BreakGrabs(st)
		g := &pointerMoveGrab{}
		g.attach(ss, p.GrabPosition())
		p.StartGrab(g)
		return
	}
	if t := st.Touch(); t != nil && t.Focus() != nil && t.GrabSerial() == serial {
		if t.Focus().Surface().MainSurface() != surf {
			return
		}
		s.d.BreakGrabs(st)
		g := &touchMoveGrab{}
		if ids := t.IDs(); len(ids) > 0 {
			g.id = ids[0]
		}
		g.attach(ss, t.GrabPosition())
		t.StartGrab(g)
	}
}
