package shell

import (
	"math"

	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
)

// Cursor is the cursor the helper shows on the grab surface.
type Cursor uint32

// Resize cursors share their values with the edge bits they resize.
const (
	CursorNone Cursor = iota
	CursorResizeTop
	CursorResizeBottom
	CursorArrow
	CursorResizeLeft
	CursorResizeTopLeft
	CursorResizeBottomLeft
	CursorMove
	CursorResizeRight
	CursorResizeTopRight
	CursorResizeBottomRight
	CursorBusy
)

const (
	// moveSafety is how much of a window must stay below a top panel.
	moveSafety = 50
	// rotateDeadZone is the radius around the center where rotation snaps
	// back to none.
	rotateDeadZone = 20
)

// shellGrab ties a grab to its target. The target is dropped when it is
// destroyed, so every handler must cope with ss being nil.
type shellGrab struct {
	shell *Shell
	ss    *Surface
	sub   *signal.Subscription[*Surface]
}

func (g *shellGrab) attach(s *Shell, ss *Surface) {
	g.shell = s
	g.ss = ss
	g.sub = ss.Destroyed.Subscribe(func(*Surface) {
		g.ss = nil
		g.sub = nil
	})
}

func (g *shellGrab) release() {
	if g.sub != nil {
		g.sub.Cancel()
		g.sub = nil
	}
	if g.ss != nil {
		g.ss.grabbed = false
		g.ss.resizeEdges = 0
	}
	g.ss = nil
}

// end finishes a pointer grab.
func (g *shellGrab) end(pg *seat.PointerGrab) {
	g.release()
	pg.End()
}

func (s *Shell) startPointerGrab(g *shellGrab, h seat.PointerGrabHandler, ss *Surface, p *seat.Pointer, cursor Cursor) *seat.PointerGrab {
	s.d.BreakGrabs(p.Seat())
	g.attach(s, ss)
	pg := p.StartGrab(h)
	if !pg.Active() {
		return pg
	}
	if g.ss != nil {
		g.ss.grabbed = true
	}
	if s.resource != nil {
		s.resource.client.Send(protocol.GrabCursor{Cursor: uint32(cursor)})
		if s.grabView != nil {
			p.SetFocus(s.grabView, geom.SurfacePoint{})
		}
	}
	return pg
}

type noopFocus struct{}

func (noopFocus) Focus(*seat.PointerGrab) {}

type noopAxis struct{}

func (noopAxis) Axis(*seat.PointerGrab, uint32, float64) {}

type moveGrab struct {
	shellGrab
	noopFocus
	noopAxis
	delta           geom.GlobalPoint
	clientInitiated bool
}

// constrain keeps a window from disappearing under a top panel.
func (g *moveGrab) constrain(pos geom.GlobalPoint) geom.GlobalPoint {
	ss := g.ss
	s := g.shell
	if s.panelPosition != PanelTop {
		return pos
	}
	o := ss.ds.Surface().Output()
	if o == nil {
		o = ss.output
	}
	area := s.workArea(o)
	gm := ss.ds.Geometry()

	bottom := pos.Y + float64(gm.H+gm.Y)
	if bottom-moveSafety < float64(area.Y) {
		pos.Y = float64(area.Y+moveSafety-gm.H) - float64(gm.Y)
	}
	if g.clientInitiated && pos.Y+float64(gm.Y) < float64(area.Y) {
		pos.Y = float64(area.Y - gm.Y)
	}
	return pos
}

func (g *moveGrab) Motion(_ *seat.PointerGrab, pos geom.GlobalPoint) {
	if g.ss == nil {
		return
	}
	p := g.constrain(pos.Add(g.delta))
	g.ss.view.SetPosition(p.X, p.Y)
}

func (g *moveGrab) Button(pg *seat.PointerGrab, _ uint32, pressed bool) {
	if pg.Pointer().ButtonCount() == 0 && !pressed {
		g.end(pg)
	}
}

func (g *moveGrab) Cancel(pg *seat.PointerGrab) { g.end(pg) }

// surfaceMove starts an interactive pointer move. It refuses windows that
// are already grabbed, maximized or fullscreen.
func (s *Shell) surfaceMove(ss *Surface, p *seat.Pointer, clientInitiated bool) {
	if ss == nil || ss.grabbed || ss.isMaxOrFullscreen() {
		return
	}
	g := &moveGrab{
		delta:           ss.view.Position().Sub(p.GrabPosition()),
		clientInitiated: clientInitiated,
	}
	ss.ds.SetTiled(geom.OrientationNone)
	ss.orientation = geom.OrientationNone
	s.startPointerGrab(&g.shellGrab, g, ss, p, CursorMove)
}

type touchMoveGrab struct {
	shellGrab
	delta  geom.GlobalPoint
	id     int32
	active bool
}

func (g *touchMoveGrab) Down(*seat.TouchGrab, int32, geom.GlobalPoint) {}

func (g *touchMoveGrab) Up(tg *seat.TouchGrab, id int32) {
	if id == g.id {
		g.active = false
	}
	if tg.Touch().NumPoints() == 0 {
		g.finish(tg)
	}
}

func (g *touchMoveGrab) Motion(_ *seat.TouchGrab, id int32, pos geom.GlobalPoint) {
	if g.ss == nil || !g.active || id != g.id {
		return
	}
	p := pos.Add(g.delta)
	g.ss.view.SetPosition(math.Trunc(p.X), math.Trunc(p.Y))
}

func (g *touchMoveGrab) Cancel(tg *seat.TouchGrab) { g.finish(tg) }

func (g *touchMoveGrab) finish(tg *seat.TouchGrab) {
	if g.sub != nil {
		g.sub.Cancel()
		g.sub = nil
	}
	g.ss = nil
	tg.End()
}

func (s *Shell) surfaceTouchMove(ss *Surface, t *seat.Touch) {
	if ss == nil || ss.isMaxOrFullscreen() {
		return
	}
	s.d.BreakGrabs(t.Seat())
	g := &touchMoveGrab{
		delta:  ss.view.Position().Sub(t.GrabPosition()),
		active: true,
	}
	if ids := t.IDs(); len(ids) > 0 {
		g.id = ids[0]
	}
	ss.ds.SetTiled(geom.OrientationNone)
	ss.orientation = geom.OrientationNone
	g.attach(s, ss)
	t.StartGrab(g)
}

type tabletMoveGrab struct {
	shellGrab
	delta geom.GlobalPoint
}

func (g *tabletMoveGrab) Motion(_ *seat.TabletToolGrab, pos geom.GlobalPoint) {
	if g.ss == nil {
		return
	}
	p := pos.Add(g.delta)
	g.ss.view.SetPosition(math.Trunc(p.X), math.Trunc(p.Y))
}

func (g *tabletMoveGrab) Down(*seat.TabletToolGrab)                {}
func (g *tabletMoveGrab) Up(tg *seat.TabletToolGrab)               { g.finish(tg) }
func (g *tabletMoveGrab) Button(*seat.TabletToolGrab, uint32, bool) {}
func (g *tabletMoveGrab) ProximityOut(tg *seat.TabletToolGrab)     { g.finish(tg) }
func (g *tabletMoveGrab) Cancel(tg *seat.TabletToolGrab)           { g.finish(tg) }

func (g *tabletMoveGrab) finish(tg *seat.TabletToolGrab) {
	if g.sub != nil {
		g.sub.Cancel()
		g.sub = nil
	}
	g.ss = nil
	tg.End()
}

func (s *Shell) surfaceTabletMove(ss *Surface, tool *seat.TabletTool) {
	if ss == nil || ss.isMaxOrFullscreen() {
		return
	}
	s.d.BreakGrabs(tool.Seat())
	g := &tabletMoveGrab{delta: ss.view.Position().Sub(tool.GrabPosition())}
	ss.ds.SetTiled(geom.OrientationNone)
	ss.orientation = geom.OrientationNone
	g.attach(s, ss)
	tool.StartGrab(g)
}

type resizeGrab struct {
	shellGrab
	noopFocus
	noopAxis
	edges         geom.Edge
	width, height int32
}

func (g *resizeGrab) Motion(pg *seat.PointerGrab, pos geom.GlobalPoint) {
	ss := g.ss
	if ss == nil {
		return
	}
	p := pg.Pointer()
	from := ss.view.FromGlobal(p.GrabPosition())
	to := ss.view.FromGlobal(pos)

	w, h := g.width, g.height
	if g.edges&geom.EdgeLeft != 0 {
		w += int32(from.X - to.X)
	} else if g.edges&geom.EdgeRight != 0 {
		w += int32(to.X - from.X)
	}
	if g.edges&geom.EdgeTop != 0 {
		h += int32(from.Y - to.Y)
	} else if g.edges&geom.EdgeBottom != 0 {
		h += int32(to.Y - from.Y)
	}

	minSize, maxSize := ss.ds.MinSize(), ss.ds.MaxSize()
	minSize.W = max(1, minSize.W)
	minSize.H = max(1, minSize.H)
	if w < minSize.W {
		w = minSize.W
	} else if maxSize.W > 0 && w > maxSize.W {
		w = maxSize.W
	}
	if h < minSize.H {
		h = minSize.H
	} else if maxSize.H > 0 && h > maxSize.H {
		h = maxSize.H
	}
	ss.ds.SetSize(w, h)
}

func (g *resizeGrab) Button(pg *seat.PointerGrab, _ uint32, pressed bool) {
	if pg.Pointer().ButtonCount() != 0 || pressed {
		return
	}
	if g.ss != nil {
		g.ss.ds.SetResizing(false)
		g.ss.ds.SetSize(0, 0)
	}
	g.end(pg)
}

func (g *resizeGrab) Cancel(pg *seat.PointerGrab) { g.end(pg) }

// surfaceResize starts an interactive resize from the given edges.
func (s *Shell) surfaceResize(ss *Surface, p *seat.Pointer, edges geom.Edge) {
	if ss == nil || ss.grabbed || ss.isMaxOrFullscreen() || !edges.ValidResize() {
		return
	}
	gm := ss.ds.Geometry()
	g := &resizeGrab{edges: edges, width: gm.W, height: gm.H}
	ss.resizeEdges = edges
	ss.ds.SetResizing(true)
	ss.ds.SetSize(gm.W, gm.H)
	s.startPointerGrab(&g.shellGrab, g, ss, p, Cursor(edges))
}

type rotateGrab struct {
	shellGrab
	noopFocus
	noopAxis
	center   geom.GlobalPoint
	rotation geom.Matrix
}

func (g *rotateGrab) Motion(_ *seat.PointerGrab, pos geom.GlobalPoint) {
	ss := g.ss
	if ss == nil {
		return
	}
	size := ss.ds.Surface().Size()
	cx, cy := 0.5*float64(size.W), 0.5*float64(size.H)

	dx, dy := pos.X-g.center.X, pos.Y-g.center.Y
	r := math.Hypot(dx, dy)
	if r > rotateDeadZone {
		g.rotation = geom.Rotation(dx/r, dy/r)
		ss.rotation.transform.Matrix = geom.Translation(-cx, -cy).
			Then(ss.rotation.matrix).
			Then(g.rotation).
			Then(geom.Translation(cx, cy))
		ss.view.AddTransform(ss.rotation.transform)
		ss.view.TransformChanged()
	} else {
		ss.view.RemoveTransform(ss.rotation.transform)
		ss.rotation.matrix = geom.Identity()
		g.rotation = geom.Identity()
	}

	// A resize while rotated moves the center; keep it under the grab.
	vp := ss.view.Position()
	dpx := g.center.X - (vp.X + cx)
	dpy := g.center.Y - (vp.Y + cy)
	if dpx != 0 || dpy != 0 {
		ss.view.SetPosition(vp.X+dpx, vp.Y+dpy)
	}
}

func (g *rotateGrab) Button(pg *seat.PointerGrab, _ uint32, pressed bool) {
	if pg.Pointer().ButtonCount() != 0 || pressed {
		return
	}
	if g.ss != nil {
		g.ss.rotation.matrix = g.ss.rotation.matrix.Then(g.rotation)
	}
	g.end(pg)
}

func (g *rotateGrab) Cancel(pg *seat.PointerGrab) { g.end(pg) }

// surfaceRotate starts rotating a window around its center.
func (s *Shell) surfaceRotate(ss *Surface, p *seat.Pointer) {
	if ss == nil {
		return
	}
	size := ss.ds.Surface().Size()
	g := &rotateGrab{
		center: ss.view.ToGlobal(geom.SurfacePoint{X: 0.5 * float64(size.W), Y: 0.5 * float64(size.H)}),
	}
	pos := p.Position()
	dx, dy := pos.X-g.center.X, pos.Y-g.center.Y
	if r := math.Hypot(dx, dy); r > rotateDeadZone {
		ss.rotation.matrix = ss.rotation.matrix.Then(geom.Rotation(dx/r, -dy/r))
		g.rotation = geom.Rotation(dx/r, dy/r)
	} else {
		ss.rotation.matrix = geom.Identity()
		g.rotation = geom.Identity()
	}
	s.startPointerGrab(&g.shellGrab, g, ss, p, CursorArrow)
}

// busyGrab shows the busy cursor over an unresponsive window. Clicks still
// let the user activate, move or rotate it.
type busyGrab struct {
	shellGrab
	noopAxis
}

func (g *busyGrab) Focus(pg *seat.PointerGrab) {
	p := pg.Pointer()
	v, _ := g.shell.c.PickView(p.Position())
	if v == nil || g.ss == nil || g.ss.view.Surface() != v.Surface() {
		g.end(pg)
	}
}

func (g *busyGrab) Motion(pg *seat.PointerGrab, _ geom.GlobalPoint) { g.Focus(pg) }

func (g *busyGrab) Button(pg *seat.PointerGrab, button uint32, pressed bool) {
	ss := g.ss
	if ss == nil || !pressed {
		return
	}
	s := g.shell
	p := pg.Pointer()
	switch button {
	case seat.BtnLeft:
		s.activate(ss.view, p.Seat(), activateConfigure)
		s.surfaceMove(ss, p, false)
	case seat.BtnRight:
		s.activate(ss.view, p.Seat(), activateConfigure)
		s.surfaceRotate(ss, p)
	}
}

func (g *busyGrab) Cancel(pg *seat.PointerGrab) { g.end(pg) }

func (s *Shell) setBusyCursor(ss *Surface, p *seat.Pointer) {
	if cur := p.Grab(); cur != nil {
		if _, ok := cur.Handler().(*busyGrab); ok {
			return
		}
	}
	g := &busyGrab{}
	s.startPointerGrab(&g.shellGrab, g, ss, p, CursorBusy)
	// The busy window must stay movable by the bindings.
	ss.grabbed = false
}

func (s *Shell) endBusyCursor(c *desktop.Client) {
	for _, st := range s.seats.Seats() {
		p := st.Pointer()
		if p == nil || p.Grab() == nil {
			continue
		}
		g, ok := p.Grab().Handler().(*busyGrab)
		if !ok {
			continue
		}
		if g.ss == nil || g.ss.ds.Client() == c {
			g.end(p.Grab())
		}
	}
}

// Move is a client's request for an interactive move. The serial must match
// the implicit grab of the device that started it.
func (s *Shell) Move(ds *desktop.Surface, st *seat.Seat, serial uint32) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	surf := ds.Surface()
	if p := st.Pointer(); p != nil && p.Focus() != nil && p.ButtonCount() > 0 && p.GrabSerial() == serial {
		if p.Focus().Surface().MainSurface() == surf {
			s.surfaceMove(ss, p, true)
		}
		return
	}
	if t := st.Touch(); t != nil && t.Focus() != nil && t.GrabSerial() == serial {
		if t.Focus().Surface().MainSurface() == surf {
			s.surfaceTouchMove(ss, t)
		}
		return
	}
	for _, tool := range st.TabletTools() {
		if tool.Focus() != nil && tool.GrabSerial() == serial {
			if tool.Focus().Surface().MainSurface() == surf {
				s.surfaceTabletMove(ss, tool)
			}
			return
		}
	}
}

// Resize is a client's request for an interactive resize. Only pointers
// resize.
func (s *Shell) Resize(ds *desktop.Surface, st *seat.Seat, serial uint32, edges geom.Edge) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	p := st.Pointer()
	if p == nil || p.ButtonCount() == 0 || p.GrabSerial() != serial || p.Focus() == nil {
		return
	}
	if p.Focus().Surface().MainSurface() != ds.Surface() {
		return
	}
	s.surfaceResize(ss, p, edges)
}

// PingTimeout marks every window of c unresponsive and puts the busy cursor
// on pointers hovering one of them.
func (s *Shell) PingTimeout(c *desktop.Client) {
	s.setUnresponsive(c, true)
	for _, st := range s.seats.Seats() {
		p := st.Pointer()
		if p == nil || p.Focus() == nil {
			continue
		}
		ss := s.fromSurface(p.Focus().Surface())
		if ss != nil && ss.ds.Client() == c {
			s.setBusyCursor(ss, p)
		}
	}
}

func (s *Shell) Pong(c *desktop.Client) {
	s.setUnresponsive(c, false)
	s.endBusyCursor(c)
}

func (s *Shell) setUnresponsive(c *desktop.Client, on bool) {
	for _, ds := range c.Surfaces() {
		if ss, _ := ds.UserData().(*Surface); ss != nil {
			ss.unresponsive = on
		}
	}
}
