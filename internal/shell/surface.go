package shell

import (
	"slices"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
)

// Surface is the shell's record of a toplevel.
type Surface struct {
	shell *Shell
	ds    *desktop.Surface
	view  *scene.View

	parent   *Surface
	children []*Surface
	// orphans are the children handed to the grandparent while this
	// surface was being destroyed.
	orphans []*Surface

	output           *scene.Output
	outputSub        *signal.Subscription[*scene.Output]
	fullscreenOutput *scene.Output

	blackCurtain *scene.Curtain
	lowered      bool

	savedPos           geom.GlobalPoint
	savedPosValid      bool
	savedRotationValid bool
	rotation           struct {
		transform *scene.Transform
		matrix    geom.Matrix
	}

	orientation geom.Orientation
	resizeEdges geom.Edge
	grabbed     bool
	focusCount  int

	lastWidth, lastHeight int32
	// state caches fullscreen and maximized as of the last commit.
	state struct {
		fullscreen bool
		maximized  bool
	}

	unresponsive bool
	xwaylandPos  geom.GlobalPoint
	xwaylandSet  bool

	fadeRef   bool
	destroyed bool

	Destroyed signal.Signal[*Surface]
}

func (ss *Surface) DesktopSurface() *desktop.Surface { return ss.ds }
func (ss *Surface) View() *scene.View { return ss.view }
func (ss *Surface) Output() *scene.Output { return ss.output }
func (ss *Surface) Parent() *Surface { return ss.parent }
func (ss *Surface) Children() []*Surface { return slices.Clone(ss.children) }
func (ss *Surface) FocusCount() int { return ss.focusCount }
func (ss *Surface) Orientation() geom.Orientation { return ss.orientation }
func (ss *Surface) Unresponsive() bool { return ss.unresponsive }
func (ss *Surface) Grabbed() bool { return ss.grabbed }
func (ss *Surface) Lowered() bool { return ss.lowered }
func (ss *Surface) IsDestroyed() bool { return ss.destroyed }

// BlackCurtain is the backdrop below a fullscreen view, or nil.
func (ss *Surface) BlackCurtain() *scene.Curtain { return ss.blackCurtain }

// SavedPosition is the position captured on entering maximized or
// fullscreen.
func (ss *Surface) SavedPosition() (geom.GlobalPoint, bool) {
	return ss.savedPos, ss.savedPosValid
}

// Minimized reports whether the view sits in the minimized layer.
func (ss *Surface) Minimized() bool {
	return ss.view.Layer() == ss.shell.minimizedLayer
}

func (ss *Surface) isMaxOrFullscreen() bool {
	return ss.ds.Maximized() || ss.ds.Fullscreen()
}

func (ss *Surface) root() *Surface {
	r := ss
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// hasFocusedDescendant reports whether ss or anything below it holds
// keyboard focus on some seat.
func (ss *Surface) hasFocusedDescendant() bool {
	if ss.focusCount > 0 {
		return true
	}
	for _, c := range ss.children {
		if c.hasFocusedDescendant() {
			return true
		}
	}
	return false
}

// lastMappedChild is the newest child toplevel whose view is mapped.
func (ss *Surface) lastMappedChild() *Surface {
	for i := len(ss.children) - 1; i >= 0; i-- {
		if c := ss.children[i]; c.view.IsMapped() {
			return c
		}
	}
	return nil
}

// setOutput assigns o, falling back to the surface's own output and then
// the default output.
func (ss *Surface) setOutput(o *scene.Output) {
	if o == nil || o.IsDestroyed() {
		o = ss.ds.Surface().Output()
	}
	if o == nil {
		o = ss.shell.c.DefaultOutput()
	}
	if ss.outputSub != nil {
		ss.outputSub.Cancel()
		ss.outputSub = nil
	}
	ss.output = o
	if o == nil {
		return
	}
	ss.outputSub = o.Destroyed.Subscribe(func(*scene.Output) {
		ss.output = nil
		ss.fullscreenOutput = nil
		ss.outputSub = nil
	})
}

func (s *Shell) fromSurface(surf *scene.Surface) *Surface {
	if surf == nil {
		return nil
	}
	ds := s.d.FromSurface(surf.MainSurface())
	if ds == nil {
		return nil
	}
	ss, _ := ds.UserData().(*Surface)
	return ss
}

// fromView returns the shell surface whose main view is v or an ancestor
// of v.
func (s *Shell) fromView(v *scene.View) *Surface {
	if v == nil {
		return nil
	}
	ss := s.fromSurface(v.Surface())
	if ss == nil || ss.view != v.Root() {
		return nil
	}
	return ss
}

// FromSurface returns the shell surface of a toplevel's wl_surface.
func (s *Shell) FromSurface(surf *scene.Surface) *Surface { return s.fromSurface(surf) }

func (s *Shell) SurfaceAdded(ds *desktop.Surface) {
	ss := &Surface{shell: s, ds: ds}
	ss.view = ds.CreateView()
	ss.rotation.transform = scene.NewTransform(geom.Identity())
	ss.rotation.matrix = geom.Identity()
	ds.SetUserData(ss)
	ds.SetActivated(false)
	ss.setOutput(s.c.DefaultOutput())
	s.surfaces = append(s.surfaces, ss)
}

func (s *Shell) SurfaceRemoved(ds *desktop.Surface) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	surf := ds.Surface()
	ds.SetUserData(nil)

	for _, sh := range s.shSeats {
		if sh.focused == surf {
			sh.focused = nil
		}
	}
	if ss.blackCurtain != nil {
		delete(s.backdrops, ss.blackCurtain.Surface)
		ss.blackCurtain.Destroy()
		ss.blackCurtain = nil
	}

	famRoot := ss.root()
	orphans := ss.orphans
	if p := ss.parent; p != nil {
		if i := slices.Index(p.children, ss); i >= 0 {
			p.children = slices.Delete(p.children, i, i+1)
		}
		ss.parent = nil
		s.syncActivated(p)
	}
	if i := slices.Index(s.surfaces, ss); i >= 0 {
		s.surfaces = slices.Delete(s.surfaces, i, i+1)
	}

	lostOutput := ss.view.Output()
	if ss.view.IsMapped() && s.cfg.CloseAnimation == animation.Fade &&
		s.c.State() == scene.StateActive && lostOutput != nil && lostOutput.Power() == scene.PowerOn {
		s.fadeOutClosed(ss)
	} else {
		s.destroySurface(ss)
	}

	s.surfaceFocusLost(surf)
	s.focus.surfaceRemoved(surf, lostOutput, func(cand *Surface) bool {
		if famRoot != ss {
			return cand.root() == famRoot
		}
		r := cand.root()
		return slices.Contains(orphans, r)
	})
}

// fadeOutClosed keeps a copy of a closed window on screen while it fades.
func (s *Shell) fadeOutClosed(ss *Surface) {
	surf := ss.ds.Surface()
	surf.ClearInput()

	fv := s.c.CreateView(surf)
	fv.SetOutput(ss.view.Output())
	pos := ss.view.Position()
	fv.SetPosition(pos.X, pos.Y)
	fv.PlaceAbove(ss.view)
	ss.view.MoveToLayer(nil)

	animation.RunFade(s.c, fv, 1, 0, animation.DefaultDuration, func() {
		fv.Unmap()
		s.loop().Post(func() {
			fv.Destroy()
			s.destroySurface(ss)
		})
	})
}

func (s *Shell) destroySurface(ss *Surface) {
	if ss.destroyed {
		return
	}
	ss.destroyed = true
	if ss.outputSub != nil {
		ss.outputSub.Cancel()
		ss.outputSub = nil
	}
	ss.view.Destroy()
	ss.Destroyed.Emit(ss)
	if ss.fadeRef {
		ss.fadeRef = false
		ss.ds.Surface().Unref()
	}
}

func (s *Shell) SetParent(ds *desktop.Surface, parent *desktop.Surface) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	var p *Surface
	if parent != nil {
		p, _ = parent.UserData().(*Surface)
	}
	old := ss.parent
	if old != nil {
		if i := slices.Index(old.children, ss); i >= 0 {
			old.children = slices.Delete(old.children, i, i+1)
		}
		if old.ds.IsDestroyed() {
			old.orphans = append(old.orphans, ss)
		}
	}
	ss.parent = p
	if p != nil {
		p.children = append(p.children, ss)
		s.syncActivated(p)
	}
	if old != nil && !old.ds.IsDestroyed() {
		s.syncActivated(old)
	}
	s.syncActivated(ss)
	if p != nil && ss.view.IsMapped() && p.view.Layer() != nil {
		s.updateChildLayers(p)
	}
}

func (s *Shell) Committed(ds *desktop.Surface, offset geom.SurfacePoint) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	surf := ds.Surface()

	if surf.IsMapped() && !surf.HasContent() {
		if ss.state.fullscreen {
			s.unsetFullscreen(ss)
		}
		surf.Unmap()
		return
	}
	if surf.Width() == 0 {
		return
	}

	wasFullscreen := ss.state.fullscreen
	wasMaximized := ss.state.maximized
	ss.state.fullscreen = ds.Fullscreen()
	ss.state.maximized = ds.Maximized()

	if !surf.IsMapped() {
		s.mapSurface(ss)
		if s.cfg.CloseAnimation == animation.Fade && !ss.fadeRef {
			surf.Ref()
			ss.fadeRef = true
		}
		return
	}

	if offset.IsZero() && ss.lastWidth == surf.Width() && ss.lastHeight == surf.Height() &&
		wasFullscreen == ss.state.fullscreen && wasMaximized == ss.state.maximized {
		return
	}

	if wasFullscreen {
		s.unsetFullscreen(ss)
	}
	if wasMaximized {
		s.unsetMaximized(ss)
	}

	if (ss.state.fullscreen || ss.state.maximized) && !ss.savedPosValid {
		ss.savedPos = ss.view.Position()
		ss.savedPosValid = true
		if ss.view.HasTransform(ss.rotation.transform) {
			ss.view.RemoveTransform(ss.rotation.transform)
			ss.savedRotationValid = true
		}
	}

	switch {
	case ss.state.fullscreen:
		for _, st := range s.seats.Seats() {
			s.activate(ss.view, st, activateConfigure|activateFullscreen)
		}
	case ss.state.maximized:
		s.setMaximizedPosition(ss)
	default:
		off := offset
		if ss.resizeEdges != 0 {
			off = geom.SurfacePoint{}
		}
		if ss.resizeEdges&geom.EdgeLeft != 0 {
			off.X = float64(ss.lastWidth - surf.Width())
		}
		if ss.resizeEdges&geom.EdgeTop != 0 {
			off.Y = float64(ss.lastHeight - surf.Height())
		}
		ss.view.SetPositionWithOffset(ss.view.Position(), off)
	}
	if wasFullscreen && !ss.state.fullscreen {
		s.updateLayer(ss)
	}

	ss.lastWidth = surf.Width()
	ss.lastHeight = surf.Height()
}

func (s *Shell) mapSurface(ss *Surface) {
	surf := ss.ds.Surface()
	switch {
	case ss.state.fullscreen:
		s.setViewFullscreen(ss)
	case ss.state.maximized:
		s.setMaximizedPosition(ss)
	case ss.xwaylandSet:
		s.setPositionFromXWayland(ss)
	default:
		s.initialPosition(ss.view)
	}

	surf.Map()
	s.updateLayer(ss)

	if ss.state.maximized {
		ss.view.SetOutput(ss.output)
	}

	if !s.locked {
		flags := activateConfigure
		if ss.state.fullscreen {
			flags |= activateFullscreen
		}
		for _, st := range s.seats.Seats() {
			s.activate(ss.view, st, flags)
		}
	}

	if !ss.state.fullscreen && !ss.state.maximized {
		switch s.cfg.Animation {
		case animation.Fade:
			animation.RunFade(s.c, ss.view, 0, 1, animation.DefaultDuration, nil)
		case animation.Zoom:
			animation.RunZoom(s.c, ss.view, 0.5, 1, 0, 1, animation.DefaultDuration, nil)
		}
	}

	ss.lastWidth = surf.Width()
	ss.lastHeight = surf.Height()
	s.log.Debug("mapped", "surface", ss.ds, "pos", ss.view.Position())
}

func (s *Shell) setPositionFromXWayland(ss *Surface) {
	g := ss.ds.Geometry()
	ss.view.SetPositionWithOffset(ss.xwaylandPos, geom.SurfacePoint{X: float64(-g.X), Y: float64(-g.Y)})
}

// initialPosition drops a new window somewhere on the output under the
// pointer.
func (s *Shell) initialPosition(v *scene.View) {
	var pos geom.GlobalPoint
	for _, st := range s.seats.Seats() {
		if p := st.Pointer(); p != nil {
			pos = p.Position()
			break
		}
	}
	target := s.c.OutputAt(pos.X, pos.Y)
	if target == nil {
		v.SetPosition(float64(10+s.rand.IntN(400)), float64(10+s.rand.IntN(400)))
		return
	}

	area := s.workArea(target)
	size := v.Surface().Size()
	x, y := area.X, area.Y
	if r := area.W - size.W; r > 0 {
		x += int32(s.rand.IntN(int(r)))
	}
	if r := area.H - size.H; r > 0 {
		y += int32(s.rand.IntN(int(r)))
	}
	v.SetPosition(float64(x), float64(y))
}

func (s *Shell) setMaximizedPosition(ss *Surface) {
	area := s.workArea(ss.output)
	g := ss.ds.Geometry()
	ss.view.SetPositionWithOffset(
		geom.GlobalPoint{X: float64(area.X), Y: float64(area.Y)},
		geom.SurfacePoint{X: float64(-g.X), Y: float64(-g.Y)},
	)
}

// restorePosition undoes the placement of a maximized or fullscreen state.
func (s *Shell) restorePosition(ss *Surface) {
	if ss.savedPosValid {
		ss.view.SetPosition(ss.savedPos.X, ss.savedPos.Y)
	} else {
		s.initialPosition(ss.view)
	}
	ss.savedPosValid = false
	ss.ds.SetTiled(ss.orientation)
	if ss.savedRotationValid {
		ss.view.AddTransform(ss.rotation.transform)
		ss.savedRotationValid = false
	}
}

func (s *Shell) unsetFullscreen(ss *Surface) {
	if ss.blackCurtain != nil {
		delete(s.backdrops, ss.blackCurtain.Surface)
		ss.blackCurtain.Destroy()
		ss.blackCurtain = nil
	}
	s.restorePosition(ss)
}

func (s *Shell) unsetMaximized(ss *Surface) {
	ss.setOutput(s.c.DefaultOutput())
	s.restorePosition(ss)
}

// sizeFor returns the configure size of a maximized or fullscreen window.
func (s *Shell) sizeFor(ss *Surface, maximized, fullscreen bool) (int32, int32) {
	switch {
	case fullscreen && ss.fullscreenOutput != nil:
		m := ss.fullscreenOutput.Mode()
		return m.Width, m.Height
	case maximized:
		a := s.workArea(ss.output)
		return a.W, a.H
	}
	return 0, 0
}

func (s *Shell) setFullscreen(ss *Surface, on bool, o *scene.Output) {
	ds := ss.ds
	ds.SetFullscreen(on)
	if on {
		if o == nil && !ds.Surface().IsMapped() {
			o = s.focusedOutput()
		}
		ss.setOutput(o)
		ss.fullscreenOutput = ss.output
		ds.SetTiled(geom.OrientationNone)
		ds.SetSize(s.sizeFor(ss, false, true))
		return
	}
	var w, h int32
	if ds.Maximized() || ds.Pending().Maximized {
		w, h = s.sizeFor(ss, true, false)
	}
	ds.SetSize(w, h)
}

func (s *Shell) setMaximized(ss *Surface, on bool) {
	ds := ss.ds
	if ds.Fullscreen() {
		return
	}
	if on {
		o := ds.Surface().Output()
		if !ds.Surface().IsMapped() {
			o = s.focusedOutput()
		}
		ss.setOutput(o)
		ds.SetTiled(geom.OrientationNone)
	}
	ds.SetMaximized(on)
	ds.SetSize(s.sizeFor(ss, on, false))
}

// setViewFullscreen puts the view in the fullscreen band, centered on its
// output, with a black curtain right below it.
func (s *Shell) setViewFullscreen(ss *Surface) {
	o := ss.fullscreenOutput
	if o == nil {
		o = ss.output
	}
	ss.view.MoveToLayer(s.fullscreenLayer)
	centerOnOutput(ss.view, o)

	if ss.blackCurtain == nil {
		p := scene.CurtainParams{
			Color:        scene.ColorBlack,
			CaptureInput: true,
			Label:        "black background surface for " + ss.ds.String(),
		}
		if o != nil {
			p.Pos = o.Position()
			p.Size = o.Mode().Size()
		}
		ss.blackCurtain = s.c.NewCurtain(p)
		s.backdrops[ss.blackCurtain.Surface] = ss
	} else if o != nil {
		ss.blackCurtain.Resize(o.Position(), o.Mode().Size())
	}
	ss.blackCurtain.View.SetOutput(o)
	ss.blackCurtain.View.PlaceBelow(ss.view)
	ss.lowered = false
}

// updateLayer restacks the view on top of its band, or right above its
// parent, and pulls its children along.
func (s *Shell) updateLayer(ss *Surface) {
	if p := ss.parent; p != nil && p.view.Layer() != nil {
		ss.view.PlaceAbove(p.view)
		s.updateChildLayers(ss)
		return
	}
	l := s.workspace
	if ss.ds.Fullscreen() && !ss.lowered {
		l = s.fullscreenLayer
	}
	ss.view.MoveToLayer(l)
	s.updateChildLayers(ss)
}

// updateChildLayers keeps mapped children directly above their parent.
func (s *Shell) updateChildLayers(ss *Surface) {
	for i := len(ss.children) - 1; i >= 0; i-- {
		c := ss.children[i]
		if c.view.Layer() == nil {
			continue
		}
		c.view.PlaceAbove(ss.view)
		s.updateChildLayers(c)
	}
}

// lowerFullscreenLayer sends fullscreen views back to the workspace. With
// an output only the views fullscreen there are lowered.
func (s *Shell) lowerFullscreenLayer(o *scene.Output) {
	views := s.fullscreenLayer.Views()
	for i := len(views) - 1; i >= 0; i-- {
		ss := s.fromView(views[i])
		if ss == nil {
			continue
		}
		if o != nil && ss.fullscreenOutput != o {
			continue
		}
		if ss.blackCurtain != nil {
			ss.blackCurtain.View.MoveToLayer(nil)
		}
		ss.view.MoveToLayer(s.workspace)
		ss.lowered = true
	}
}

func (s *Shell) minimize(ss *Surface) {
	ss.view.MoveToLayer(s.minimizedLayer)
	s.focus.drop(ss.ds.Surface())
	s.surfaceFocusLost(ss.ds.Surface())
	s.updateChildLayers(ss)
}

// restoreMinimized brings a minimized subtree back to the workspace.
func (s *Shell) restoreMinimized(ss *Surface) {
	ss.view.MoveToLayer(s.workspace)
	s.updateChildLayers(ss)
}

// surfaceFocusLost clears keyboards focused on surf or one of its
// sub-surfaces.
func (s *Shell) surfaceFocusLost(surf *scene.Surface) {
	for _, st := range s.seats.Seats() {
		k := st.Keyboard()
		if k == nil || k.Focus() == nil {
			continue
		}
		if k.Focus().MainSurface() == surf {
			k.SetFocus(nil)
		}
	}
}

func (s *Shell) FullscreenRequested(ds *desktop.Surface, on bool, o *scene.Output) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	if o != nil && o.IsDestroyed() {
		o = nil
	}
	s.setFullscreen(ss, on, o)
}

func (s *Shell) MaximizedRequested(ds *desktop.Surface, on bool) {
	if ss, _ := ds.UserData().(*Surface); ss != nil {
		s.setMaximized(ss, on)
	}
}

func (s *Shell) MinimizedRequested(ds *desktop.Surface) {
	if ss, _ := ds.UserData().(*Surface); ss != nil {
		s.minimize(ss)
	}
}

func (s *Shell) SetXWaylandPosition(ds *desktop.Surface, pos geom.GlobalPoint) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	ss.xwaylandPos = pos
	ss.xwaylandSet = true
}

// GetPosition reports the window geometry origin in global coordinates.
func (s *Shell) GetPosition(ds *desktop.Surface) geom.GlobalPoint {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return geom.GlobalPoint{}
	}
	g := ss.ds.Geometry()
	return ss.view.ToGlobal(geom.SurfacePoint{X: float64(g.X), Y: float64(g.Y)})
}

// SetTiled tiles a window to one half of its output's work area.
func (s *Shell) SetTiled(ss *Surface, o geom.Orientation) {
	if ss == nil || ss.isMaxOrFullscreen() {
		return
	}
	ss.orientation = o
	area := s.workArea(ss.output)
	w, h := area.W, area.H
	switch o {
	case geom.OrientationLeft, geom.OrientationRight:
		w /= 2
	case geom.OrientationTop, geom.OrientationBottom:
		h /= 2
	}
	g := ss.ds.Geometry()
	x := area.X - g.X
	y := area.Y - g.Y
	switch o {
	case geom.OrientationRight:
		x += w
	case geom.OrientationBottom:
		y += h
	}
	ss.view.SetPosition(float64(x), float64(y))
	ss.ds.SetSize(w, h)
	ss.ds.SetTiled(o)
}

// Minimize hides a window in the minimized layer.
func (s *Shell) Minimize(ss *Surface) { s.minimize(ss) }

// SetMaximized and SetFullscreen apply the compositor-side state changes
// bindings use.
func (s *Shell) SetMaximized(ss *Surface, on bool) { s.setMaximized(ss, on) }

func (s *Shell) SetFullscreen(ss *Surface, on bool, o *scene.Output) { s.setFullscreen(ss, on, o) }

func (s *Shell) shellSeat(st *seat.Seat) *shellSeat {
	return s.shSeats[st]
}
