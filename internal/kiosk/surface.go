package kiosk

import (
	"slices"

	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
)

// Surface is the kiosk's record of a toplevel.
type Surface struct {
	shell *Shell
	ds    *desktop.Surface
	view  *scene.View

	parent *Surface
	// owner is the root whose tree lists this surface. Only roots use
	// tree, topmost first.
	owner *Surface
	tree  []*Surface

	output        *scene.Output
	outputSub     *signal.Subscription[*scene.Output]
	appIDAssigned bool

	focusCount            int
	lastWidth, lastHeight int32
	xwaylandPos           geom.GlobalPoint
	xwaylandSet           bool
	grabbed               bool
	destroyed             bool

	Destroyed signal.Signal[*Surface]
}

func (ss *Surface) DesktopSurface() *desktop.Surface { return ss.ds }
func (ss *Surface) View() *scene.View { return ss.view }
func (ss *Surface) Output() *scene.Output { return ss.output }
func (ss *Surface) Parent() *Surface { return ss.parent }
func (ss *Surface) FocusCount() int { return ss.focusCount }
func (ss *Surface) IsDestroyed() bool { return ss.destroyed }

func (ss *Surface) root() *Surface {
	r := ss
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (ss *Surface) isDescendantOf(ancestor *Surface) bool {
	for n := ss; n != nil; n = n.parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// moveToTop moves n to the top of ss's tree, taking it out of whatever
// tree held it.
func (ss *Surface) moveToTop(n *Surface) {
	n.unlinkTree()
	ss.tree = slices.Insert(ss.tree, 0, n)
	n.owner = ss
}

func (ss *Surface) unlinkTree() {
	if o := ss.owner; o != nil {
		if i := slices.Index(o.tree, ss); i >= 0 {
			o.tree = slices.Delete(o.tree, i, i+1)
		}
	}
	ss.owner = nil
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

// FromSurface returns the kiosk surface of a toplevel's wl_surface.
func (s *Shell) FromSurface(surf *scene.Surface) *Surface { return s.fromSurface(surf) }

func (ss *Surface) setOutput(o *scene.Output) {
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
		ss.outputSub = nil
	})
}

// bestOutput picks the output for ss: its current one, then an output
// listing its app id or X11 names, then its tree's output, then the
// focused and default outputs.
func (ss *Surface) bestOutput() *scene.Output {
	if ss.output != nil {
		return ss.output
	}
	s := ss.shell
	if id := ss.ds.AppID(); id != "" {
		for _, ko := range s.outputs {
			if hasAppID(ko.appIDs, id) {
				ss.appIDAssigned = true
				return ko.output
			}
		}
	}
	if o := ss.bestOutputForXWayland(); o != nil {
		return o
	}
	if r := ss.root(); r.output != nil {
		return r.output
	}
	return s.focusedOutput()
}

// bestOutputForXWayland matches WM_NAME and WM_CLASS together first, then
// each on its own.
func (ss *Surface) bestOutputForXWayland() *scene.Output {
	ds := ss.ds
	if !ds.IsXWayland() {
		return nil
	}
	s := ss.shell
	name, class := ds.WMName(), ds.WMClass()
	if name != "" && class != "" {
		foundName, foundClass := false, false
		for _, ko := range s.outputs {
			foundName = foundName || hasAppID(ko.x11WMName, name)
			foundClass = foundClass || hasAppID(ko.x11WMClass, class)
			if foundName && foundClass {
				ss.appIDAssigned = true
				return ko.output
			}
		}
	}
	for _, ko := range s.outputs {
		if hasAppID(ko.x11WMName, name) {
			ss.appIDAssigned = true
			return ko.output
		}
	}
	for _, ko := range s.outputs {
		if hasAppID(ko.x11WMClass, class) {
			ss.appIDAssigned = true
			return ko.output
		}
	}
	return nil
}

func (ss *Surface) sizeToOutput() {
	if ss.output == nil {
		return
	}
	m := ss.output.Mode()
	ss.ds.SetSize(m.Width, m.Height)
}

func (ss *Surface) setFullscreen(o *scene.Output) {
	if o == nil {
		o = ss.bestOutput()
	}
	ss.setOutput(o)
	ss.ds.SetFullscreen(true)
	ss.sizeToOutput()
}

func (ss *Surface) setMaximized() {
	ss.setOutput(ss.bestOutput())
	ss.ds.SetMaximized(true)
	ss.sizeToOutput()
}

func (ss *Surface) setNormal() {
	if ss.output == nil {
		ss.setOutput(ss.bestOutput())
	}
	ss.ds.SetFullscreen(false)
	ss.ds.SetMaximized(false)
	ss.ds.SetSize(0, 0)
}

func (ss *Surface) reconfigureForOutput() {
	if ss.output == nil {
		return
	}
	if ss.ds.Maximized() || ss.ds.Fullscreen() {
		ss.sizeToOutput()
	}
	centerOnOutput(ss.view, ss.output)
}

func (s *Shell) SurfaceAdded(ds *desktop.Surface) {
	ss := &Surface{shell: s, ds: ds}
	ss.view = ds.CreateView()
	ds.SetUserData(ss)
	ss.moveToTop(ss)
	ss.setFullscreen(nil)
}

func (s *Shell) SurfaceRemoved(ds *desktop.Surface) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	surf := ds.Surface()
	ko := s.kioskOutput(ss.output)

	if ks := s.seat; ks != nil && ks.focused == surf {
		next := s.focusSuccessor(ss)
		if ko != nil && next != nil {
			if next.view.Layer() == s.inactiveLayer {
				ko.setActiveTree(next.root())
			}
			s.activate(next)
		} else {
			ks.focused = nil
			if ko != nil {
				ko.setActiveTree(nil)
			}
		}
	} else if ko != nil && ko.active == ss {
		var root *Surface
		if next := s.focusSuccessor(ss); next != nil {
			root = next.root()
		}
		ko.setActiveTree(root)
	}
	s.destroySurface(ss)
}

// focusSuccessor picks the window that takes over from a removed one on
// its output. Members of the same family win, shown windows before hidden
// ones; otherwise the topmost shown window does.
func (s *Shell) focusSuccessor(ss *Surface) *Surface {
	if ss.output == nil {
		return nil
	}
	family := ss.root()
	var first *Surface
	for _, l := range []*scene.Layer{s.normalLayer, s.inactiveLayer} {
		for _, v := range l.Views() {
			if v == ss.view {
				continue
			}
			cand := s.fromSurface(v.Surface())
			if cand == nil || cand.destroyed || cand.output != ss.output {
				continue
			}
			if cand.root() == family {
				return cand
			}
			if first == nil {
				first = cand
			}
		}
	}
	return first
}

func (s *Shell) destroySurface(ss *Surface) {
	ss.destroyed = true
	ss.Destroyed.Emit(ss)
	ss.unlinkTree()
	for _, c := range slices.Clone(ss.tree) {
		c.owner = nil
	}
	ss.tree = nil
	ss.ds.SetUserData(nil)
	ss.view.Destroy()
	ss.setOutput(nil)
	ss.parent = nil
}

// SetParent moves ss into its new parent's tree. Losing the parent makes
// ss the root of a tree of its own, shown in place of the old one.
func (s *Shell) SetParent(ds *desktop.Surface, parent *desktop.Surface) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	var p *Surface
	if parent != nil {
		p, _ = parent.UserData().(*Surface)
	}
	var shroot *Surface
	if p != nil {
		shroot = p.root()
	} else {
		shroot = ss.root()
	}
	if p == nil && ss == shroot {
		return
	}

	ss.parent = p
	if p != nil {
		if ss.owner != shroot {
			shroot.moveToTop(ss)
		}
		ss.setOutput(nil)
		ss.setNormal()
		return
	}

	for _, n := range slices.Backward(slices.Clone(shroot.tree)) {
		if n.isDescendantOf(ss) {
			ss.moveToTop(n)
		}
	}
	if ko := s.kioskOutput(ss.output); ko != nil {
		ko.setActiveTree(ss)
	}
	ss.setFullscreen(ss.output)
}

func (s *Shell) Committed(ds *desktop.Surface, offset geom.SurfacePoint) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	surf := ds.Surface()
	if surf.Width() == 0 {
		return
	}

	if !ss.appIDAssigned && ds.AppID() != "" {
		ss.setOutput(nil)
		ss.setOutput(ss.bestOutput())
		ss.sizeToOutput()
		// Even without a matching output, keep the choice.
		ss.appIDAssigned = true
	}

	resized := surf.Width() != ss.lastWidth || surf.Height() != ss.lastHeight
	fullscreen := ds.Maximized() || ds.Fullscreen()

	if !surf.IsMapped() || (resized && fullscreen) {
		if fullscreen || !ss.xwaylandSet {
			centerOnOutput(ss.view, ss.output)
		} else {
			g := ds.Geometry()
			ss.view.SetPositionWithOffset(ss.xwaylandPos, geom.SurfacePoint{X: float64(-g.X), Y: float64(-g.Y)})
		}
	}

	if !surf.IsMapped() {
		surf.Map()
		if ss.parent == nil {
			if ko := s.kioskOutput(ss.output); ko != nil {
				ko.setActiveTree(ss)
			}
		}
		if s.seat != nil {
			s.activate(ss)
		}
	}

	if !fullscreen && !offset.IsZero() {
		ss.view.SetPositionWithOffset(ss.view.Position(), offset)
	}

	ss.lastWidth = surf.Width()
	ss.lastHeight = surf.Height()
}

// FullscreenRequested keeps roots fullscreen whatever the client asks.
func (s *Shell) FullscreenRequested(ds *desktop.Surface, fullscreen bool, o *scene.Output) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	if ss.parent == nil || fullscreen {
		ss.setFullscreen(o)
		return
	}
	ss.setNormal()
}

func (s *Shell) MaximizedRequested(ds *desktop.Surface, maximized bool) {
	ss, _ := ds.UserData().(*Surface)
	if ss == nil {
		return
	}
	switch {
	case ss.parent == nil:
		ss.setFullscreen(nil)
	case maximized:
		ss.setMaximized()
	default:
		ss.setNormal()
	}
}

func (s *Shell) SetXWaylandPosition(ds *desktop.Surface, pos geom.GlobalPoint) {
	if ss, _ := ds.UserData().(*Surface); ss != nil {
		ss.xwaylandPos = pos
		ss.xwaylandSet = true
	}
}

func (s *Shell) GetPosition(ds *desktop.Surface) geom.GlobalPoint {
	if ss, _ := ds.UserData().(*Surface); ss != nil {
		return ss.view.Position()
	}
	return geom.GlobalPoint{}
}
