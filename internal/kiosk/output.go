package kiosk

import (
	"slices"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
)

// kioskOutput is the kiosk state of one output.
type kioskOutput struct {
	shell   *Shell
	output  *scene.Output
	curtain *scene.Curtain
	lastPos geom.GlobalPoint

	appIDs     []string
	x11WMName  []string
	x11WMClass []string

	// active is the root of the surface tree shown on the output.
	active *Surface
}

func (s *Shell) kioskOutput(o *scene.Output) *kioskOutput {
	if o == nil {
		return nil
	}
	for _, ko := range s.outputs {
		if ko.output == o {
			return ko
		}
	}
	return nil
}

// ActiveRoot is the root of the surface tree shown on o.
func (s *Shell) ActiveRoot(o *scene.Output) *Surface {
	if ko := s.kioskOutput(o); ko != nil {
		return ko.active
	}
	return nil
}

// ActiveTree lists the surfaces shown on o, topmost first.
func (s *Shell) ActiveTree(o *scene.Output) []*Surface {
	if r := s.ActiveRoot(o); r != nil {
		return slices.Clone(r.tree)
	}
	return nil
}

// Background is the solid backdrop of o.
func (s *Shell) Background(o *scene.Output) *scene.Curtain {
	if ko := s.kioskOutput(o); ko != nil {
		return ko.curtain
	}
	return nil
}

func (s *Shell) outputCreated(o *scene.Output) {
	if s.kioskOutput(o) != nil {
		return
	}
	ko := &kioskOutput{shell: s, output: o, lastPos: o.Position()}
	for _, oc := range s.cfg.Outputs {
		if oc.Name == o.Name {
			ko.appIDs = oc.AppIDs
			ko.x11WMName = oc.X11WMName
			ko.x11WMClass = oc.X11WMClass
			break
		}
	}
	s.outputs = append(s.outputs, ko)
	ko.recreateBackground()
	s.log.Debug("output added", "output", o.Name, "app_ids", ko.appIDs)
}

func (s *Shell) outputDestroyed(o *scene.Output) {
	if ko := s.kioskOutput(o); ko != nil {
		s.destroyOutput(ko)
	}
}

func (s *Shell) destroyOutput(ko *kioskOutput) {
	if ko.curtain != nil {
		ko.curtain.Destroy()
		ko.curtain = nil
	}
	ko.active = nil
	if i := slices.Index(s.outputs, ko); i >= 0 {
		s.outputs = slices.Delete(s.outputs, i, i+1)
	}
}

func (s *Shell) outputResized(o *scene.Output) {
	ko := s.kioskOutput(o)
	if ko == nil {
		return
	}
	ko.recreateBackground()
	for _, v := range s.normalLayer.Views() {
		ss := s.fromSurface(v.Surface())
		if ss == nil || ss.output != o {
			continue
		}
		ss.reconfigureForOutput()
	}
}

// outputMoved shifts the background and the shown windows along with the
// output.
func (s *Shell) outputMoved(o *scene.Output) {
	ko := s.kioskOutput(o)
	if ko == nil {
		return
	}
	delta := o.Position().Sub(ko.lastPos)
	ko.lastPos = o.Position()
	if delta.IsZero() {
		return
	}
	if ko.curtain != nil {
		p := ko.curtain.View.Position().Add(delta)
		ko.curtain.View.SetPosition(p.X, p.Y)
	}
	for _, v := range s.normalLayer.Views() {
		ss := s.fromSurface(v.Surface())
		if ss == nil || ss.output != o {
			continue
		}
		p := v.Position().Add(delta)
		v.SetPosition(p.X, p.Y)
	}
}

func (ko *kioskOutput) recreateBackground() {
	if ko.curtain != nil {
		ko.curtain.Destroy()
		ko.curtain = nil
	}
	s := ko.shell
	o := ko.output
	col := scene.ColorFromARGB(s.cfg.BackgroundColor)
	col.A = 1
	ko.curtain = s.c.NewCurtain(scene.CurtainParams{
		Color:        col,
		Pos:          o.Position(),
		Size:         o.Mode().Size(),
		CaptureInput: true,
		Label:        "kiosk shell background surface",
	})
	ko.curtain.View.SetOutput(o)
	ko.curtain.View.MoveToLayer(s.backgroundLayer)
}

// setActiveTree hides the tree currently shown and shows root's tree in
// its place. root may be nil.
func (ko *kioskOutput) setActiveTree(root *Surface) {
	s := ko.shell
	if prev := ko.active; prev != nil {
		for _, ss := range slices.Backward(prev.tree) {
			ss.view.MoveToLayer(s.inactiveLayer)
		}
	}
	if root != nil {
		for _, ss := range slices.Backward(root.tree) {
			ss.view.MoveToLayer(s.normalLayer)
		}
	}
	ko.active = root
}

// raiseSubtree puts top and its descendants on top of the active tree and
// of the normal layer, keeping their relative order.
func (ko *kioskOutput) raiseSubtree(top *Surface) {
	r := ko.active
	if r == nil {
		return
	}
	var sub []*Surface
	for _, ss := range r.tree {
		if ss.isDescendantOf(top) {
			sub = append(sub, ss)
		}
	}
	for _, ss := range slices.Backward(sub) {
		ss.view.MoveToLayer(ko.shell.normalLayer)
		r.moveToTop(ss)
	}
}

// hasAppID reports whether id is one of ids.
func hasAppID(ids []string, id string) bool {
	return id != "" && slices.Contains(ids, id)
}
