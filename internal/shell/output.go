package shell

import (
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
)

// shellOutput is the per-output state: the helper's background and panel,
// and a placeholder shown until the background arrives.
type shellOutput struct {
	output  *scene.Output
	lastPos geom.GlobalPoint

	temporaryCurtain *scene.Curtain

	backgroundSurface *scene.Surface
	backgroundView    *scene.View
	panelSurface      *scene.Surface
	panelView         *scene.View
}

// BackgroundView is the helper background on o, or nil.
func (s *Shell) BackgroundView(o *scene.Output) *scene.View {
	if so := s.outputs[o]; so != nil {
		return so.backgroundView
	}
	return nil
}

// PanelView is the helper panel on o, or nil.
func (s *Shell) PanelView(o *scene.Output) *scene.View {
	if so := s.outputs[o]; so != nil {
		return so.panelView
	}
	return nil
}

// Placeholder is the black curtain shown on o until a background commits.
func (s *Shell) Placeholder(o *scene.Output) *scene.Curtain {
	if so := s.outputs[o]; so != nil {
		return so.temporaryCurtain
	}
	return nil
}

// shellLayers are the bands views are repositioned in when outputs change.
func (s *Shell) shellLayers() []*scene.Layer {
	return []*scene.Layer{
		s.fullscreenLayer,
		s.panelLayer,
		s.backgroundLayer,
		s.lockLayer,
		s.inputPanelLayer,
		s.workspace,
	}
}

func (s *Shell) outputCreated(o *scene.Output) {
	if _, ok := s.outputs[o]; ok {
		return
	}
	so := &shellOutput{output: o, lastPos: o.Position()}
	s.outputs[o] = so

	if !s.cfg.DisallowOutputChangedMove && len(s.outputs) == 1 {
		s.repositionAll()
	}

	so.temporaryCurtain = s.c.NewCurtain(scene.CurtainParams{
		Color:        scene.ColorBlack,
		Pos:          o.Position(),
		Size:         o.Mode().Size(),
		CaptureInput: true,
		Label:        "desktop shell background placeholder",
	})
	so.temporaryCurtain.View.MoveToLayer(s.backgroundLayer)
	so.temporaryCurtain.View.SetOutput(o)
}

func (s *Shell) outputDestroyed(o *scene.Output) {
	so := s.outputs[o]
	if so == nil {
		return
	}
	delete(s.outputs, o)

	if !s.cfg.DisallowOutputChangedMove {
		s.repositionAll()
	}

	if so.temporaryCurtain != nil {
		so.temporaryCurtain.Destroy()
	}
	// The helper still owns these surfaces; only our views go.
	if so.backgroundView != nil {
		so.backgroundView.Destroy()
	}
	if so.panelView != nil {
		so.panelView.Destroy()
	}
}

func (s *Shell) repositionAll() {
	for _, l := range s.shellLayers() {
		for _, v := range l.Views() {
			s.repositionOnOutputChange(v)
		}
	}
}

// repositionOnOutputChange moves a view that no output shows anymore onto
// the first output. Shell windows also drop maximized and fullscreen, since
// their sizes referred to the old layout.
func (s *Shell) repositionOnOutputChange(v *scene.View) {
	outputs := s.c.Outputs()
	if len(outputs) == 0 {
		return
	}
	pos := v.Position()
	visible := false
	for _, o := range outputs {
		if o.Contains(pos) {
			visible = true
			break
		}
	}
	if !visible {
		first := outputs[0]
		m := first.Mode()
		p := first.Position()
		v.SetPosition(p.X+float64(m.Width/4), p.Y+float64(m.Height/4))
	}

	ss := s.fromView(v)
	if ss == nil {
		return
	}
	ss.savedPosValid = false
	if ss.ds.Fullscreen() {
		s.setFullscreen(ss, false, nil)
	}
	if ss.ds.Maximized() {
		s.setMaximized(ss, false)
	}
}

func (s *Shell) outputResized(o *scene.Output) {
	so := s.outputs[o]
	if so == nil {
		return
	}
	size := o.Mode().Size()
	if so.temporaryCurtain != nil {
		so.temporaryCurtain.Resize(o.Position(), size)
	}
	s.configureToOutput(so.backgroundSurface, o)
	s.configureToOutput(so.panelSurface, o)

	for _, ss := range s.surfaces {
		if ss.output != o {
			continue
		}
		switch {
		case ss.ds.Fullscreen():
			ss.ds.SetSize(size.W, size.H)
		case ss.ds.Maximized():
			a := s.workArea(o)
			ss.ds.SetSize(a.W, a.H)
		}
	}
}

// configureToOutput asks the helper to size surf to o.
func (s *Shell) configureToOutput(surf *scene.Surface, o *scene.Output) {
	if surf == nil || s.resource == nil {
		return
	}
	m := o.Mode()
	s.resource.client.Send(protocol.ShellConfigure{Surface: surf.Ref32(), Width: m.Width, Height: m.Height})
}

// outputMoved drags the views that were on o along with it.
func (s *Shell) outputMoved(o *scene.Output) {
	so := s.outputs[o]
	if so == nil {
		return
	}
	delta := o.Position().Sub(so.lastPos)
	old := o.Area().Translate(int32(-delta.X), int32(-delta.Y))
	so.lastPos = o.Position()
	if delta.IsZero() {
		return
	}
	for _, l := range s.shellLayers() {
		for _, v := range l.Views() {
			if !old.ContainsGlobal(v.Position()) {
				continue
			}
			p := v.Position().Add(delta)
			v.SetPosition(p.X, p.Y)
		}
	}
}

func (s *Shell) backgroundCommitted(so *shellOutput, surf *scene.Surface) {
	if !surf.HasContent() {
		return
	}
	if so.backgroundView == nil {
		so.backgroundView = s.c.CreateView(surf)
		so.backgroundView.SetOutput(so.output)
	}
	surf.Map()
	if so.temporaryCurtain != nil {
		so.temporaryCurtain.Destroy()
		so.temporaryCurtain = nil
	}
	pos := so.output.Position()
	so.backgroundView.SetPosition(pos.X, pos.Y)
	if so.backgroundView.Layer() != s.backgroundLayer {
		so.backgroundView.MoveToLayer(s.backgroundLayer)
	}
}

func (s *Shell) panelCommitted(so *shellOutput, surf *scene.Surface) {
	if !surf.HasContent() {
		return
	}
	if so.panelView == nil {
		so.panelView = s.c.CreateView(surf)
		so.panelView.SetOutput(so.output)
	}
	surf.Map()

	o := so.output
	pos := o.Position()
	m := o.Mode()
	size := surf.Size()
	switch s.panelPosition {
	case PanelBottom:
		pos.Y += float64(m.Height - size.H)
	case PanelRight:
		pos.X += float64(m.Width - size.W)
	}
	so.panelView.SetPosition(pos.X, pos.Y)
	if so.panelView.Layer() != s.panelLayer {
		so.panelView.MoveToLayer(s.panelLayer)
	}
}
