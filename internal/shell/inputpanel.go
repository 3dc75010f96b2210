package shell

import (
	"slices"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
)

// InputPanel is an input method's on-screen panel. Panels are docked to
// the bottom of their output and only shown while a text input asks.
type InputPanel struct {
	s       *Shell
	surface *scene.Surface
	view    *scene.View
	output  *scene.Output
}

func (ip *InputPanel) Surface() *scene.Surface { return ip.surface }
func (ip *InputPanel) View() *scene.View       { return ip.view }

// NewInputPanel gives surf the input panel role.
func (s *Shell) NewInputPanel(surf *scene.Surface) (*InputPanel, error) {
	ip := &InputPanel{s: s, surface: surf}
	err := surf.SetRoleOrPost(&scene.FuncRole{
		RoleKind:    scene.RoleInputPanel,
		OnCommitted: func(*scene.Surface, geom.SurfacePoint) { ip.committed() },
	}, protocol.InterfaceDisplay, protocol.DisplayErrorInvalidObject)
	if err != nil {
		return nil, err
	}
	surf.SetLabel("input panel")
	ip.view = s.c.CreateView(surf)
	s.inputPanels = append(s.inputPanels, ip)
	surf.Destroyed.Subscribe(func(*scene.Surface) { ip.destroy() })
	return ip, nil
}

// SetToplevel docks the panel to o, or to the default output when nil.
func (ip *InputPanel) SetToplevel(o *scene.Output) {
	ip.output = o
	if ip.s.showingInputPanel {
		ip.show()
	}
}

func (ip *InputPanel) destroy() {
	ip.s.inputPanels = slices.DeleteFunc(ip.s.inputPanels, func(p *InputPanel) bool { return p == ip })
	ip.view = nil
}

func (ip *InputPanel) committed() {
	if ip.surface.Width() == 0 {
		return
	}
	if ip.s.showingInputPanel {
		ip.show()
	}
}

func (ip *InputPanel) show() {
	if ip.view == nil || ip.surface.Width() == 0 {
		return
	}
	o := ip.output
	if o == nil || o.IsDestroyed() {
		o = ip.s.c.DefaultOutput()
	}
	if o == nil {
		return
	}
	m := o.Mode()
	pos := o.Position()
	size := ip.surface.Size()
	ip.view.SetPosition(pos.X+float64((m.Width-size.W)/2), pos.Y+float64(m.Height-size.H))
	if ip.view.Layer() != ip.s.inputPanelLayer {
		ip.view.MoveToLayer(ip.s.inputPanelLayer)
	}
	ip.surface.Map()
}

// ShowInputPanels is a text input asking for the on-screen keyboard.
func (s *Shell) ShowInputPanels() {
	if s.showingInputPanel {
		return
	}
	s.showingInputPanel = true
	if !s.locked {
		s.inputPanelLayer.SetPosition(scene.LayerPositionTopUI)
	}
	for _, ip := range s.inputPanels {
		ip.show()
	}
}

// HideInputPanels takes every panel off screen.
func (s *Shell) HideInputPanels() {
	if !s.showingInputPanel {
		return
	}
	s.showingInputPanel = false
	if !s.locked {
		s.inputPanelLayer.UnsetPosition()
	}
	for _, v := range s.inputPanelLayer.Views() {
		v.Unmap()
	}
}

// InputPanelsShown reports whether panels are currently requested.
func (s *Shell) InputPanelsShown() bool { return s.showingInputPanel }
