package shell

import (
	"errors"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
)

// ErrZapped is the exit reason after the terminate binding.
var ErrZapped = errors.New("compositor terminated by key binding")

const (
	backlightStep = 25
	backlightMin  = 5
	backlightMax  = 255
	opacityStep   = 0.005
)

func (s *Shell) addBindings() {
	b := s.seats.Bindings
	add := func(bd *seat.Binding) { s.bindings = append(s.bindings, bd) }

	if s.cfg.AllowZap {
		add(b.AddKey(seat.KeyBackspace, seat.ModCtrl|seat.ModAlt, func(*seat.Keyboard, uint32) {
			s.log.Info("zap binding, terminating")
			s.loop().Quit(ErrZapped)
		}))
	}

	add(b.AddButton(seat.BtnLeft, 0, s.clickToActivate))
	add(b.AddButton(seat.BtnRight, 0, s.clickToActivate))
	add(b.AddTouch(0, s.touchToActivate))
	add(b.AddTabletTool(seat.BtnTouch, 0, s.toolToActivate))
	add(b.AddKey(seat.KeyBrightnessDown, 0, s.backlightBinding))
	add(b.AddKey(seat.KeyBrightnessUp, 0, s.backlightBinding))

	mod := s.cfg.BindingModifier
	if mod == 0 {
		return
	}

	add(b.AddAxis(seat.AxisVerticalScroll, mod|seat.ModAlt, s.opacityBinding))
	add(b.AddKey(seat.KeyM, mod|seat.ModShift, func(k *seat.Keyboard, _ uint32) {
		if ss := s.fromSurface(k.Focus()); ss != nil {
			s.setMaximized(ss, !ss.ds.Maximized())
		}
	}))
	add(b.AddKey(seat.KeyF, mod|seat.ModShift, func(k *seat.Keyboard, _ uint32) {
		if ss := s.fromSurface(k.Focus()); ss != nil {
			s.setFullscreen(ss, !ss.ds.Fullscreen(), nil)
		}
	}))
	add(b.AddButton(seat.BtnLeft, mod, s.moveBinding))
	add(b.AddTouch(mod, s.touchMoveBinding))
	add(b.AddButton(seat.BtnRight, mod, s.resizeBinding))
	add(b.AddButton(seat.BtnLeft, mod|seat.ModShift, s.resizeBinding))
	add(b.AddButton(seat.BtnMiddle, mod, s.rotateBinding))
	add(b.AddKey(seat.KeyTab, mod, func(k *seat.Keyboard, _ uint32) { s.startSwitcher(k) }))
	add(b.AddKey(seat.KeyF9, mod, s.backlightBinding))
	add(b.AddKey(seat.KeyF10, mod, s.backlightBinding))
	add(b.AddKey(seat.KeyK, mod, s.forceKill))

	for key, o := range map[uint32]geom.Orientation{
		seat.KeyUp:    geom.OrientationTop,
		seat.KeyDown:  geom.OrientationBottom,
		seat.KeyLeft:  geom.OrientationLeft,
		seat.KeyRight: geom.OrientationRight,
	} {
		add(b.AddKey(key, mod|seat.ModShift, func(k *seat.Keyboard, _ uint32) {
			s.SetTiled(s.fromSurface(k.Focus()), o)
		}))
	}
}

func (s *Shell) clickToActivate(p *seat.Pointer, _ uint32) {
	if p.Grab() != nil || p.Focus() == nil {
		return
	}
	s.activateBinding(p.Seat(), p.Focus(), activateClicked|activateConfigure)
}

func (s *Shell) touchToActivate(t *seat.Touch) {
	if t.Grab() != nil || t.Focus() == nil {
		return
	}
	s.activateBinding(t.Seat(), t.Focus(), activateConfigure)
}

func (s *Shell) toolToActivate(tool *seat.TabletTool, _ uint32) {
	if tool.Grab() != nil || tool.Focus() == nil {
		return
	}
	s.activateBinding(tool.Seat(), tool.Focus(), activateConfigure)
}

// activateBinding activates the window under an input device. Clicks on a
// fullscreen backdrop go to its window; anything that is not a window is
// ignored.
func (s *Shell) activateBinding(st *seat.Seat, v *scene.View, flags activateFlags) {
	if owner := s.backdrops[v.Surface()]; owner != nil {
		v = owner.view
	}
	if ss := s.fromSurface(v.Surface()); ss == nil || ss.destroyed {
		return
	}
	s.activate(v, st, flags)
}

func (s *Shell) moveBinding(p *seat.Pointer, _ uint32) {
	if p.Focus() == nil {
		return
	}
	ss := s.fromSurface(p.Focus().Surface())
	if ss == nil || ss.isMaxOrFullscreen() {
		return
	}
	s.surfaceMove(ss, p, false)
}

func (s *Shell) touchMoveBinding(t *seat.Touch) {
	if t.Focus() == nil {
		return
	}
	ss := s.fromSurface(t.Focus().Surface())
	if ss == nil || ss.isMaxOrFullscreen() {
		return
	}
	s.surfaceTouchMove(ss, t)
}

// resizeBinding resizes from the edges of the third of the window that was
// clicked. The middle third picks no edge, so nothing happens there.
func (s *Shell) resizeBinding(p *seat.Pointer, _ uint32) {
	if p.Focus() == nil {
		return
	}
	ss := s.fromSurface(p.Focus().Surface())
	if ss == nil || ss.isMaxOrFullscreen() {
		return
	}
	g := ss.ds.Geometry()
	local := ss.view.FromGlobal(p.GrabPosition())

	var edges geom.Edge
	x, y := int32(local.X), int32(local.Y)
	switch {
	case x < g.X+g.W/3:
		edges |= geom.EdgeLeft
	case x < g.X+2*g.W/3:
	default:
		edges |= geom.EdgeRight
	}
	switch {
	case y < g.Y+g.H/3:
		edges |= geom.EdgeTop
	case y < g.Y+2*g.H/3:
	default:
		edges |= geom.EdgeBottom
	}
	s.surfaceResize(ss, p, edges)
}

func (s *Shell) rotateBinding(p *seat.Pointer, _ uint32) {
	if p.Focus() == nil {
		return
	}
	ss := s.fromSurface(p.Focus().Surface())
	if ss == nil || ss.isMaxOrFullscreen() {
		return
	}
	s.surfaceRotate(ss, p)
}

// opacityBinding fades the window under the pointer with the scroll wheel.
func (s *Shell) opacityBinding(p *seat.Pointer, _ uint32, value float64) {
	if p.Focus() == nil {
		return
	}
	ss := s.fromSurface(p.Focus().Surface())
	if ss == nil {
		return
	}
	a := float64(ss.view.Alpha()) - value*opacityStep
	a = max(opacityStep, min(a, 1))
	ss.view.SetAlpha(float32(a))
}

func (s *Shell) backlightBinding(_ *seat.Keyboard, key uint32) {
	o := s.focusedOutput()
	if o == nil || o.Backlight < 0 {
		return
	}
	level := o.Backlight
	switch key {
	case seat.KeyF9, seat.KeyBrightnessDown:
		level -= backlightStep
	case seat.KeyF10, seat.KeyBrightnessUp:
		level += backlightStep
	}
	level = max(backlightMin, min(level, backlightMax))
	o.SetBacklight(level)
}

// forceKill sends SIGKILL to the client owning keyboard focus. The
// compositor's own clients are spared.
func (s *Shell) forceKill(k *seat.Keyboard, _ uint32) {
	focus := k.Focus()
	if focus == nil || focus.Client() == nil {
		return
	}
	pid := focus.Client().PID
	if pid <= 0 || pid == s.pid {
		return
	}
	if err := s.kill(pid); err != nil {
		s.log.Warn("force kill", "pid", pid, "err", err)
		return
	}
	s.log.Info("force killed client", "pid", pid, "client", focus.Client().Name)
}
