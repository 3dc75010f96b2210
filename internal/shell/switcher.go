package shell

import (
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
)

const switcherDimAlpha = 0.25

// switcher is the window cycler. It grabs the keyboard until the binding
// modifier is released, then activates the candidate.
type switcher struct {
	shell     *Shell
	current   *scene.View
	sub       *signal.Subscription[*scene.View]
	minimized []*scene.View
}

func (s *Shell) startSwitcher(k *seat.Keyboard) {
	sw := &switcher{shell: s}
	s.lowerFullscreenLayer(nil)
	k.StartGrab(sw)
	k.SetFocus(nil)
	sw.next()
}

// next advances to the window after the current one, dimming the others.
func (sw *switcher) next() {
	s := sw.shell
	// Minimized windows take part while the switcher runs.
	for _, v := range s.minimizedLayer.Views() {
		v.MoveToLayer(s.workspace)
		sw.minimized = append(sw.minimized, v)
	}

	var first, prev, next *scene.View
	for _, v := range s.workspace.Views() {
		if s.fromView(v) != nil {
			if first == nil {
				first = v
			}
			if prev == sw.current {
				next = v
			}
			prev = v
			v.SetAlpha(switcherDimAlpha)
			continue
		}
		if _, ok := s.backdrops[v.Surface()]; ok {
			v.SetAlpha(switcherDimAlpha)
		}
	}
	if next == nil {
		next = first
	}
	if next == nil {
		return
	}

	if sw.sub != nil {
		sw.sub.Cancel()
	}
	sw.sub = next.Destroyed.Subscribe(func(*scene.View) {
		sw.sub = nil
		sw.current = nil
		sw.next()
	})
	sw.current = next
	for _, v := range next.Surface().Views() {
		v.SetAlpha(1)
	}
	if ss := s.fromView(next); ss != nil && ss.ds.Fullscreen() && ss.blackCurtain != nil {
		ss.blackCurtain.View.SetAlpha(1)
	}
}

func (sw *switcher) finish(kg *seat.KeyboardGrab) {
	s := sw.shell
	for _, v := range s.workspace.Views() {
		if s.focus.isFocusCurtain(v) {
			continue
		}
		v.SetAlpha(1)
	}
	if sw.sub != nil {
		sw.sub.Cancel()
		sw.sub = nil
	}
	if sw.current != nil && s.fromView(sw.current) != nil {
		s.activate(sw.current, kg.Keyboard().Seat(), activateConfigure)
	}
	kg.End()

	for _, v := range sw.minimized {
		if sw.current != nil && v.Surface() == sw.current.Surface() {
			continue
		}
		if !v.IsDestroyed() {
			v.MoveToLayer(s.minimizedLayer)
		}
	}
	sw.minimized = nil
}

func (sw *switcher) Key(_ *seat.KeyboardGrab, key uint32, pressed bool) {
	if key == seat.KeyTab && pressed {
		sw.next()
	}
}

func (sw *switcher) Modifiers(kg *seat.KeyboardGrab, mods seat.Modifier) {
	if mods&sw.shell.cfg.BindingModifier == 0 {
		sw.finish(kg)
	}
}

func (sw *switcher) Cancel(kg *seat.KeyboardGrab) { sw.finish(kg) }
