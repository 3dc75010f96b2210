package shell

import (
	"time"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
)

const fadeDuration = time.Second

type fadeType int

const (
	fadeIn fadeType = iota
	fadeOut
)

func (t fadeType) String() string {
	if t == fadeOut {
		return "out"
	}
	return "in"
}

// fadeState is the black curtain covering every output during startup,
// locking and waking.
type fadeState struct {
	curtain      *scene.Curtain
	anim         *animation.Animation
	typ          fadeType
	startupTimer *eventloop.Timer
}

// Fading reports whether the fade curtain is up.
func (s *Shell) Fading() bool { return s.fade.curtain != nil }

// FadeCurtain is the fade curtain, or nil.
func (s *Shell) FadeCurtain() *scene.Curtain { return s.fade.curtain }

// outputsBounds is the union of every output area.
func (s *Shell) outputsBounds() geom.Rect {
	var r geom.Rect
	for i, o := range s.c.Outputs() {
		if i == 0 {
			r = o.Area()
			continue
		}
		r = r.Union(o.Area())
	}
	return r
}

func (s *Shell) createFadeCurtain() *scene.Curtain {
	b := s.outputsBounds()
	return s.c.NewCurtain(scene.CurtainParams{
		Color: scene.ColorBlack,
		Pos:   geom.GlobalPoint{X: float64(b.X), Y: float64(b.Y)},
		Size:  b.Size(),
		Label: "desktop shell fade surface",
	})
}

// fadeInit blacks out the desktop until the helper reports ready or the
// startup timer runs out.
func (s *Shell) fadeInit() {
	if s.cfg.StartupAnimation == animation.None || s.fade.curtain != nil {
		return
	}
	s.fade.curtain = s.createFadeCurtain()
	s.fade.curtain.View.MoveToLayer(s.fadeLayer)
	s.fade.startupTimer = s.loop().AddTimer(s.fadeStartup)
	s.fade.startupTimer.Arm(StartupFadeTimeout)
}

// fadeStartup ends the startup blackout. It runs once.
func (s *Shell) fadeStartup() {
	if s.fade.startupTimer == nil {
		return
	}
	s.fade.startupTimer.Remove()
	s.fade.startupTimer = nil
	s.fadeTo(fadeIn)
}

// fadeTo starts or retargets the fade. A finished fade-out locks; a
// finished fade-in drops the curtain.
func (s *Shell) fadeTo(t fadeType) {
	var tint float32
	if t == fadeOut {
		tint = 1
	}
	s.fade.typ = t

	if s.fade.curtain == nil {
		s.fade.curtain = s.createFadeCurtain()
		s.fade.curtain.View.SetAlpha(1 - tint)
		s.fade.curtain.View.MoveToLayer(s.fadeLayer)
	}

	v := s.fade.curtain.View
	if v.Output() == nil {
		// The last output is gone; there is nothing to fade.
		s.locked = false
		s.dropFadeCurtain()
		return
	}

	if s.fade.anim != nil {
		s.fade.anim.Cancel()
	}
	s.fade.anim = animation.RunFade(s.c, v, v.Alpha(), tint, fadeDuration, s.fadeDone)
}

func (s *Shell) fadeDone() {
	s.fade.anim = nil
	switch s.fade.typ {
	case fadeIn:
		s.dropFadeCurtain()
	case fadeOut:
		s.lock()
	}
}

func (s *Shell) dropFadeCurtain() {
	if s.fade.anim != nil {
		s.fade.anim.Cancel()
		s.fade.anim = nil
	}
	if s.fade.curtain != nil {
		s.fade.curtain.Destroy()
		s.fade.curtain = nil
	}
}

// lock hides every desktop band behind the lock band and puts the outputs
// to sleep. Keyboard focus is dropped until the desktop resumes.
func (s *Shell) lock() {
	if !s.cfg.Locking || s.locked {
		s.c.Sleep()
		return
	}
	s.locked = true

	s.panelLayer.UnsetPosition()
	s.fullscreenLayer.UnsetPosition()
	if s.showingInputPanel {
		s.inputPanelLayer.UnsetPosition()
	}
	s.workspace.UnsetPosition()
	s.lockLayer.SetPosition(scene.LayerPositionLock)

	s.c.Sleep()

	for _, st := range s.seats.Seats() {
		if k := st.Keyboard(); k != nil {
			k.SetFocus(nil)
		}
	}
	s.log.Info("session locked")
}

// unlock runs on wake. A locked session asks the helper for a lock dialog;
// without a helper the desktop resumes right away.
func (s *Shell) unlock() {
	if !s.locked || s.lockSurface != nil {
		s.fadeTo(fadeIn)
		return
	}
	if s.resource == nil {
		s.resumeDesktop()
		return
	}
	if s.prepareEventSent {
		return
	}
	s.resource.client.Send(protocol.PrepareLockSurface{})
	s.prepareEventSent = true
}

// resumeDesktop undoes lock.
func (s *Shell) resumeDesktop() {
	s.lockLayer.UnsetPosition()
	if s.showingInputPanel {
		s.inputPanelLayer.SetPosition(scene.LayerPositionTopUI)
	}
	s.fullscreenLayer.SetPosition(scene.LayerPositionFullscreen)
	s.panelLayer.SetPosition(scene.LayerPositionUI)
	s.workspace.SetPosition(scene.LayerPositionNormal)

	s.focus.restore()

	s.locked = false
	s.fadeTo(fadeIn)
	s.c.DamageAll()
	s.log.Info("session unlocked")
}

// Lock fades out and locks now, as an idle timeout would.
func (s *Shell) Lock() {
	s.idle()
}

// Unlock behaves like a wake-up: the helper is asked for a lock dialog,
// or the desktop resumes when there is none.
func (s *Shell) Unlock() {
	s.unlock()
}

// ForceUnlock wakes the compositor and resumes the desktop even when a
// helper would normally be asked for a lock dialog.
func (s *Shell) ForceUnlock() {
	s.c.WakeUp()
	if s.locked {
		s.log.Warn("forcing unlock")
		s.resumeDesktop()
	}
}

func (s *Shell) lockSurfaceCommitted(surf *scene.Surface) {
	if !surf.HasContent() || surf.IsMapped() {
		return
	}
	surf.Map()
	s.lockView = s.c.CreateView(surf)
	centerOnOutput(s.lockView, s.c.DefaultOutput())
	s.lockView.MoveToLayer(s.lockLayer)
	s.fadeTo(fadeIn)
}

// helperDied drops the helper's binding. A locked desktop resumes since
// nothing is left to show the lock dialog.
func (s *Shell) helperDied() {
	if s.resource != nil {
		s.unbind(s.resource)
	}
}
