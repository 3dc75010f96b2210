// Package kiosk is a single-application shell. Every toplevel is shown
// fullscreen, each output displays one surface tree at a time, and
// configured app ids pin applications to outputs.
package kiosk

import (
	"slices"
	"strings"

	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
	"github.com/charmbracelet/log"
)

// OutputConfig routes applications to the named output.
type OutputConfig struct {
	Name       string
	AppIDs     []string
	X11WMName  []string
	X11WMClass []string
}

// Config holds the kiosk settings.
type Config struct {
	// BackgroundColor is 0xAARRGGBB. The alpha byte is ignored; the
	// background is always opaque.
	BackgroundColor uint32
	Outputs         []OutputConfig
}

// SplitAppIDs parses a comma separated app id list. Empty entries are
// dropped.
func SplitAppIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type Option func(*Shell)

func WithDesktopOptions(opts ...desktop.Option) Option {
	return func(s *Shell) { s.dopts = append(s.dopts, opts...) }
}

// Shell implements desktop.API for kiosk use.
type Shell struct {
	desktop.BaseAPI

	c     *scene.Compositor
	seats *seat.Manager
	d     *desktop.Desktop
	cfg   Config
	log   *log.Logger
	dopts []desktop.Option

	backgroundLayer *scene.Layer
	normalLayer     *scene.Layer
	inactiveLayer   *scene.Layer

	outputs []*kioskOutput
	seat    *kioskSeat

	bindings []*seat.Binding
	subs     signal.Bag
}

// kioskSeat is the one seat the kiosk drives.
type kioskSeat struct {
	seat    *seat.Seat
	focused *scene.Surface
}

func New(c *scene.Compositor, seats *seat.Manager, cfg Config, opts ...Option) *Shell {
	s := &Shell{
		c:     c,
		seats: seats,
		cfg:   cfg,
		log:   logger.With("kiosk"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.d = desktop.New(c, seats, s, s.dopts...)

	s.backgroundLayer = c.NewLayer("background")
	s.normalLayer = c.NewLayer("normal")
	s.inactiveLayer = c.NewLayer("inactive")
	s.backgroundLayer.SetPosition(scene.LayerPositionBackground)
	s.inactiveLayer.SetPosition(scene.LayerPositionHidden)
	s.normalLayer.SetPosition(scene.LayerPositionNormal)

	s.subs.Add(c.OutputCreated.Subscribe(s.outputCreated))
	s.subs.Add(c.OutputDestroyed.Subscribe(s.outputDestroyed))
	s.subs.Add(c.OutputResized.Subscribe(s.outputResized))
	s.subs.Add(c.OutputMoved.Subscribe(s.outputMoved))
	s.subs.Add(c.SessionChanged.Subscribe(s.sessionChanged))
	s.subs.Add(seats.SeatAdded.Subscribe(s.seatAdded))
	s.subs.Add(seats.SeatRemoved.Subscribe(s.seatRemoved))

	for _, st := range seats.Seats() {
		s.seatAdded(st)
	}
	for _, o := range c.Outputs() {
		s.outputCreated(o)
	}

	b := seats.Bindings
	s.bindings = append(s.bindings,
		b.AddButton(seat.BtnLeft, 0, s.clickToActivate),
		b.AddButton(seat.BtnRight, 0, s.clickToActivate),
		b.AddTouch(0, s.touchToActivate),
	)
	return s
}

func (s *Shell) Desktop() *desktop.Desktop { return s.d }
func (s *Shell) Compositor() *scene.Compositor { return s.c }
func (s *Shell) BackgroundLayer() *scene.Layer { return s.backgroundLayer }

// NormalLayer holds the active surface tree of every output.
func (s *Shell) NormalLayer() *scene.Layer { return s.normalLayer }

// InactiveLayer holds the trees that lost their output to a newer one.
func (s *Shell) InactiveLayer() *scene.Layer { return s.inactiveLayer }

// Close unregisters bindings and signal handlers and drops the
// backgrounds.
func (s *Shell) Close() {
	for _, b := range s.bindings {
		b.Remove()
	}
	s.bindings = nil
	s.subs.Cancel()
	for _, ko := range slices.Clone(s.outputs) {
		s.destroyOutput(ko)
	}
}

// FocusedSurface is the surface the kiosk seat last activated.
func (s *Shell) FocusedSurface() *scene.Surface {
	if s.seat == nil {
		return nil
	}
	return s.seat.focused
}

func (s *Shell) seatAdded(st *seat.Seat) {
	if s.seat != nil {
		s.log.Warn("multiple seats detected, only the first one is used", "seat", st.Name())
		return
	}
	s.seat = &kioskSeat{seat: st}
}

func (s *Shell) seatRemoved(st *seat.Seat) {
	if s.seat != nil && s.seat.seat == st {
		s.seat = nil
	}
}

// sessionChanged gives input back to the focused surface when the session
// becomes active again.
func (s *Shell) sessionChanged(active bool) {
	if !active || s.seat == nil || s.seat.focused == nil {
		return
	}
	if ss := s.fromSurface(s.seat.focused); ss != nil {
		s.seat.seat.SetKeyboardFocus(ss.ds.Surface())
	}
}

func (s *Shell) clickToActivate(p *seat.Pointer, _ uint32) {
	if p.Grab() != nil || p.Focus() == nil {
		return
	}
	s.activateView(p.Focus(), p.Seat())
}

func (s *Shell) touchToActivate(t *seat.Touch) {
	if t.Grab() != nil || t.Focus() == nil {
		return
	}
	s.activateView(t.Focus(), t.Seat())
}

func (s *Shell) activateView(v *scene.View, st *seat.Seat) {
	ss := s.fromSurface(v.Surface().MainSurface())
	if ss == nil || s.seat == nil || s.seat.seat != st {
		return
	}
	s.activate(ss)
}

// activate gives ss keyboard focus and the activated state, and raises
// its subtree.
func (s *Shell) activate(ss *Surface) {
	ks := s.seat
	surf := ss.ds.Surface()
	ks.seat.SetKeyboardFocus(surf)

	if ks.focused != nil {
		if cur := s.fromSurface(ks.focused); cur != nil {
			cur.focusCount--
			if cur.focusCount == 0 {
				cur.ds.SetActivated(false)
			}
		}
	}
	ks.focused = surf
	ss.focusCount++
	if ss.focusCount == 1 {
		ss.ds.SetActivated(true)
	}

	if ko := s.kioskOutput(ss.output); ko != nil {
		ko.raiseSubtree(ss)
	}
}

// focusedOutput is the output of the keyboard focus, then of the pointer,
// then the default one.
func (s *Shell) focusedOutput() *scene.Output {
	for _, st := range s.seats.Seats() {
		if f := st.KeyboardFocus(); f != nil && f.Output() != nil {
			return f.Output()
		}
	}
	for _, st := range s.seats.Seats() {
		if p := st.Pointer(); p != nil {
			pos := p.Position()
			if o := s.c.OutputAt(pos.X, pos.Y); o != nil {
				return o
			}
		}
	}
	return s.c.DefaultOutput()
}

// centerOnOutput places v in the middle of o.
func centerOnOutput(v *scene.View, o *scene.Output) {
	if o == nil {
		return
	}
	size := v.Surface().Size()
	area := o.Area()
	v.SetPosition(float64(area.X+(area.W-size.W)/2), float64(area.Y+(area.H-size.H)/2))
}
