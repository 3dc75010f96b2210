// Package shell is the desktop shell. It places toplevels, tracks focus and
// activation per seat, runs the interactive move/resize/rotate grabs and the
// window switcher, owns locking and fades, and serves the desktop shell
// protocol the helper client uses for backgrounds, panels and the lock
// dialog.
package shell

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/helper"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// StartupFadeTimeout is how long the startup curtain waits for the helper
// to report ready.
const StartupFadeTimeout = 15 * time.Second

// PanelPosition is the screen edge the panel is docked to.
type PanelPosition uint32

const (
	PanelTop PanelPosition = iota
	PanelBottom
	PanelLeft
	PanelRight
)

func (p PanelPosition) String() string {
	switch p {
	case PanelTop:
		return "top"
	case PanelBottom:
		return "bottom"
	case PanelLeft:
		return "left"
	case PanelRight:
		return "right"
	}
	return fmt.Sprintf("panel-position(%d)", uint32(p))
}

// ParsePanelPosition reads a configured panel edge.
func ParsePanelPosition(s string) (PanelPosition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "top":
		return PanelTop, nil
	case "bottom":
		return PanelBottom, nil
	case "left":
		return PanelLeft, nil
	case "right":
		return PanelRight, nil
	}
	return PanelTop, fmt.Errorf("unknown panel position %q", s)
}

// Config holds the [shell] settings.
type Config struct {
	Client                    string
	AllowZap                  bool
	DisallowOutputChangedMove bool
	BindingModifier           seat.Modifier
	Animation                 animation.Kind
	CloseAnimation            animation.Kind
	StartupAnimation          animation.Kind
	FocusAnimation            animation.Kind
	PanelPosition             PanelPosition
	// Locking makes an idle fade-out lock the session. Without it the
	// outputs only go to sleep.
	Locking bool
}

func DefaultConfig() Config {
	return Config{
		AllowZap:         true,
		BindingModifier:  seat.ModSuper,
		Animation:        animation.None,
		CloseAnimation:   animation.Fade,
		StartupAnimation: animation.Fade,
		FocusAnimation:   animation.None,
		PanelPosition:    PanelTop,
		Locking:          true,
	}
}

// sanitize drops animation kinds that make no sense where they are used.
func (c Config) sanitize(l *log.Logger) Config {
	if c.StartupAnimation != animation.None && c.StartupAnimation != animation.Fade {
		l.Warn("invalid startup animation", "type", c.StartupAnimation)
		c.StartupAnimation = animation.None
	}
	if c.FocusAnimation != animation.None && c.FocusAnimation != animation.DimLayer {
		l.Warn("invalid focus animation", "type", c.FocusAnimation)
		c.FocusAnimation = animation.None
	}
	return c
}

type Option func(*Shell)

// WithRand fixes the source used for initial window placement.
func WithRand(r *rand.Rand) Option {
	return func(s *Shell) { s.rand = r }
}

// WithHelper ties the shell to a helper launcher. Only its client may bind
// the desktop shell protocol.
func WithHelper(l *helper.Launcher) Option {
	return func(s *Shell) { s.helper = l }
}

func WithDesktopOptions(opts ...desktop.Option) Option {
	return func(s *Shell) { s.dopts = append(s.dopts, opts...) }
}

// WithKiller replaces the function used by the force-kill binding.
func WithKiller(kill func(pid int) error) Option {
	return func(s *Shell) { s.kill = kill }
}

// WithPID sets the compositor's own pid, which force-kill never targets.
func WithPID(pid int) Option {
	return func(s *Shell) { s.pid = pid }
}

// Shell implements desktop.API for a classic desktop.
type Shell struct {
	desktop.BaseAPI

	c     *scene.Compositor
	seats *seat.Manager
	d     *desktop.Desktop
	cfg   Config
	log   *log.Logger
	rand  *rand.Rand
	dopts []desktop.Option

	helper *helper.Launcher
	pid    int
	kill   func(pid int) error

	fadeLayer       *scene.Layer
	lockLayer       *scene.Layer
	inputPanelLayer *scene.Layer
	fullscreenLayer *scene.Layer
	panelLayer      *scene.Layer
	workspace       *scene.Layer
	backgroundLayer *scene.Layer
	minimizedLayer  *scene.Layer

	surfaces  []*Surface
	backdrops map[*scene.Surface]*Surface
	outputs   map[*scene.Output]*shellOutput
	shSeats   map[*seat.Seat]*shellSeat
	focus     *focusStates

	panelPosition     PanelPosition
	locked            bool
	prepareEventSent  bool
	lockSurface       *scene.Surface
	lockView          *scene.View
	grabSurface       *scene.Surface
	grabView          *scene.View
	resource          *Resource
	showingInputPanel bool
	inputPanels       []*InputPanel

	fade fadeState

	bindings []*seat.Binding
	subs     signal.Bag
}

// New creates the shell, its layers and its bindings, and adopts the
// outputs and seats that already exist.
func New(c *scene.Compositor, seats *seat.Manager, cfg Config, opts ...Option) *Shell {
	s := &Shell{
		c:         c,
		seats:     seats,
		log:       logger.With("shell"),
		rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		pid:       os.Getpid(),
		kill:      func(pid int) error { return unix.Kill(pid, unix.SIGKILL) },
		backdrops: map[*scene.Surface]*Surface{},
		outputs:   map[*scene.Output]*shellOutput{},
		shSeats:   map[*seat.Seat]*shellSeat{},
	}
	s.cfg = cfg.sanitize(s.log)
	s.panelPosition = s.cfg.PanelPosition
	for _, opt := range opts {
		opt(s)
	}
	s.d = desktop.New(c, seats, s, s.dopts...)
	s.focus = newFocusStates(s)

	s.fadeLayer = c.NewLayer("fade")
	s.lockLayer = c.NewLayer("lock")
	s.inputPanelLayer = c.NewLayer("input-panel")
	s.fullscreenLayer = c.NewLayer("fullscreen")
	s.panelLayer = c.NewLayer("panel")
	s.workspace = c.NewLayer("workspace")
	s.backgroundLayer = c.NewLayer("background")
	s.minimizedLayer = c.NewLayer("minimized")

	s.fadeLayer.SetPosition(scene.LayerPositionFade)
	s.fullscreenLayer.SetPosition(scene.LayerPositionFullscreen)
	s.panelLayer.SetPosition(scene.LayerPositionUI)
	s.workspace.SetPosition(scene.LayerPositionNormal)
	s.backgroundLayer.SetPosition(scene.LayerPositionBackground)
	s.minimizedLayer.SetPosition(scene.LayerPositionHidden)

	s.subs.Add(c.Idle.Subscribe(func(*scene.Compositor) { s.idle() }))
	s.subs.Add(c.Wake.Subscribe(func(*scene.Compositor) { s.unlock() }))
	s.subs.Add(c.SessionChanged.Subscribe(s.sessionChanged))
	s.subs.Add(c.OutputCreated.Subscribe(s.outputCreated))
	s.subs.Add(c.OutputDestroyed.Subscribe(s.outputDestroyed))
	s.subs.Add(c.OutputResized.Subscribe(s.outputResized))
	s.subs.Add(c.OutputMoved.Subscribe(s.outputMoved))
	s.subs.Add(seats.SeatAdded.Subscribe(s.seatAdded))
	s.subs.Add(seats.SeatRemoved.Subscribe(s.seatRemoved))
	s.subs.Add(seats.ToolAdded.Subscribe(s.toolAdded))

	if s.helper != nil {
		s.subs.Add(s.helper.Died.Subscribe(func(*protocol.Client) { s.helperDied() }))
	}

	for _, o := range c.Outputs() {
		s.outputCreated(o)
	}
	for _, st := range seats.Seats() {
		s.seatAdded(st)
		for _, tool := range st.TabletTools() {
			s.toolAdded(tool)
		}
	}

	s.addBindings()
	s.fadeInit()
	return s
}

func (s *Shell) Desktop() *desktop.Desktop { return s.d }
func (s *Shell) Compositor() *scene.Compositor { return s.c }
func (s *Shell) Config() Config { return s.cfg }
func (s *Shell) Locked() bool { return s.locked }
func (s *Shell) PanelPosition() PanelPosition { return s.panelPosition }

// Workspace is the NORMAL band holding ordinary toplevels.
func (s *Shell) Workspace() *scene.Layer { return s.workspace }

func (s *Shell) FullscreenLayer() *scene.Layer { return s.fullscreenLayer }
func (s *Shell) MinimizedLayer() *scene.Layer { return s.minimizedLayer }
func (s *Shell) BackgroundLayer() *scene.Layer { return s.backgroundLayer }
func (s *Shell) PanelLayer() *scene.Layer { return s.panelLayer }
func (s *Shell) LockLayer() *scene.Layer { return s.lockLayer }
func (s *Shell) FadeLayer() *scene.Layer { return s.fadeLayer }
func (s *Shell) InputPanelLayer() *scene.Layer { return s.inputPanelLayer }

// Surfaces returns the shell surfaces in creation order.
func (s *Shell) Surfaces() []*Surface {
	return append([]*Surface(nil), s.surfaces...)
}

// Close unregisters bindings and signal handlers.
func (s *Shell) Close() {
	for _, b := range s.bindings {
		b.Remove()
	}
	s.bindings = nil
	s.subs.Cancel()
	s.focus.clear()
	if s.fade.startupTimer != nil {
		s.fade.startupTimer.Remove()
		s.fade.startupTimer = nil
	}
}

func (s *Shell) loop() *eventloop.Loop { return s.c.Loop() }

// idle cancels every desktop grab and fades out. The fade-out locks when it
// completes.
func (s *Shell) idle() {
	for _, st := range s.seats.Seats() {
		breakDesktopGrabs(st)
	}
	s.fadeTo(fadeOut)
}

func breakDesktopGrabs(st *seat.Seat) {
	if p := st.Pointer(); p != nil {
		p.CancelGrab()
	}
	if k := st.Keyboard(); k != nil {
		k.CancelGrab()
	}
	if t := st.Touch(); t != nil {
		t.CancelGrab()
	}
	for _, tool := range st.TabletTools() {
		tool.CancelGrab()
	}
}

// sessionChanged re-sends activation to every seat's focused surface when
// the session comes back.
func (s *Shell) sessionChanged(active bool) {
	if !active {
		return
	}
	for st, ss := range s.shSeats {
		if ss.focused == nil {
			continue
		}
		sh := s.fromSurface(ss.focused)
		if sh == nil {
			continue
		}
		s.activate(sh.view, st, activateConfigure)
	}
}

// focusedOutput is where new windows without a better hint go: the output
// of a keyboard focus, then of a pointer, then the default.
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

// workArea is the output area minus the panel on it.
func (s *Shell) workArea(o *scene.Output) geom.Rect {
	if o == nil {
		return geom.Rect{}
	}
	area := o.Area()
	so := s.outputs[o]
	if so == nil || so.panelView == nil || !so.panelView.IsMapped() {
		return area
	}
	ps := so.panelSurface.Size()
	switch s.panelPosition {
	case PanelTop:
		area.Y += ps.H
		area.H -= ps.H
	case PanelBottom:
		area.H -= ps.H
	case PanelLeft:
		area.X += ps.W
		area.W -= ps.W
	case PanelRight:
		area.W -= ps.W
	}
	return area
}

// centerOnOutput places v in the middle of o, or at the origin without one.
func centerOnOutput(v *scene.View, o *scene.Output) {
	if o == nil {
		v.SetPosition(0, 0)
		return
	}
	size := v.Surface().Size()
	m := o.Mode()
	pos := o.Position()
	v.SetPosition(pos.X+float64((m.Width-size.W)/2), pos.Y+float64((m.Height-size.H)/2))
}
