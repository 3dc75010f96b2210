// Package scene is the compositor core: surfaces and their commit cycle,
// views placed in stacking layers, outputs and the per-output repaint loop.
//
// Everything here runs on the event loop. Nothing is safe for concurrent use.
package scene

import (
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/signal"
	"github.com/charmbracelet/log"
)

// State is the compositor power state.
type State int

const (
	StateActive State = iota
	StateIdle
	StateOffscreen
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffscreen:
		return "offscreen"
	case StateSleeping:
		return "sleeping"
	}
	return "active"
}

// DefaultIdleTime is how long without input before the compositor goes idle.
const DefaultIdleTime = 300 * time.Second

// Compositor owns outputs, layers and surfaces.
type Compositor struct {
	loop     *eventloop.Loop
	log      *log.Logger
	renderer Renderer

	layers   []*Layer
	outputs  []*Output
	surfaces map[uint32]*Surface

	nextSurfaceID uint32
	nextOutputID  uint32

	state         State
	sessionActive bool
	idleTime      time.Duration
	idleInhibit   int
	idleTimer     *eventloop.Timer

	repaintWindow time.Duration
	repaintTimer  *eventloop.Timer
	lastPresented *roaring.Bitmap

	Idle            signal.Signal[*Compositor]
	Wake            signal.Signal[*Compositor]
	SessionChanged  signal.Signal[bool]
	ViewUnmapped    signal.Signal[*View]
	SurfaceUnmapped signal.Signal[*Surface]
	OutputCreated   signal.Signal[*Output]
	OutputDestroyed signal.Signal[*Output]
	OutputResized   signal.Signal[*Output]
	OutputMoved     signal.Signal[*Output]
}

// Option configures a Compositor.
type Option func(*Compositor)

func WithRenderer(r Renderer) Option {
	return func(c *Compositor) { c.renderer = r }
}

// WithIdleTime sets the inactivity timeout. Zero disables idling.
func WithIdleTime(d time.Duration) Option {
	return func(c *Compositor) { c.idleTime = d }
}

func WithRepaintWindow(d time.Duration) Option {
	return func(c *Compositor) { c.repaintWindow = d }
}

// New creates a compositor driven by loop.
func New(loop *eventloop.Loop, opts ...Option) *Compositor {
	c := &Compositor{
		loop:          loop,
		log:           logger.With("scene"),
		surfaces:      make(map[uint32]*Surface),
		sessionActive: true,
		idleTime:      DefaultIdleTime,
		repaintWindow: DefaultRepaintWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.repaintTimer = loop.AddTimer(c.repaintTimerFired)
	c.idleTimer = loop.AddTimer(c.idleTimeout)
	c.armIdleTimer()
	return c
}

func (c *Compositor) Loop() *eventloop.Loop { return c.loop }
func (c *Compositor) Renderer() Renderer { return c.renderer }
func (c *Compositor) State() State { return c.state }
func (c *Compositor) SessionActive() bool { return c.sessionActive }
func (c *Compositor) Layers() []*Layer { return slices.Clone(c.layers) }
func (c *Compositor) Outputs() []*Output { return slices.Clone(c.outputs) }
func (c *Compositor) Now() time.Time { return c.loop.Now() }

// SetRenderer replaces the renderer. Existing outputs get new renderbuffers.
func (c *Compositor) SetRenderer(r Renderer) error {
	for _, o := range c.outputs {
		if c.renderer != nil && o.rb != nil {
			c.renderer.DestroyRenderbuffer(o.rb)
		}
		rb, err := r.CreateRenderbuffer(o)
		if err != nil {
			return err
		}
		o.rb = rb
	}
	c.renderer = r
	c.DamageAll()
	return nil
}

// Surface looks a surface up by id.
func (c *Compositor) Surface(id uint32) *Surface { return c.surfaces[id] }

// Surfaces returns live surfaces ordered by id.
func (c *Compositor) Surfaces() []*Surface {
	out := make([]*Surface, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Surface) int { return int(a.id) - int(b.id) })
	return out
}

// OutputByName returns the named output or nil.
func (c *Compositor) OutputByName(name string) *Output {
	for _, o := range c.outputs {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// DefaultOutput is the first output, or nil without outputs.
func (c *Compositor) DefaultOutput() *Output {
	if len(c.outputs) == 0 {
		return nil
	}
	return c.outputs[0]
}

// OutputAt returns the output containing p, or nil.
func (c *Compositor) OutputAt(x, y float64) *Output {
	for _, o := range c.outputs {
		if o.Area().Contains(x, y) {
			return o
		}
	}
	return nil
}

// DestroyClient drops every surface owned by client, as on disconnect.
func (c *Compositor) DestroyClient(client *protocol.Client) {
	for _, s := range c.Surfaces() {
		if s.client == client && !s.gone {
			s.Destroy()
		}
	}
	client.Destroy()
}

func (c *Compositor) allViews() []*View {
	var out []*View
	for _, s := range c.surfaces {
		out = append(out, s.views...)
	}
	return out
}

// ActivityNotify records user input. It wakes an idle compositor and
// restarts the idle timer.
func (c *Compositor) ActivityNotify() {
	switch c.state {
	case StateActive:
		c.armIdleTimer()
	default:
		c.WakeUp()
	}
}

// InhibitIdle stops the idle timer until a matching UninhibitIdle.
func (c *Compositor) InhibitIdle() {
	c.idleInhibit++
	c.idleTimer.Disarm()
}

func (c *Compositor) UninhibitIdle() {
	if c.idleInhibit > 0 {
		c.idleInhibit--
	}
	c.armIdleTimer()
}

func (c *Compositor) armIdleTimer() {
	if c.idleTime <= 0 || c.idleInhibit > 0 {
		c.idleTimer.Disarm()
		return
	}
	c.idleTimer.Arm(c.idleTime)
}

func (c *Compositor) idleTimeout() {
	if c.state != StateActive {
		return
	}
	c.state = StateIdle
	c.log.Debug("idle")
	c.Idle.Emit(c)
}

// WakeUp returns to the active state, powering outputs back on.
func (c *Compositor) WakeUp() {
	prev := c.state
	c.state = StateActive
	if prev == StateSleeping || prev == StateOffscreen || prev == StateIdle {
		for _, o := range c.outputs {
			o.SetPower(PowerOn)
		}
	}
	c.armIdleTimer()
	c.Wake.Emit(c)
	c.DamageAll()
}

// Sleep powers all outputs off and stops repainting.
func (c *Compositor) Sleep() {
	c.state = StateSleeping
	c.idleTimer.Disarm()
	for _, o := range c.outputs {
		o.SetPower(PowerOff)
	}
}

// Offscreen stops repainting while leaving outputs powered.
func (c *Compositor) Offscreen() {
	if c.state == StateSleeping {
		c.WakeUp()
	}
	c.state = StateOffscreen
	c.idleTimer.Disarm()
}

// SetSessionActive records whether the compositor owns the seat session.
func (c *Compositor) SetSessionActive(active bool) {
	if c.sessionActive == active {
		return
	}
	c.sessionActive = active
	c.log.Info("session changed", "active", active)
	c.SessionChanged.Emit(active)
	if active {
		c.DamageAll()
	}
}
