package scene

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/signal"
)

// maxRefreshMHz caps output refresh at 1 kHz.
const maxRefreshMHz = 1_000_000

var (
	ErrNoOutput           = errors.New("no such output")
	ErrOutputExists       = errors.New("output name already in use")
	ErrCaptureUnsupported = errors.New("renderer cannot read back pixels")
	ErrOutputDestroyed    = errors.New("output destroyed")
)

// Mode is an output video mode. Refresh is in mHz; zero means the output
// only repaints for captures.
type Mode struct {
	Width   int32
	Height  int32
	Refresh int32
}

func (m Mode) Size() geom.Size { return geom.Size{W: m.Width, H: m.Height} }

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%.3f", m.Width, m.Height, float64(m.Refresh)/1000)
}

// PowerState is the DPMS state of an output.
type PowerState int

const (
	PowerOn PowerState = iota
	PowerOff
)

func (p PowerState) String() string {
	if p == PowerOff {
		return "off"
	}
	return "on"
}

// OutputBackend drives one output. The backend calls FinishFrame when a
// frame submitted by Repaint has been presented.
type OutputBackend interface {
	StartRepaintLoop(o *Output) error
	Repaint(o *Output, damage geom.Region) error
	SetDPMS(o *Output, state PowerState)
	DestroyOutput(o *Output)
}

// BacklightSetter is implemented by backends with backlight control.
type BacklightSetter interface {
	SetBacklight(o *Output, level int32)
}

// Capture is a pending screenshot of an output.
type Capture struct {
	done func(*image.RGBA, error)
}

// Output is a display area in the global coordinate space.
type Output struct {
	ID   uint32
	Name string

	c       *Compositor
	backend OutputBackend
	rb      Renderbuffer

	x, y  int32
	mode  Mode
	power PowerState

	Backlight int32

	repaintStatus RepaintStatus
	repaintNeeded bool
	nextRepaint   time.Time
	frameTime     time.Time
	msc           uint64

	damage *roaring.Bitmap

	// RepaintOnlyOnCapture skips rendering unless a capture is queued.
	RepaintOnlyOnCapture bool
	captures             []*Capture

	destroyed bool

	// Frame fires after every completed repaint with the frame time.
	Frame     signal.Signal[time.Time]
	Destroyed signal.Signal[*Output]
}

// AddOutput registers an output at the right edge of the existing ones.
func (c *Compositor) AddOutput(name string, mode Mode, backend OutputBackend) (*Output, error) {
	if c.OutputByName(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, name)
	}
	var x int32
	for _, o := range c.outputs {
		x = max(x, o.x+o.mode.Width)
	}
	c.nextOutputID++
	o := &Output{
		ID:        c.nextOutputID,
		Name:      name,
		c:         c,
		backend:   backend,
		x:         x,
		mode:      mode,
		Backlight: -1,
		damage:    roaring.New(),
	}
	if _, ok := backend.(BacklightSetter); ok {
		o.Backlight = 255
	}
	if c.renderer != nil {
		rb, err := c.renderer.CreateRenderbuffer(o)
		if err != nil {
			return nil, fmt.Errorf("create renderbuffer for %s: %w", name, err)
		}
		o.rb = rb
	}
	c.outputs = append(c.outputs, o)
	c.log.Info("output added", "output", name, "mode", mode, "x", x)

	for _, v := range c.allViews() {
		v.updateTransform()
	}
	c.OutputCreated.Emit(o)
	o.damageAll()
	return o, nil
}

// RemoveOutput destroys o. Views stay where they are; shells listening to
// OutputDestroyed move them.
func (c *Compositor) RemoveOutput(o *Output) {
	if o.destroyed {
		return
	}
	o.destroyed = true
	for i, other := range c.outputs {
		if other == o {
			c.outputs = append(c.outputs[:i:i], c.outputs[i+1:]...)
			break
		}
	}
	for _, cp := range o.captures {
		cp.done(nil, ErrOutputDestroyed)
	}
	o.captures = nil
	if c.renderer != nil && o.rb != nil {
		c.renderer.DestroyRenderbuffer(o.rb)
		o.rb = nil
	}
	o.backend.DestroyOutput(o)
	for _, v := range c.allViews() {
		v.updateTransform()
	}
	c.log.Info("output removed", "output", o.Name)
	o.Destroyed.Emit(o)
	c.OutputDestroyed.Emit(o)
	c.armRepaintTimer()
}

func (o *Output) Compositor() *Compositor { return o.c }
func (o *Output) Mode() Mode { return o.mode }
func (o *Output) Position() geom.GlobalPoint { return geom.GlobalPoint{X: float64(o.x), Y: float64(o.y)} }
func (o *Output) Power() PowerState { return o.power }
func (o *Output) Renderbuffer() Renderbuffer { return o.rb }
func (o *Output) RepaintStatus() RepaintStatus { return o.repaintStatus }
func (o *Output) FrameTime() time.Time { return o.frameTime }
func (o *Output) MSC() uint64 { return o.msc }
func (o *Output) IsDestroyed() bool { return o.destroyed }
func (o *Output) Backend() OutputBackend { return o.backend }

// Area is the output rectangle in global coordinates.
func (o *Output) Area() geom.Rect {
	return geom.Rect{X: o.x, Y: o.y, W: o.mode.Width, H: o.mode.Height}
}

// RefreshInterval is the frame period for the current mode.
func (o *Output) RefreshInterval() time.Duration {
	mhz := min(o.mode.Refresh, maxRefreshMHz)
	if mhz <= 0 {
		return 0
	}
	return time.Duration(int64(1e12) / int64(mhz))
}

// Contains reports whether p lies on the output.
func (o *Output) Contains(p geom.GlobalPoint) bool { return o.Area().ContainsGlobal(p) }

// SetMode switches the video mode and emits OutputResized.
func (o *Output) SetMode(m Mode) {
	if o.mode == m {
		return
	}
	o.mode = m
	o.damage.Clear()
	if o.c.renderer != nil && o.rb != nil {
		o.c.renderer.DestroyRenderbuffer(o.rb)
		rb, err := o.c.renderer.CreateRenderbuffer(o)
		if err != nil {
			o.c.log.Error("recreate renderbuffer", "output", o.Name, "err", err)
		}
		o.rb = rb
	}
	for _, v := range o.c.allViews() {
		v.updateTransform()
	}
	o.c.log.Info("output resized", "output", o.Name, "mode", m)
	o.c.OutputResized.Emit(o)
	o.damageAll()
}

// Move places the output at (x, y) and emits OutputMoved.
func (o *Output) Move(x, y int32) {
	if o.x == x && o.y == y {
		return
	}
	o.x, o.y = x, y
	for _, v := range o.c.allViews() {
		v.updateTransform()
	}
	o.c.OutputMoved.Emit(o)
	o.damageAll()
}

// SetPower changes the DPMS state. Turning the output on restarts repaint.
func (o *Output) SetPower(state PowerState) {
	if o.power == state {
		return
	}
	o.power = state
	o.backend.SetDPMS(o, state)
	if state == PowerOn {
		o.damageAll()
	}
}

// SetBacklight forwards to the backend when it supports backlight control.
func (o *Output) SetBacklight(level int32) bool {
	bs, ok := o.backend.(BacklightSetter)
	if !ok {
		return false
	}
	o.Backlight = level
	bs.SetBacklight(o, level)
	return true
}

// Capture queues a screenshot taken at the next repaint.
func (o *Output) Capture(done func(*image.RGBA, error)) {
	o.captures = append(o.captures, &Capture{done: done})
	o.damageAll()
}

// PendingCaptures returns the number of queued captures.
func (o *Output) PendingCaptures() int { return len(o.captures) }

func (o *Output) damageAll() {
	o.c.damageRect(o.Area())
}

func (o *Output) String() string { return o.Name }
