// Package headless is an output backend without real displays. Frames
// complete on a timer at the configured refresh rate.
package headless

import (
	"errors"
	"fmt"

	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/charmbracelet/log"
)

var ErrNotResizeable = errors.New("headless outputs are not resizeable")

const (
	DefaultWidth   = 1024
	DefaultHeight  = 640
	DefaultRefresh = 60000
)

// Config describes the outputs the backend creates at startup. A zero
// Refresh makes outputs repaint only when a capture is pending.
type Config struct {
	Width      int32
	Height     int32
	Refresh    int32
	Outputs    int
	Resizeable bool
}

func DefaultConfig() Config {
	return Config{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Refresh:    DefaultRefresh,
		Outputs:    1,
		Resizeable: true,
	}
}

// Backend owns the headless outputs of one compositor.
type Backend struct {
	c      *scene.Compositor
	cfg    Config
	log    *log.Logger
	timers map[*scene.Output]*eventloop.Timer

	Frames  int
	DPMS    map[string]scene.PowerState
	Backlit map[string]int32
}

func New(c *scene.Compositor, cfg Config) *Backend {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	return &Backend{
		c:       c,
		cfg:     cfg,
		log:     logger.With("headless"),
		timers:  map[*scene.Output]*eventloop.Timer{},
		DPMS:    map[string]scene.PowerState{},
		Backlit: map[string]int32{},
	}
}

func (b *Backend) Config() Config { return b.cfg }

// CreateOutputs adds the configured number of outputs.
func (b *Backend) CreateOutputs() error {
	for i := range max(b.cfg.Outputs, 1) {
		if _, err := b.AddOutput(fmt.Sprintf("headless-%d", i+1), b.cfg.Width, b.cfg.Height); err != nil {
			return err
		}
	}
	return nil
}

// AddOutput creates one output with the configured refresh.
func (b *Backend) AddOutput(name string, w, h int32) (*scene.Output, error) {
	mode := scene.Mode{Width: w, Height: h, Refresh: b.cfg.Refresh}
	o, err := b.c.AddOutput(name, mode, b)
	if err != nil {
		return nil, fmt.Errorf("headless output %s: %w", name, err)
	}
	o.RepaintOnlyOnCapture = b.cfg.Refresh == 0
	b.log.Debug("output created", "output", name, "mode", mode)
	return o, nil
}

// Resize changes the mode of o, as a window-hosted backend would when its
// window is resized.
func (b *Backend) Resize(o *scene.Output, w, h int32) error {
	if !b.cfg.Resizeable {
		return ErrNotResizeable
	}
	m := o.Mode()
	m.Width, m.Height = w, h
	o.SetMode(m)
	return nil
}

func (b *Backend) StartRepaintLoop(o *scene.Output) error {
	b.c.FinishFrame(o, b.c.Now())
	return nil
}

// Repaint completes the frame after one refresh interval.
func (b *Backend) Repaint(o *scene.Output, _ geom.Region) error {
	b.Frames++
	t, ok := b.timers[o]
	if !ok {
		t = b.c.Loop().AddTimer(func() { b.c.FinishFrame(o, b.c.Now()) })
		b.timers[o] = t
	}
	t.Arm(o.RefreshInterval())
	return nil
}

func (b *Backend) SetDPMS(o *scene.Output, state scene.PowerState) {
	b.DPMS[o.Name] = state
}

func (b *Backend) SetBacklight(o *scene.Output, level int32) {
	b.Backlit[o.Name] = level
}

func (b *Backend) DestroyOutput(o *scene.Output) {
	if t, ok := b.timers[o]; ok {
		t.Remove()
		delete(b.timers, o)
	}
}
