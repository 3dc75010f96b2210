package kiosk

import (
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/backend/headless"
	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	loop    *eventloop.Loop
	c       *scene.Compositor
	backend *headless.Backend
	// main is the default output, 1024x768 at the origin. side is
	// 640x480 to its right.
	main, side *scene.Output
	seats      *seat.Manager
	seat       *seat.Seat
	shell      *Shell
	client     *protocol.Client
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	loop := eventloop.New(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0))))
	c := scene.New(loop, scene.WithRenderer(renderer.NewNoop()), scene.WithIdleTime(0))
	b := headless.New(c, headless.Config{Width: 1024, Height: 768, Refresh: 60000, Outputs: 1, Resizeable: true})
	require.NoError(t, b.CreateOutputs())
	side, err := b.AddOutput("headless-2", 640, 480)
	require.NoError(t, err)

	seats := seat.NewManager(c)
	st := seats.AddSeat("seat0")
	_, err = st.InitPointer()
	require.NoError(t, err)
	_, err = st.InitKeyboard()
	require.NoError(t, err)
	_, err = st.InitTouch()
	require.NoError(t, err)

	var cfg Config
	for _, m := range mutate {
		m(&cfg)
	}
	f := &fixture{
		loop:    loop,
		c:       c,
		backend: b,
		main:    c.DefaultOutput(),
		side:    side,
		seats:   seats,
		seat:    st,
		client:  protocol.NewClient("app", 77),
	}
	f.shell = New(c, seats, cfg)
	t.Cleanup(func() {
		f.shell.Close()
		seats.Close()
	})
	return f
}

// routeSide sends the given app ids to the side output.
func routeSide(ids ...string) func(*Config) {
	return func(c *Config) {
		c.Outputs = append(c.Outputs, OutputConfig{Name: "headless-2", AppIDs: ids})
	}
}

// configured commits a buffer the size of the newest configure, or w x h
// when the configure leaves the size to the client.
func (f *fixture) configured(t *testing.T, ds *desktop.Surface, w, h int32) {
	t.Helper()
	f.loop.Dispatch()
	serial := ds.LastConfigureSerial()
	require.NotZero(t, serial, "no configure pending")
	require.NoError(t, ds.AckConfigure(serial))
	if p := ds.Pending(); p.Width > 0 && p.Height > 0 {
		w, h = p.Width, p.Height
	}
	s := ds.Surface()
	s.Attach(scene.NewSHMBuffer(w, h, scene.FormatARGB8888, nil), geom.SurfacePoint{})
	require.NoError(t, s.Commit())
	f.loop.Dispatch()
}

// create makes a toplevel and runs setup before its initial commit.
func (f *fixture) create(t *testing.T, setup func(*desktop.Surface)) *Surface {
	t.Helper()
	s := f.c.CreateSurface(f.client)
	ds, err := f.shell.Desktop().CreateToplevel(s)
	require.NoError(t, err)
	return f.mapped(t, ds, 0, 0, setup)
}

func (f *fixture) mapped(t *testing.T, ds *desktop.Surface, w, h int32, setup func(*desktop.Surface)) *Surface {
	t.Helper()
	if setup != nil {
		setup(ds)
	}
	s := ds.Surface()
	require.NoError(t, s.Commit())
	ss := f.shell.FromSurface(s)
	require.NotNil(t, ss)
	f.configured(t, ds, w, h)
	require.True(t, s.IsMapped())
	return ss
}

// app maps a fullscreen root window.
func (f *fixture) app(t *testing.T) *Surface {
	t.Helper()
	return f.create(t, nil)
}

// dialog maps a w x h child of parent.
func (f *fixture) dialog(t *testing.T, parent *Surface, w, h int32) *Surface {
	t.Helper()
	s := f.c.CreateSurface(f.client)
	ds, err := f.shell.Desktop().CreateToplevel(s)
	require.NoError(t, err)
	return f.mapped(t, ds, w, h, func(ds *desktop.Surface) {
		require.NoError(t, ds.SetParent(parent.DesktopSurface()))
	})
}

func (f *fixture) lastConfigure(t *testing.T) protocol.Configure {
	t.Helper()
	cfgs := protocol.EventsOf[protocol.Configure](f.client)
	require.NotEmpty(t, cfgs)
	return cfgs[len(cfgs)-1]
}

func at(x, y float64) geom.GlobalPoint { return geom.GlobalPoint{X: x, Y: y} }
