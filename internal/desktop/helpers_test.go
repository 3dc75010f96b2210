package desktop

import (
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/backend/headless"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/stretchr/testify/require"
)

type parentCall struct {
	ds, parent *Surface
}

type mockAPI struct {
	BaseAPI
	added    []*Surface
	removed  []*Surface
	commits  int
	parents  []parentCall
	maximize []bool
	timeouts []*Client
	pongs    []*Client
	onCommit  func(ds *Surface)
	onRemoved func(ds *Surface)
}

func (m *mockAPI) SurfaceAdded(ds *Surface) { m.added = append(m.added, ds) }
func (m *mockAPI) SurfaceRemoved(ds *Surface) {
	m.removed = append(m.removed, ds)
	if m.onRemoved != nil {
		m.onRemoved(ds)
	}
}

func (m *mockAPI) Committed(ds *Surface, _ geom.SurfacePoint) {
	m.commits++
	if m.onCommit != nil {
		m.onCommit(ds)
	}
}

func (m *mockAPI) SetParent(ds, parent *Surface) {
	m.parents = append(m.parents, parentCall{ds, parent})
}

func (m *mockAPI) MaximizedRequested(_ *Surface, on bool) { m.maximize = append(m.maximize, on) }
func (m *mockAPI) PingTimeout(c *Client) { m.timeouts = append(m.timeouts, c) }
func (m *mockAPI) Pong(c *Client) { m.pongs = append(m.pongs, c) }

type fixture struct {
	loop   *eventloop.Loop
	c      *scene.Compositor
	seats  *seat.Manager
	seat   *seat.Seat
	d      *Desktop
	api    *mockAPI
	normal *scene.Layer
	client *protocol.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loop := eventloop.New(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0))))
	c := scene.New(loop, scene.WithRenderer(renderer.NewNoop()), scene.WithIdleTime(0))
	require.NoError(t, headless.New(c, headless.Config{Width: 800, Height: 600, Refresh: 60000, Outputs: 1}).CreateOutputs())
	normal := c.NewLayer("normal")
	normal.SetPosition(scene.LayerPositionNormal)
	seats := seat.NewManager(c)
	s := seats.AddSeat("seat0")
	_, err := s.InitPointer()
	require.NoError(t, err)
	_, err = s.InitKeyboard()
	require.NoError(t, err)
	api := &mockAPI{}
	return &fixture{
		loop:   loop,
		c:      c,
		seats:  seats,
		seat:   s,
		d:      New(c, seats, api),
		api:    api,
		normal: normal,
		client: protocol.NewClient("app", 7),
	}
}

// configure runs the pending idle work and acks the newest configure.
func (f *fixture) configure(t *testing.T, ds *Surface) {
	t.Helper()
	f.loop.Dispatch()
	serial := ds.LastConfigureSerial()
	require.NotZero(t, serial, "no configure pending")
	require.NoError(t, ds.AckConfigure(serial))
}

// toplevel creates a toplevel and maps it with a w x h buffer.
func (f *fixture) toplevel(t *testing.T, w, h int32) *Surface {
	t.Helper()
	s := f.c.CreateSurface(f.client)
	ds, err := f.d.CreateToplevel(s)
	require.NoError(t, err)
	require.NoError(t, s.Commit())
	f.configure(t, ds)
	s.Attach(scene.NewSHMBuffer(w, h, scene.FormatARGB8888, nil), geom.SurfacePoint{})
	require.NoError(t, s.Commit())
	return ds
}

// placed maps a toplevel and gives it a view in the normal layer.
func (f *fixture) placed(t *testing.T, w, h int32, x, y float64) *Surface {
	t.Helper()
	ds := f.toplevel(t, w, h)
	v := ds.CreateView()
	v.SetPosition(x, y)
	ds.Surface().Map()
	v.MoveToLayer(f.normal)
	return ds
}
