package shell

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/backend/headless"
	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/helper"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid  int
	exit chan error
}

func (p *fakeProcess) Pid() int    { return p.pid }
func (p *fakeProcess) Wait() error { return <-p.exit }

func (p *fakeProcess) Kill() error {
	select {
	case p.exit <- errors.New("signal: killed"):
	default:
	}
	return nil
}

type fakeSpawner struct {
	procs []*fakeProcess
}

func (s *fakeSpawner) Spawn(string, ...string) (helper.Process, error) {
	p := &fakeProcess{pid: 4000 + len(s.procs), exit: make(chan error, 1)}
	s.procs = append(s.procs, p)
	return p, nil
}

// animationSettle is long enough for any one-shot shell animation.
const animationSettle = animation.DefaultDuration + 2*animation.Tick

type fixture struct {
	loop    *eventloop.Loop
	c       *scene.Compositor
	backend *headless.Backend
	output  *scene.Output
	seats   *seat.Manager
	seat    *seat.Seat
	spawner *fakeSpawner
	helper  *helper.Launcher
	shell   *Shell
	client  *protocol.Client
	kills   []int
}

// testConfig turns off the animations that would otherwise keep surfaces
// and curtains alive across a test.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StartupAnimation = animation.None
	cfg.CloseAnimation = animation.None
	return cfg
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	loop := eventloop.New(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0))))
	c := scene.New(loop, scene.WithRenderer(renderer.NewNoop()), scene.WithIdleTime(0))
	b := headless.New(c, headless.Config{Width: 800, Height: 600, Refresh: 60000, Outputs: 1, Resizeable: true})
	require.NoError(t, b.CreateOutputs())

	seats := seat.NewManager(c)
	st := seats.AddSeat("seat0")
	_, err := st.InitPointer()
	require.NoError(t, err)
	_, err = st.InitKeyboard()
	require.NoError(t, err)
	_, err = st.InitTouch()
	require.NoError(t, err)

	sp := &fakeSpawner{}
	l := helper.New(loop, "/usr/libexec/waycomp-shell", helper.WithSpawner(sp))
	require.NoError(t, l.Start())

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	f := &fixture{
		loop:    loop,
		c:       c,
		backend: b,
		output:  c.DefaultOutput(),
		seats:   seats,
		seat:    st,
		spawner: sp,
		helper:  l,
		client:  protocol.NewClient("app", 77),
	}
	f.shell = New(c, seats, cfg,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithHelper(l),
		WithPID(1),
		WithKiller(func(pid int) error {
			f.kills = append(f.kills, pid)
			return nil
		}),
	)
	t.Cleanup(func() {
		f.shell.Close()
		l.Stop()
		seats.Close()
	})
	return f
}

func (f *fixture) bindHelper(t *testing.T) *Resource {
	t.Helper()
	r, err := f.shell.Bind(f.helper.Client())
	require.NoError(t, err)
	return r
}

// ack runs pending idle work and acknowledges the newest configure.
func (f *fixture) ack(t *testing.T, ds *desktop.Surface) {
	t.Helper()
	f.loop.Dispatch()
	serial := ds.LastConfigureSerial()
	require.NotZero(t, serial, "no configure pending")
	require.NoError(t, ds.AckConfigure(serial))
}

// commit acks the newest configure and commits a w x h buffer.
func (f *fixture) commit(t *testing.T, ss *Surface, w, h int32) {
	t.Helper()
	f.ack(t, ss.ds)
	s := ss.ds.Surface()
	s.Attach(scene.NewSHMBuffer(w, h, scene.FormatARGB8888, nil), geom.SurfacePoint{})
	require.NoError(t, s.Commit())
}

// window creates a toplevel for client. setup runs before the first
// buffer is committed, so requests made there take effect on map.
func (f *fixture) window(t *testing.T, client *protocol.Client, w, h int32, setup func(ds *desktop.Surface)) *Surface {
	t.Helper()
	s := f.c.CreateSurface(client)
	ds, err := f.shell.Desktop().CreateToplevel(s)
	require.NoError(t, err)
	if setup != nil {
		setup(ds)
	}
	require.NoError(t, s.Commit())
	ss := f.shell.FromSurface(s)
	require.NotNil(t, ss)
	f.commit(t, ss, w, h)
	f.loop.Dispatch()
	require.True(t, s.IsMapped())
	return ss
}

// toplevel maps a plain w x h window at (x, y).
func (f *fixture) toplevel(t *testing.T, w, h int32, x, y float64) *Surface {
	t.Helper()
	ss := f.window(t, f.client, w, h, nil)
	ss.View().SetPosition(x, y)
	return ss
}

func (f *fixture) fullscreen(t *testing.T, client *protocol.Client) *Surface {
	t.Helper()
	m := f.output.Mode()
	return f.window(t, client, m.Width, m.Height, func(ds *desktop.Surface) {
		ds.RequestFullscreen(true, nil)
	})
}

func (f *fixture) press(keys ...uint32) {
	k := f.seat.Keyboard()
	for _, key := range keys {
		k.Key(key, true)
	}
}

func (f *fixture) release(keys ...uint32) {
	k := f.seat.Keyboard()
	for i := len(keys) - 1; i >= 0; i-- {
		k.Key(keys[i], false)
	}
}

// chord presses and releases keys in order, releasing in reverse.
func (f *fixture) chord(keys ...uint32) {
	f.press(keys...)
	f.release(keys...)
}

func (f *fixture) lastConfigure(t *testing.T, c *protocol.Client) protocol.Configure {
	t.Helper()
	cfgs := protocol.EventsOf[protocol.Configure](c)
	require.NotEmpty(t, cfgs)
	return cfgs[len(cfgs)-1]
}

// lockNow fades out and waits for the lock to take hold.
func (f *fixture) lockNow(t *testing.T) {
	t.Helper()
	f.shell.Lock()
	f.loop.Advance(fadeDuration + animation.Tick)
	require.True(t, f.shell.Locked())
}

func at(x, y float64) geom.GlobalPoint { return geom.GlobalPoint{X: x, Y: y} }
