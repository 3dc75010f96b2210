package seat

import (
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/backend/headless"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	loop   *eventloop.Loop
	c      *scene.Compositor
	m      *Manager
	seat   *Seat
	normal *scene.Layer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loop := eventloop.New(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0))))
	c := scene.New(loop, scene.WithRenderer(renderer.NewNoop()), scene.WithIdleTime(0))
	b := headless.New(c, headless.Config{Width: 800, Height: 600, Refresh: 60000, Outputs: 1})
	require.NoError(t, b.CreateOutputs())
	normal := c.NewLayer("normal")
	normal.SetPosition(scene.LayerPositionNormal)
	m := NewManager(c)
	s := m.AddSeat("seat0")
	_, err := s.InitPointer()
	require.NoError(t, err)
	_, err = s.InitKeyboard()
	require.NoError(t, err)
	_, err = s.InitTouch()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return &fixture{loop: loop, c: c, m: m, seat: s, normal: normal}
}

// window maps a w x h surface for a fresh client at (x, y).
func (f *fixture) window(t *testing.T, name string, x, y float64, w, h int32) *scene.View {
	t.Helper()
	client := protocol.NewClient(name, 0)
	s := f.c.CreateSurface(client)
	require.NoError(t, s.SetRole(&scene.FuncRole{RoleKind: scene.RoleToplevel}))
	v := f.c.CreateView(s)
	s.Attach(scene.NewSHMBuffer(w, h, scene.FormatARGB8888, nil), geom.SurfacePoint{})
	require.NoError(t, s.Commit())
	s.Map()
	v.SetPosition(x, y)
	v.MoveToLayer(f.normal)
	return v
}

func at(x, y float64) geom.GlobalPoint { return geom.GlobalPoint{X: x, Y: y} }

type recordingGrab struct {
	focus    int
	motions  []geom.GlobalPoint
	buttons  []uint32
	axes     int
	canceled int
	endOn    uint32
}

func (g *recordingGrab) Focus(*PointerGrab) { g.focus++ }

func (g *recordingGrab) Motion(pg *PointerGrab, pos geom.GlobalPoint) {
	g.motions = append(g.motions, pos)
}

func (g *recordingGrab) Button(pg *PointerGrab, button uint32, pressed bool) {
	g.buttons = append(g.buttons, button)
	if !pressed && g.endOn == button {
		pg.End()
	}
}

func (g *recordingGrab) Axis(*PointerGrab, uint32, float64) { g.axes++ }
func (g *recordingGrab) Cancel(*PointerGrab) { g.canceled++ }

type recordingKeyGrab struct {
	keys     []uint32
	mods     []Modifier
	canceled int
}

func (g *recordingKeyGrab) Key(_ *KeyboardGrab, key uint32, pressed bool) {
	if pressed {
		g.keys = append(g.keys, key)
	}
}

func (g *recordingKeyGrab) Modifiers(_ *KeyboardGrab, mods Modifier) { g.mods = append(g.mods, mods) }
func (g *recordingKeyGrab) Cancel(*KeyboardGrab) { g.canceled++ }
