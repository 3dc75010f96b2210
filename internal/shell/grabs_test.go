package shell

import (
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMoveStaysBelowTopPanel(t *testing.T) {
	f := newFixture(t)
	r := f.bindHelper(t)
	hc := f.helper.Client()

	panel := f.c.CreateSurface(hc)
	require.NoError(t, r.SetPanel(f.output, panel))
	panel.Attach(scene.NewSHMBuffer(800, 30, scene.FormatARGB8888, nil), geom.SurfacePoint{})
	require.NoError(t, panel.Commit())
	require.Equal(t, geom.Rect{Y: 30, W: 800, H: 570}, f.shell.workArea(f.output))

	ss := f.toplevel(t, 200, 100, 100, 100)
	p := f.seat.Pointer()
	p.MoveTo(at(150, 150))
	p.Button(seat.BtnLeft, true)
	require.Equal(t, ss.DesktopSurface().Surface(), p.Focus().Surface())

	hc.ClearEvents()
	ss.DesktopSurface().Move(f.seat, p.GrabSerial())
	require.True(t, ss.Grabbed())
	assert.Equal(t, []protocol.GrabCursor{{Cursor: uint32(CursorMove)}}, protocol.EventsOf[protocol.GrabCursor](hc))

	f.client.ClearEvents()
	p.MoveTo(at(150, 0))

	assert.Equal(t, at(100, 30), ss.View().Position())
	assert.Empty(t, protocol.EventsOf[protocol.PointerEnter](f.client))
	assert.Empty(t, protocol.EventsOf[protocol.PointerLeave](f.client))

	p.Button(seat.BtnLeft, false)
	assert.Nil(t, p.Grab())
	assert.False(t, ss.Grabbed())
}

func TestClientMoveNeedsMatchingSerial(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 200, 100, 100, 100)
	p := f.seat.Pointer()
	p.MoveTo(at(150, 150))
	p.Button(seat.BtnLeft, true)

	ss.DesktopSurface().Move(f.seat, p.GrabSerial()+100)

	assert.Nil(t, p.Grab())
	assert.False(t, ss.Grabbed())
}

func TestMoveBinding(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 200, 200, 100, 100)
	p := f.seat.Pointer()
	p.MoveTo(at(150, 150))

	f.press(seat.KeyLeftMeta)
	p.Button(seat.BtnLeft, true)
	require.NotNil(t, p.Grab())
	_, ok := p.Grab().Handler().(*moveGrab)
	require.True(t, ok)

	p.MoveTo(at(250, 300))
	assert.Equal(t, at(200, 250), ss.View().Position())

	p.Button(seat.BtnLeft, false)
	f.release(seat.KeyLeftMeta)
	assert.Nil(t, p.Grab())
	assert.False(t, ss.Grabbed())
}

func TestMoveBindingIgnoresMaximized(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 200, 200, 100, 100)
	ss.DesktopSurface().RequestMaximized(true)
	f.commit(t, ss, 800, 600)

	p := f.seat.Pointer()
	p.MoveTo(at(150, 150))
	f.press(seat.KeyLeftMeta)
	p.Button(seat.BtnLeft, true)

	assert.Nil(t, p.Grab())
	assert.Equal(t, at(0, 0), ss.View().Position())
}

func TestResizeBindingFromTopLeft(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 300, 300, 100, 100)
	ds := ss.DesktopSurface()
	p := f.seat.Pointer()
	p.MoveTo(at(110, 110))

	f.press(seat.KeyLeftMeta)
	p.Button(seat.BtnRight, true)
	require.NotNil(t, p.Grab())
	require.True(t, ds.Pending().Resizing)

	p.MoveTo(at(60, 90))
	f.loop.Dispatch()
	cfg := f.lastConfigure(t, f.client)
	assert.True(t, cfg.Resizing)
	assert.Equal(t, int32(350), cfg.Width)
	assert.Equal(t, int32(320), cfg.Height)

	f.commit(t, ss, 350, 320)
	assert.Equal(t, at(50, 80), ss.View().Position(), "right and bottom edges stay put")

	p.Button(seat.BtnRight, false)
	f.release(seat.KeyLeftMeta)
	assert.Nil(t, p.Grab())
	assert.False(t, ds.Pending().Resizing)
	assert.Zero(t, ds.Pending().Width)
}

func TestResizeBindingMiddleDoesNothing(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 300, 300, 100, 100)
	p := f.seat.Pointer()
	p.MoveTo(at(250, 250))

	f.press(seat.KeyLeftMeta)
	p.Button(seat.BtnRight, true)

	assert.Nil(t, p.Grab())
	assert.False(t, ss.DesktopSurface().Pending().Resizing)
}

func TestClientResizeClampsToMinSize(t *testing.T) {
	f := newFixture(t)
	ss := f.window(t, f.client, 300, 300, func(ds *desktop.Surface) {
		require.NoError(t, ds.SetMinSize(250, 250))
	})
	ss.View().SetPosition(100, 100)
	p := f.seat.Pointer()
	p.MoveTo(at(390, 390))
	p.Button(seat.BtnLeft, true)

	require.NoError(t, ss.DesktopSurface().Resize(f.seat, p.GrabSerial(), geom.EdgeRight|geom.EdgeBottom))
	require.NotNil(t, p.Grab())

	p.MoveTo(at(200, 200))
	assert.Equal(t, int32(250), ss.DesktopSurface().Pending().Width)
	assert.Equal(t, int32(250), ss.DesktopSurface().Pending().Height)
}

func TestBusyCursorOverUnresponsiveClient(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 200, 200, 100, 100)
	p := f.seat.Pointer()

	p.MoveTo(at(150, 150))
	pings := protocol.EventsOf[protocol.Ping](f.client)
	require.Len(t, pings, 1)

	f.loop.Advance(desktop.DefaultPingTimeout + time.Millisecond)
	require.NotNil(t, p.Grab())
	_, busy := p.Grab().Handler().(*busyGrab)
	assert.True(t, busy)
	assert.True(t, ss.Unresponsive())
	assert.False(t, ss.Grabbed(), "busy windows stay movable")

	f.shell.Desktop().Client(f.client).Pong(pings[0].Serial)
	assert.Nil(t, p.Grab())
	assert.False(t, ss.Unresponsive())
}

func TestBusyCursorEndsWhenPointerLeaves(t *testing.T) {
	f := newFixture(t)
	f.toplevel(t, 200, 200, 100, 100)
	p := f.seat.Pointer()

	p.MoveTo(at(150, 150))
	f.loop.Advance(desktop.DefaultPingTimeout + time.Millisecond)
	require.NotNil(t, p.Grab())

	p.MoveTo(at(600, 500))
	assert.Nil(t, p.Grab())
}

func TestGrabTargetDestroyedMidGrab(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 200, 200, 100, 100)
	p := f.seat.Pointer()
	p.MoveTo(at(150, 150))
	f.press(seat.KeyLeftMeta)
	p.Button(seat.BtnLeft, true)
	require.NotNil(t, p.Grab())

	ss.DesktopSurface().Destroy()
	p.MoveTo(at(300, 300))
	p.Button(seat.BtnLeft, false)

	assert.Nil(t, p.Grab())
}

func TestRotateBinding(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 200, 200, 100, 100)
	p := f.seat.Pointer()
	// Start right of the center, at angle zero.
	p.MoveTo(at(290, 200))

	f.press(seat.KeyLeftMeta)
	p.Button(seat.BtnMiddle, true)
	require.NotNil(t, p.Grab())
	_, ok := p.Grab().Handler().(*rotateGrab)
	require.True(t, ok)

	assertMaps := func(t *testing.T, from geom.SurfacePoint, want geom.GlobalPoint) {
		t.Helper()
		got := ss.View().ToGlobal(from)
		assert.InDelta(t, want.X, got.X, 1e-9)
		assert.InDelta(t, want.Y, got.Y, 1e-9)
	}

	t.Run("quarter turn below the center", func(t *testing.T) {
		p.MoveTo(at(200, 300))
		assert.True(t, ss.View().HasTransform(ss.rotation.transform))
		assertMaps(t, geom.SurfacePoint{X: 100, Y: 100}, at(200, 200))
		assertMaps(t, geom.SurfacePoint{}, at(300, 100))
		assert.Equal(t, at(100, 100), ss.View().Position(), "center stays put")
	})

	t.Run("dead zone snaps back", func(t *testing.T) {
		p.MoveTo(at(205, 205))
		assert.False(t, ss.View().HasTransform(ss.rotation.transform))
		assertMaps(t, geom.SurfacePoint{}, at(100, 100))
	})

	t.Run("rotation kept after release", func(t *testing.T) {
		p.MoveTo(at(200, 300))
		p.Button(seat.BtnMiddle, false)
		f.release(seat.KeyLeftMeta)

		assert.Nil(t, p.Grab())
		assert.False(t, ss.Grabbed())
		assert.True(t, ss.View().HasTransform(ss.rotation.transform))
		assertMaps(t, geom.SurfacePoint{}, at(300, 100))
		m := ss.rotation.matrix
		assert.InDelta(t, 0, m.A, 1e-9)
		assert.InDelta(t, -1, m.B, 1e-9)
		assert.InDelta(t, 1, m.C, 1e-9)
		assert.InDelta(t, 0, m.D, 1e-9)
	})
}

func TestRotateReleasedInDeadZone(t *testing.T) {
	f := newFixture(t)
	ss := f.toplevel(t, 200, 200, 100, 100)
	p := f.seat.Pointer()
	p.MoveTo(at(290, 200))
	f.press(seat.KeyLeftMeta)
	p.Button(seat.BtnMiddle, true)

	p.MoveTo(at(200, 300))
	p.MoveTo(at(210, 200))
	p.Button(seat.BtnMiddle, false)

	assert.Nil(t, p.Grab())
	assert.False(t, ss.View().HasTransform(ss.rotation.transform))
	assert.True(t, ss.rotation.matrix.IsIdentity())
}

func TestMoveClearsTiling(t *testing.T) {
	tests := []struct {
		name  string
		start func(t *testing.T, f *fixture, ss *Surface)
	}{
		{
			name: "touch",
			start: func(t *testing.T, f *fixture, _ *Surface) {
				f.press(seat.KeyLeftMeta)
				f.seat.Touch().Down(0, at(50, 50))
				require.NotNil(t, f.seat.Touch().Grab())
			},
		},
		{
			name: "tablet",
			start: func(t *testing.T, f *fixture, ss *Surface) {
				tool := f.seat.AddTabletTool("pen")
				tool.ProximityIn(at(50, 50))
				tool.Down()
				f.shell.Move(ss.DesktopSurface(), f.seat, tool.GrabSerial())
				require.NotNil(t, tool.Grab())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ss := f.toplevel(t, 100, 100, 200, 200)
			f.shell.SetTiled(ss, geom.OrientationLeft)
			require.Equal(t, geom.OrientationLeft, ss.DesktopSurface().Pending().Tiled)

			tt.start(t, f, ss)

			assert.Equal(t, geom.OrientationNone, ss.Orientation())
			assert.Equal(t, geom.OrientationNone, ss.DesktopSurface().Pending().Tiled)
		})
	}
}
