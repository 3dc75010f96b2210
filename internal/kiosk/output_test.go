package kiosk

import (
	"testing"

	"github.com/bnema/waycomp/internal/desktop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundPerOutput(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.BackgroundColor = 0x00336699 })

	for _, o := range []*scene.Output{f.main, f.side} {
		t.Run(o.Name, func(t *testing.T) {
			bg := f.shell.Background(o)
			require.NotNil(t, bg)
			assert.Equal(t, f.shell.BackgroundLayer(), bg.View.Layer())
			assert.Equal(t, o.Position(), bg.View.Position())
			assert.Equal(t, o.Mode().Size(), bg.Surface.Size())
			assert.Equal(t, "kiosk shell background surface", bg.Surface.Label())

			buf := bg.Surface.Buffer()
			require.True(t, buf.IsSolid())
			assert.Equal(t, float32(1), buf.Solid.A, "alpha is forced opaque")
			assert.InDelta(t, 0x33/255.0, buf.Solid.R, 1e-6)
		})
	}
}

func TestOutputResizeReconfigures(t *testing.T) {
	f := newFixture(t)
	ss := f.app(t)
	old := f.shell.Background(f.main)

	require.NoError(t, f.backend.Resize(f.main, 800, 600))

	bg := f.shell.Background(f.main)
	require.NotNil(t, bg)
	assert.NotSame(t, old, bg)
	assert.True(t, old.View.IsDestroyed())
	assert.Equal(t, geom.Size{W: 800, H: 600}, bg.Surface.Size())

	f.loop.Dispatch()
	cfg := f.lastConfigure(t)
	assert.True(t, cfg.Fullscreen)
	assert.Equal(t, int32(800), cfg.Width)
	assert.Equal(t, int32(600), cfg.Height)

	f.configured(t, ss.DesktopSurface(), 0, 0)
	assert.Equal(t, at(0, 0), ss.View().Position())
}

func TestOutputMoveShiftsWindows(t *testing.T) {
	f := newFixture(t, routeSide("player"))
	ss := f.create(t, func(ds *desktop.Surface) { ds.SetAppID("player") })
	f.configured(t, ss.DesktopSurface(), 0, 0)
	require.Equal(t, at(1024, 0), ss.View().Position())

	f.side.Move(1024, 100)

	assert.Equal(t, at(1024, 100), ss.View().Position())
	assert.Equal(t, at(1024, 100), f.shell.Background(f.side).View.Position())
	assert.Equal(t, at(0, 0), f.shell.Background(f.main).View.Position())
}

func TestOutputRemoval(t *testing.T) {
	f := newFixture(t, routeSide("player"))
	ss := f.create(t, func(ds *desktop.Surface) { ds.SetAppID("player") })
	bg := f.shell.Background(f.side)

	f.c.RemoveOutput(f.side)

	assert.Nil(t, f.shell.Background(f.side))
	assert.Nil(t, f.shell.ActiveRoot(f.side))
	assert.True(t, bg.View.IsDestroyed())
	assert.Nil(t, ss.Output())
	assert.False(t, ss.IsDestroyed())
}
