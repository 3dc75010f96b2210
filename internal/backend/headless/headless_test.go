package headless

import (
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompositor() (*scene.Compositor, *eventloop.Loop) {
	loop := eventloop.New(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0))))
	return scene.New(loop, scene.WithRenderer(renderer.NewNoop()), scene.WithIdleTime(0)), loop
}

func TestCreateOutputs(t *testing.T) {
	c, _ := newCompositor()
	b := New(c, Config{Width: 800, Height: 600, Refresh: 60000, Outputs: 2})
	require.NoError(t, b.CreateOutputs())

	outs := c.Outputs()
	require.Len(t, outs, 2)
	assert.Equal(t, "headless-1", outs[0].Name)
	assert.Equal(t, int32(800), outs[1].Area().X)
	assert.False(t, outs[0].RepaintOnlyOnCapture)
	assert.Equal(t, int32(255), outs[0].Backlight)
}

func TestFramesCompleteAtRefresh(t *testing.T) {
	c, loop := newCompositor()
	b := New(c, Config{Refresh: 1_000_000, Outputs: 1})
	require.NoError(t, b.CreateOutputs())
	o := c.Outputs()[0]
	assert.Equal(t, time.Millisecond, o.RefreshInterval())

	loop.Advance(5 * time.Millisecond)
	assert.GreaterOrEqual(t, b.Frames, 1)
	assert.NotZero(t, o.MSC())
}

func TestZeroRefreshRepaintsOnlyOnCapture(t *testing.T) {
	c, loop := newCompositor()
	b := New(c, Config{Refresh: 0, Outputs: 1})
	require.NoError(t, b.CreateOutputs())
	o := c.Outputs()[0]
	assert.True(t, o.RepaintOnlyOnCapture)

	loop.Advance(50 * time.Millisecond)
	assert.Zero(t, c.Renderer().(*renderer.Noop).Repaints)
}

func TestResize(t *testing.T) {
	tests := []struct {
		name       string
		resizeable bool
		wantErr    error
		wantWidth  int32
	}{
		{"resizeable", true, nil, 1280},
		{"fixed", false, ErrNotResizeable, DefaultWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newCompositor()
			b := New(c, Config{Refresh: DefaultRefresh, Outputs: 1, Resizeable: tt.resizeable})
			require.NoError(t, b.CreateOutputs())
			o := c.Outputs()[0]
			err := b.Resize(o, 1280, 720)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantWidth, o.Mode().Width)
		})
	}
}

func TestDPMSAndBacklight(t *testing.T) {
	c, _ := newCompositor()
	b := New(c, DefaultConfig())
	require.NoError(t, b.CreateOutputs())
	o := c.Outputs()[0]

	o.SetPower(scene.PowerOff)
	assert.Equal(t, scene.PowerOff, b.DPMS[o.Name])
	assert.True(t, o.SetBacklight(100))
	assert.Equal(t, int32(100), b.Backlit[o.Name])
}
