package animation

import (
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newView(t *testing.T) (*eventloop.Loop, *scene.Compositor, *scene.View) {
	t.Helper()
	loop := eventloop.New(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0))))
	c := scene.New(loop, scene.WithRenderer(renderer.NewNoop()), scene.WithIdleTime(0))
	cu := c.NewCurtain(scene.CurtainParams{Color: scene.ColorBlack, Size: geom.Size{W: 100, H: 100}, Label: "anim"})
	require.NotNil(t, cu.View)
	return loop, c, cu.View
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"zoom":      Zoom,
		" Fade ":    Fade,
		"dim-layer": DimLayer,
		"none":      None,
		"":          None,
		"spin":      None,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseKind(in))
		})
	}
}

func TestFadeRunsToCompletion(t *testing.T) {
	loop, c, v := newView(t)
	done := 0
	a := RunFade(c, v, 0, 1, 100*time.Millisecond, func() { done++ })
	assert.Equal(t, float32(0), v.Alpha())

	loop.Advance(50 * time.Millisecond)
	assert.Greater(t, v.Alpha(), float32(0))
	assert.Less(t, v.Alpha(), float32(1))
	assert.Zero(t, done)

	loop.Advance(100 * time.Millisecond)
	assert.Equal(t, float32(1), v.Alpha())
	assert.Equal(t, 1, done)
	assert.True(t, a.Finished())
	a.Stop()
	assert.Equal(t, 1, done)
}

func TestZeroDurationFinishesAtOnce(t *testing.T) {
	_, c, v := newView(t)
	done := false
	RunFade(c, v, 1, 0.25, 0, func() { done = true })
	assert.True(t, done)
	assert.Equal(t, float32(0.25), v.Alpha())
}

func TestDestroyedViewEndsAnimation(t *testing.T) {
	loop, c, v := newView(t)
	done := 0
	RunZoom(c, v, 0.5, 1, 0, 1, time.Second, func() { done++ })
	loop.Advance(100 * time.Millisecond)
	v.Destroy()
	assert.Equal(t, 1, done)
	loop.Advance(time.Second)
	assert.Equal(t, 1, done)
}

func TestZoomRemovesTransform(t *testing.T) {
	loop, c, v := newView(t)
	v.SetPosition(10, 10)
	RunZoom(c, v, 0.5, 1, 1, 1, 100*time.Millisecond, nil)
	loop.Advance(20 * time.Millisecond)
	assert.Less(t, v.BoundingBox().W, int32(100))

	loop.Advance(200 * time.Millisecond)
	assert.Equal(t, geom.Rect{X: 10, Y: 10, W: 100, H: 100}, v.BoundingBox())
}

func TestCancelKeepsCurrentAlpha(t *testing.T) {
	loop, c, v := newView(t)
	done := 0
	a := RunFade(c, v, 0, 1, 100*time.Millisecond, func() { done++ })
	loop.Advance(50 * time.Millisecond)
	mid := v.Alpha()

	a.Cancel()
	loop.Advance(100 * time.Millisecond)

	assert.True(t, a.Finished())
	assert.Equal(t, mid, v.Alpha())
	assert.Zero(t, done)
}
