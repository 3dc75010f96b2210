package scene

import (
	"image"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frame = 16666666 * time.Nanosecond

func TestRepaintCycle(t *testing.T) {
	f := newFixture(t)
	o := f.output(t, "out", 640, 480)
	assert.Equal(t, RepaintBeginFromIdle, o.RepaintStatus())

	f.loop.Dispatch()
	assert.Equal(t, 1, f.backend.starts)
	assert.Equal(t, RepaintScheduled, o.RepaintStatus())
	assert.Equal(t, f.clock.Now().Add(frame-DefaultRepaintWindow), o.nextRepaint)
	assert.Equal(t, 0, f.renderer.repaints)

	f.loop.Advance(10 * time.Millisecond)
	assert.Equal(t, 1, f.renderer.repaints)
	assert.Equal(t, RepaintAwaitingCompletion, o.RepaintStatus())
	require.Len(t, f.backend.repaints, 1)
	assert.Equal(t, geom.Rect{W: 640, H: 480}, f.backend.repaints[0].Extents())
	assert.False(t, o.HasDamage())

	// Finish frame arrives, nothing new to draw: the loop goes idle.
	f.loop.Advance(frame + 10*time.Millisecond)
	assert.Equal(t, RepaintNotScheduled, o.RepaintStatus())
	assert.Equal(t, 1, f.renderer.repaints)
	assert.Equal(t, 1, f.backend.starts)
}

func TestFrameCallbackAfterRepaint(t *testing.T) {
	f := newFixture(t)
	o := f.output(t, "out", 640, 480)
	s, v := f.toplevel(t, 100, 100, 10, 10)

	var fired []uint32
	s.Frame(func(msec uint32) { fired = append(fired, msec) })
	cb := s.Frame(nil)
	require.NoError(t, s.Commit())
	assert.Empty(t, fired, "callbacks wait for a repaint")

	f.loop.Advance(20 * time.Millisecond)
	require.Len(t, fired, 1)
	assert.True(t, cb.Fired())
	assert.Len(t, protocol.EventsOf[protocol.FrameDone](f.client), 2)
	assert.True(t, f.c.Presented(s))
	assert.Equal(t, []*View{v}, f.renderer.lastPaint)
	assert.Equal(t, 0, s.PendingFrameCallbacks())
	assert.NotZero(t, o.MSC())
}

func TestFrameCallbackNotFiredForHiddenSurface(t *testing.T) {
	f := newFixture(t)
	f.output(t, "out", 640, 480)
	s, v := f.toplevel(t, 100, 100, 10, 10)
	v.MoveToLayer(nil)

	cb := s.Frame(nil)
	require.NoError(t, s.Commit())
	f.loop.Advance(50 * time.Millisecond)
	assert.False(t, cb.Fired())
	assert.Equal(t, 1, s.PendingFrameCallbacks())
}

func TestFinishFrameTiming(t *testing.T) {
	tests := []struct {
		name  string
		stamp time.Duration
		want  time.Duration
	}{
		{"recent vblank", -5 * time.Millisecond, frame - DefaultRepaintWindow - 5*time.Millisecond},
		{"long ago", -100 * time.Millisecond, 0},
		{"invalid stamp", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.output(t, "out", 640, 480)
			o.repaintStatus = RepaintAwaitingCompletion
			now := f.clock.Now()
			var stamp time.Time
			if tt.stamp != 0 {
				stamp = now.Add(tt.stamp)
			}
			f.c.FinishFrame(o, stamp)
			assert.Equal(t, RepaintScheduled, o.RepaintStatus())
			assert.Equal(t, now.Add(tt.want), o.nextRepaint)
		})
	}
}

func TestStartRepaintLoopFailureRepaintsNow(t *testing.T) {
	f := newFixture(t)
	f.backend.failStart = true
	o := f.output(t, "out", 640, 480)

	f.loop.Dispatch()
	assert.Equal(t, 1, f.renderer.repaints)
	assert.Equal(t, RepaintAwaitingCompletion, o.RepaintStatus())
}

func TestRepaintSuppressed(t *testing.T) {
	tests := []struct {
		name    string
		suspend func(f *fixture, o *Output)
		resume  func(f *fixture, o *Output)
	}{
		{
			"power off",
			func(_ *fixture, o *Output) { o.SetPower(PowerOff) },
			func(_ *fixture, o *Output) { o.SetPower(PowerOn) },
		},
		{
			"session inactive",
			func(f *fixture, _ *Output) { f.c.SetSessionActive(false) },
			func(f *fixture, _ *Output) { f.c.SetSessionActive(true) },
		},
		{
			"sleeping",
			func(f *fixture, _ *Output) { f.c.Sleep() },
			func(f *fixture, _ *Output) { f.c.WakeUp() },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.output(t, "out", 640, 480)
			tt.suspend(f, o)
			f.loop.Advance(50 * time.Millisecond)
			assert.Equal(t, 0, f.renderer.repaints)
			assert.Equal(t, RepaintNotScheduled, o.RepaintStatus())

			tt.resume(f, o)
			f.loop.Advance(50 * time.Millisecond)
			assert.Equal(t, 1, f.renderer.repaints)
		})
	}
}

func TestRepaintOnlyOnCapture(t *testing.T) {
	f := newFixture(t)
	o := f.output(t, "out", 320, 240)
	o.RepaintOnlyOnCapture = true

	f.loop.Advance(50 * time.Millisecond)
	assert.Equal(t, 0, f.renderer.repaints)

	var gotErr error
	o.Capture(func(_ *image.RGBA, err error) { gotErr = err })
	f.loop.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, f.renderer.repaints)
	assert.ErrorIs(t, gotErr, ErrCaptureUnsupported)
	assert.Equal(t, 0, o.PendingCaptures())
}

func TestCaptureReadsPixels(t *testing.T) {
	f := newFixture(t, WithRenderer(readingRenderer{newMockRenderer()}))
	o := f.output(t, "out", 320, 240)

	var img *image.RGBA
	o.Capture(func(got *image.RGBA, err error) {
		require.NoError(t, err)
		img = got
	})
	f.loop.Advance(20 * time.Millisecond)
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 320, 240), img.Bounds())
}

func TestDamageTiles(t *testing.T) {
	tests := []struct {
		name   string
		output geom.Size
		damage []geom.Rect
		want   []geom.Rect
	}{
		{
			"single tile",
			geom.Size{W: 800, H: 600},
			[]geom.Rect{{X: 70, Y: 10, W: 10, H: 10}},
			[]geom.Rect{{X: 64, Y: 0, W: 64, H: 64}},
		},
		{
			"run across tiles in a row",
			geom.Size{W: 800, H: 600},
			[]geom.Rect{{X: 60, Y: 0, W: 10, H: 10}},
			[]geom.Rect{{X: 0, Y: 0, W: 128, H: 64}},
		},
		{
			"clipped at the output edge",
			geom.Size{W: 100, H: 100},
			[]geom.Rect{{X: 90, Y: 90, W: 50, H: 50}},
			[]geom.Rect{{X: 64, Y: 64, W: 36, H: 36}},
		},
		{
			"outside the output",
			geom.Size{W: 100, H: 100},
			[]geom.Rect{{X: 200, Y: 0, W: 10, H: 10}},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.output(t, "out", tt.output.W, tt.output.H)
			o.damage.Clear()
			for _, r := range tt.damage {
				f.c.damageRect(r)
			}
			if diff := cmp.Diff(tt.want, o.Damage().Rects()); diff != "" {
				t.Errorf("damage mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDamageFollowsOutputPosition(t *testing.T) {
	f := newFixture(t)
	f.output(t, "left", 128, 128)
	right := f.output(t, "right", 128, 128)
	right.damage.Clear()

	f.c.damageRect(geom.Rect{X: 130, Y: 70, W: 4, H: 4})
	assert.Equal(t, []geom.Rect{{X: 128, Y: 64, W: 64, H: 64}}, right.Damage().Rects())
}
