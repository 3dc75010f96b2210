// Package animation runs time-based view animations on the event loop.
package animation

import (
	"math"
	"strings"
	"time"

	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
)

// Kind is a configurable animation style.
type Kind string

const (
	None     Kind = "none"
	Zoom     Kind = "zoom"
	Fade     Kind = "fade"
	DimLayer Kind = "dim-layer"
)

// ParseKind reads a configured animation name. Unknown names disable the
// animation.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Zoom, Fade, DimLayer:
		return k
	}
	return None
}

const (
	// Tick is the frame interval animations advance at.
	Tick = 16 * time.Millisecond

	DefaultDuration = 250 * time.Millisecond
)

// Animation drives a frame function from 0 to 1 over its duration.
type Animation struct {
	loop     *eventloop.Loop
	timer    *eventloop.Timer
	start    time.Time
	duration time.Duration
	frame    func(p float64)
	done     func()
	sub      *signal.Subscription[*scene.View]
	finished bool
}

// Run starts an animation on view v. frame receives eased progress; done
// runs once when the animation ends, is stopped, or v is destroyed.
func Run(c *scene.Compositor, v *scene.View, d time.Duration, frame func(p float64), done func()) *Animation {
	loop := c.Loop()
	a := &Animation{
		loop:     loop,
		start:    loop.Now(),
		duration: d,
		frame:    frame,
		done:     done,
	}
	a.timer = loop.AddTimer(a.tick)
	if v != nil {
		a.sub = v.Destroyed.Subscribe(func(*scene.View) { a.finish(false) })
	}
	if d <= 0 {
		a.finish(true)
		return a
	}
	frame(0)
	a.timer.Arm(Tick)
	return a
}

func (a *Animation) Finished() bool { return a.finished }

// Stop jumps to the end state and runs done.
func (a *Animation) Stop() { a.finish(true) }

// Cancel ends the animation where it is, without the final frame or done.
func (a *Animation) Cancel() {
	a.done = nil
	a.finish(false)
}

func (a *Animation) tick() {
	p := float64(a.loop.Now().Sub(a.start)) / float64(a.duration)
	if p >= 1 {
		a.finish(true)
		return
	}
	a.frame(ease(p))
	a.timer.Arm(Tick)
}

func (a *Animation) finish(last bool) {
	if a.finished {
		return
	}
	a.finished = true
	a.timer.Remove()
	a.sub.Cancel()
	if last {
		a.frame(1)
	}
	if a.done != nil {
		a.done()
	}
}

// ease is a cubic ease-out.
func ease(p float64) float64 {
	return 1 - math.Pow(1-p, 3)
}

func lerp(a, b float32, p float64) float32 {
	return a + (b-a)*float32(p)
}

// RunFade animates the alpha of v.
func RunFade(c *scene.Compositor, v *scene.View, from, to float32, d time.Duration, done func()) *Animation {
	return Run(c, v, d, func(p float64) { v.SetAlpha(lerp(from, to, p)) }, done)
}

// RunZoom scales v about its center while fading it. The scale transform is
// removed when the animation ends.
func RunZoom(c *scene.Compositor, v *scene.View, fromScale, toScale, fromAlpha, toAlpha float32, d time.Duration, done func()) *Animation {
	t := scene.NewTransform(geom.Identity())
	v.AddTransform(t)
	return Run(c, v, d, func(p float64) {
		s := float64(lerp(fromScale, toScale, p))
		size := v.Surface().Size()
		cx, cy := float64(size.W)/2, float64(size.H)/2
		t.Matrix = geom.Translation(-cx, -cy).Then(geom.Scaling(s, s)).Then(geom.Translation(cx, cy))
		v.TransformChanged()
		v.SetAlpha(lerp(fromAlpha, toAlpha, p))
	}, func() {
		if !v.IsDestroyed() {
			v.RemoveTransform(t)
		}
		if done != nil {
			done()
		}
	})
}
