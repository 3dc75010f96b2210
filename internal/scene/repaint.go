package scene

import (
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/bnema/waycomp/internal/geom"
)

// RepaintStatus is where an output is in its repaint cycle.
type RepaintStatus int

const (
	RepaintNotScheduled RepaintStatus = iota
	RepaintBeginFromIdle
	RepaintScheduled
	RepaintAwaitingCompletion
)

func (s RepaintStatus) String() string {
	switch s {
	case RepaintBeginFromIdle:
		return "begin-from-idle"
	case RepaintScheduled:
		return "scheduled"
	case RepaintAwaitingCompletion:
		return "awaiting-completion"
	}
	return "not-scheduled"
}

// DefaultRepaintWindow is the time reserved before a vblank for rendering.
const DefaultRepaintWindow = 7 * time.Millisecond

// ScheduleRepaint requests a repaint of o. An idle output starts its repaint
// loop from an idle callback so several requests in one dispatch coalesce.
func (c *Compositor) ScheduleRepaint(o *Output) {
	if c.state == StateSleeping || c.state == StateOffscreen || o.destroyed {
		return
	}
	o.repaintNeeded = true
	if o.repaintStatus != RepaintNotScheduled {
		return
	}
	o.repaintStatus = RepaintBeginFromIdle
	c.loop.Post(func() { c.startRepaintLoop(o) })
}

// ScheduleRepaintAll schedules every output.
func (c *Compositor) ScheduleRepaintAll() {
	for _, o := range c.outputs {
		c.ScheduleRepaint(o)
	}
}

func (c *Compositor) startRepaintLoop(o *Output) {
	if o.destroyed || o.repaintStatus != RepaintBeginFromIdle {
		return
	}
	if err := o.backend.StartRepaintLoop(o); err != nil {
		c.log.Debug("start repaint loop failed, finishing frame now", "output", o.Name, "err", err)
		c.FinishFrame(o, time.Time{})
	}
}

// FinishFrame is called by the backend when a frame was presented, or from
// StartRepaintLoop with the last vblank time. A zero stamp means no valid
// timestamp is known and the next repaint happens immediately.
func (c *Compositor) FinishFrame(o *Output, stamp time.Time) {
	if o.destroyed {
		return
	}
	if o.repaintStatus != RepaintBeginFromIdle && o.repaintStatus != RepaintAwaitingCompletion {
		c.log.Warn("finish frame in unexpected state", "output", o.Name, "state", o.repaintStatus)
	}
	now := c.loop.Now()
	if stamp.IsZero() {
		o.nextRepaint = now
	} else {
		o.frameTime = stamp
		o.msc++
		refresh := o.RefreshInterval()
		next := stamp.Add(refresh - c.repaintWindow)
		if refresh > 0 && next.Before(now) {
			// Skip whole frames we already missed.
			missed := now.Sub(next) / refresh
			next = next.Add(missed * refresh)
		}
		if next.Before(now) {
			next = now
		}
		o.nextRepaint = next
	}
	o.repaintStatus = RepaintScheduled
	c.armRepaintTimer()
}

func (c *Compositor) armRepaintTimer() {
	var earliest time.Time
	for _, o := range c.outputs {
		if o.repaintStatus != RepaintScheduled {
			continue
		}
		if earliest.IsZero() || o.nextRepaint.Before(earliest) {
			earliest = o.nextRepaint
		}
	}
	if earliest.IsZero() {
		c.repaintTimer.Disarm()
		return
	}
	c.repaintTimer.ArmAt(earliest)
}

func (c *Compositor) repaintTimerFired() {
	now := c.loop.Now()
	for _, o := range c.outputs {
		if o.repaintStatus != RepaintScheduled || o.nextRepaint.After(now) {
			continue
		}
		c.maybeRepaint(o)
	}
	c.armRepaintTimer()
}

func (c *Compositor) repaintSuppressed(o *Output) bool {
	return c.state == StateSleeping || c.state == StateOffscreen ||
		!c.sessionActive || o.power == PowerOff
}

func (c *Compositor) maybeRepaint(o *Output) {
	if c.repaintSuppressed(o) || !o.repaintNeeded {
		o.repaintStatus = RepaintNotScheduled
		return
	}
	if o.RepaintOnlyOnCapture && len(o.captures) == 0 {
		o.repaintNeeded = false
		o.repaintStatus = RepaintNotScheduled
		return
	}
	if err := c.repaint(o); err != nil {
		c.log.Error("repaint failed", "output", o.Name, "err", err)
		o.repaintStatus = RepaintNotScheduled
		return
	}
	o.repaintNeeded = false
	o.repaintStatus = RepaintAwaitingCompletion
}

// repaint renders one frame of o and delivers frame callbacks for the
// surfaces shown in it.
func (c *Compositor) repaint(o *Output) error {
	damage := o.takeDamage()
	paint := c.PaintList(o)

	if c.renderer != nil && o.rb != nil {
		if err := c.renderer.RepaintOutput(o, damage, o.rb); err != nil {
			return err
		}
	}
	c.completeCaptures(o)
	if err := o.backend.Repaint(o, damage); err != nil {
		return err
	}

	presented := roaring.New()
	msec := uint32(c.loop.Now().UnixMilli())
	for _, v := range paint {
		s := v.surface
		if presented.Contains(s.id) {
			continue
		}
		presented.Add(s.id)
		callbacks := s.frameCallbacks
		s.frameCallbacks = nil
		for _, cb := range callbacks {
			cb.fire(msec)
		}
	}
	c.lastPresented = presented
	o.Frame.Emit(c.loop.Now())
	return nil
}

func (c *Compositor) completeCaptures(o *Output) {
	if len(o.captures) == 0 {
		return
	}
	captures := o.captures
	o.captures = nil
	reader, ok := c.renderer.(PixelReader)
	for _, cp := range captures {
		if !ok {
			cp.done(nil, ErrCaptureUnsupported)
			continue
		}
		cp.done(reader.ReadPixels(o, o.rb))
	}
}

// Presented reports whether s was part of the most recent repaint.
func (c *Compositor) Presented(s *Surface) bool {
	return c.lastPresented != nil && c.lastPresented.Contains(s.id)
}

// PaintList returns the mapped views overlapping o, back to front.
func (c *Compositor) PaintList(o *Output) []*View {
	stack := c.ViewStack()
	out := make([]*View, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		v := stack[i]
		if o == nil || v.OnOutput(o) {
			out = append(out, v)
		}
	}
	return out
}

// ViewStack returns every mapped view of every drawn layer, front to back,
// with sub-surfaces expanded in place.
func (c *Compositor) ViewStack() []*View {
	var out []*View
	for _, l := range c.layers {
		if !l.Drawn() {
			continue
		}
		for _, v := range l.views {
			out = appendViewTree(out, v)
		}
	}
	return out
}

// appendViewTree adds v and its child views, topmost first.
func appendViewTree(out []*View, v *View) []*View {
	if !v.mapped {
		return out
	}
	order := v.surface.order
	for i := len(order) - 1; i >= 0; i-- {
		s := order[i]
		if s == v.surface {
			out = append(out, v)
			continue
		}
		for _, child := range v.children {
			if child.surface == s {
				out = appendViewTree(out, child)
			}
		}
	}
	return out
}

// PickView returns the topmost view accepting input at p and the point in
// its surface-local coordinates.
func (c *Compositor) PickView(p geom.GlobalPoint) (*View, geom.SurfacePoint) {
	for _, v := range c.ViewStack() {
		if v.ContainsGlobal(p) {
			return v, v.FromGlobal(p)
		}
	}
	return nil, geom.SurfacePoint{}
}
