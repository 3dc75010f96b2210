package eventloop

import (
	"container/heap"
	"time"
)

// Timer is a single-shot timer owned by the loop. It only fires after Arm and
// must be used from the loop goroutine.
type Timer struct {
	loop     *Loop
	fn       func()
	deadline time.Time
	seq      uint64
	index    int
	removed  bool
}

// AddTimer creates a disarmed timer.
func (l *Loop) AddTimer(fn func()) *Timer {
	return &Timer{loop: l, fn: fn, index: -1}
}

// Arm schedules the timer d from now, replacing any previous deadline. A
// non-positive d fires on the next dispatch.
func (t *Timer) Arm(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.ArmAt(t.loop.clock.Now().Add(d))
}

// ArmAt schedules the timer at an absolute deadline.
func (t *Timer) ArmAt(deadline time.Time) {
	if t.removed {
		return
	}
	l := t.loop
	t.deadline = deadline
	l.seq++
	t.seq = l.seq
	if t.index >= 0 {
		heap.Fix(&l.timers, t.index)
	} else {
		heap.Push(&l.timers, t)
	}
	l.wakeup()
}

// Disarm cancels a pending expiry.
func (t *Timer) Disarm() {
	if t.index >= 0 {
		heap.Remove(&t.loop.timers, t.index)
	}
}

// Remove disarms the timer for good; later Arm calls are ignored.
func (t *Timer) Remove() {
	t.Disarm()
	t.removed = true
}

func (t *Timer) Armed() bool { return t.index >= 0 }

func (t *Timer) Deadline() time.Time { return t.deadline }

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
