// Package eventloop is the compositor's single-threaded scheduler. All scene
// mutation happens inside callbacks run by the loop; other goroutines hand
// work over with Post or Call.
package eventloop

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/waycomp/internal/logger"
)

// ErrQuit is returned by Serve after Quit was called without an error.
var ErrQuit = errors.New("event loop quit")

// Loop serializes callbacks and timers.
type Loop struct {
	clock Clock

	mu     sync.Mutex
	posted []func()
	wake   chan struct{}
	quit   bool
	exit   error

	timers timerHeap
	seq    uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

func New(opts ...Option) *Loop {
	l := &Loop{
		clock: realClock{},
		wake:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Now() time.Time { return l.clock.Now() }

// Post queues fn to run on the loop. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.wakeup()
}

// Call runs fn on the loop and waits for its result.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	l.Post(func() { done <- fn() })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quit makes Serve return. A nil err makes Serve return ErrQuit.
func (l *Loop) Quit(err error) {
	l.mu.Lock()
	if !l.quit {
		l.quit = true
		l.exit = err
	}
	l.mu.Unlock()
	l.wakeup()
}

// ExitErr returns the error handed to Quit, if any.
func (l *Loop) ExitErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exit
}

func (l *Loop) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Dispatch runs posted callbacks and expired timers until nothing is left to
// do at the current time. It returns the number of callbacks run.
func (l *Loop) Dispatch() int {
	n := 0
	for {
		ran := l.runPosted()
		ran += l.runExpired()
		if ran == 0 {
			return n
		}
		n += ran
	}
}

func (l *Loop) runPosted() int {
	l.mu.Lock()
	batch := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range batch {
		l.run(fn)
	}
	return len(batch)
}

func (l *Loop) runExpired() int {
	now := l.clock.Now()
	n := 0
	for len(l.timers) > 0 && !l.timers[0].deadline.After(now) {
		t := heap.Pop(&l.timers).(*Timer)
		l.run(t.fn)
		n++
	}
	return n
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// NextDeadline returns the earliest armed timer deadline.
func (l *Loop) NextDeadline() (time.Time, bool) {
	if len(l.timers) == 0 {
		return time.Time{}, false
	}
	return l.timers[0].deadline, true
}

// Advance moves a ManualClock forward by d, firing every timer that falls due
// on the way in deadline order.
func (l *Loop) Advance(d time.Duration) {
	mc, ok := l.clock.(*ManualClock)
	if !ok {
		panic("eventloop: Advance requires a ManualClock")
	}
	target := mc.Now().Add(d)
	for {
		l.Dispatch()
		next, ok := l.NextDeadline()
		if !ok || next.After(target) {
			break
		}
		mc.Set(next)
	}
	mc.Set(target)
	l.Dispatch()
}

// Serve runs the loop until ctx is done or Quit is called.
func (l *Loop) Serve(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		l.Dispatch()

		l.mu.Lock()
		quit, exit := l.quit, l.exit
		l.mu.Unlock()
		if quit {
			if exit != nil {
				return exit
			}
			return ErrQuit
		}

		wait := time.Hour
		if next, ok := l.NextDeadline(); ok {
			wait = max(next.Sub(l.clock.Now()), 0)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-timer.C:
		}
	}
}

func (l *Loop) String() string { return "eventloop" }
