package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop() (*Loop, *ManualClock) {
	clock := NewManualClock(time.Unix(1000, 0))
	return New(WithClock(clock)), clock
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := newTestLoop()
	var got []int
	l.Post(func() { got = append(got, 1) })
	l.Post(func() {
		got = append(got, 2)
		l.Post(func() { got = append(got, 3) })
	})

	assert.Equal(t, 3, l.Dispatch())
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	l, _ := newTestLoop()
	var got []string
	a := l.AddTimer(func() { got = append(got, "a") })
	b := l.AddTimer(func() { got = append(got, "b") })
	a.Arm(20 * time.Millisecond)
	b.Arm(10 * time.Millisecond)

	l.Advance(5 * time.Millisecond)
	assert.Empty(t, got)
	l.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"b", "a"}, got)
	assert.False(t, a.Armed())
}

func TestTimerRearmAndRemove(t *testing.T) {
	l, _ := newTestLoop()
	fired := 0
	tm := l.AddTimer(func() { fired++ })
	tm.Arm(10 * time.Millisecond)
	tm.Arm(50 * time.Millisecond)

	l.Advance(20 * time.Millisecond)
	assert.Equal(t, 0, fired)
	l.Advance(40 * time.Millisecond)
	assert.Equal(t, 1, fired)

	tm.Remove()
	tm.Arm(time.Millisecond)
	l.Advance(time.Second)
	assert.Equal(t, 1, fired)
}

func TestPeriodicRearmDuringAdvance(t *testing.T) {
	l, _ := newTestLoop()
	var tm *Timer
	ticks := 0
	tm = l.AddTimer(func() {
		ticks++
		tm.Arm(10 * time.Millisecond)
	})
	tm.Arm(10 * time.Millisecond)

	l.Advance(55 * time.Millisecond)
	assert.Equal(t, 5, ticks)
}

func TestPanickingCallbackDoesNotUnwind(t *testing.T) {
	l, _ := newTestLoop()
	after := false
	l.Post(func() { panic("boom") })
	l.Post(func() { after = true })
	l.Dispatch()
	assert.True(t, after)
}

func TestServeAndCall(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()

	value := 0
	err := l.Call(ctx, func() error {
		value = 42
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	boom := errors.New("helper died")
	l.Quit(boom)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Quit")
	}
}
