package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalEmitOrder(t *testing.T) {
	var sig Signal[int]
	var got []int
	sig.Subscribe(func(v int) { got = append(got, v) })
	sig.Subscribe(func(v int) { got = append(got, v*10) })

	sig.Emit(3)
	assert.Equal(t, []int{3, 30}, got)
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	var sig Signal[string]
	calls := 0
	sub := sig.Subscribe(func(string) { calls++ })

	sub.Cancel()
	sub.Cancel()
	assert.False(t, sub.Active())
	assert.Equal(t, 0, sig.Len())

	sig.Emit("x")
	assert.Equal(t, 0, calls)
}

func TestCancelDuringEmitSkipsLaterSubscriber(t *testing.T) {
	var sig Signal[struct{}]
	var second *Subscription[struct{}]
	secondCalled := false

	sig.Subscribe(func(struct{}) { second.Cancel() })
	second = sig.Subscribe(func(struct{}) { secondCalled = true })

	sig.Emit(struct{}{})
	assert.False(t, secondCalled)
	assert.Equal(t, 1, sig.Len())
}

func TestSubscribeDuringEmitWaitsForNextEmit(t *testing.T) {
	var sig Signal[int]
	late := 0
	sig.Subscribe(func(int) {
		sig.Subscribe(func(int) { late++ })
	})

	sig.Emit(1)
	assert.Equal(t, 0, late)
	sig.Emit(2)
	assert.Equal(t, 1, late)
}

func TestBag(t *testing.T) {
	var a Signal[int]
	var b Signal[bool]
	var bag Bag
	bag.Add(a.Subscribe(func(int) {}))
	bag.Add(b.Subscribe(func(bool) {}))

	bag.Cancel()
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, b.Len())
	bag.Cancel()
}
