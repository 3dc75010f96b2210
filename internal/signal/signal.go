// Package signal provides typed observers. A Subscription is owned by the
// subscriber and detaches on Cancel; cancelling never affects the emitter.
package signal

// Canceler is anything that can be detached.
type Canceler interface {
	Cancel()
}

// Signal is a list of subscribers notified in subscription order. Not safe
// for concurrent use; all signals live on the event loop.
type Signal[T any] struct {
	subs []*Subscription[T]
}

// Subscription is a handle to a single listener.
type Subscription[T any] struct {
	sig *Signal[T]
	fn  func(T)
}

// Subscribe registers fn and returns the handle that detaches it.
func (s *Signal[T]) Subscribe(fn func(T)) *Subscription[T] {
	sub := &Subscription[T]{sig: s, fn: fn}
	s.subs = append(s.subs, sub)
	return sub
}

// Emit calls every subscriber attached when Emit started. Subscribers that are
// cancelled during the emission are skipped.
func (s *Signal[T]) Emit(v T) {
	if len(s.subs) == 0 {
		return
	}
	snapshot := make([]*Subscription[T], len(s.subs))
	copy(snapshot, s.subs)
	for _, sub := range snapshot {
		if sub.sig == s {
			sub.fn(v)
		}
	}
}

// Len returns the number of attached subscribers.
func (s *Signal[T]) Len() int { return len(s.subs) }

// Cancel detaches the subscription. Calling it again is a no-op.
func (sub *Subscription[T]) Cancel() {
	if sub == nil || sub.sig == nil {
		return
	}
	s := sub.sig
	sub.sig = nil
	for i, have := range s.subs {
		if have == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
}

// Active reports whether the subscription is still attached.
func (sub *Subscription[T]) Active() bool { return sub != nil && sub.sig != nil }

// Bag collects subscriptions so an owner can drop them together.
type Bag struct {
	items []Canceler
}

func (b *Bag) Add(c Canceler) {
	b.items = append(b.items, c)
}

// Cancel detaches everything in the bag and empties it.
func (b *Bag) Cancel() {
	for _, c := range b.items {
		c.Cancel()
	}
	b.items = nil
}
