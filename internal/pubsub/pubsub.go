// Package pubsub fans the latest value of a stream out to subscribers.
//
// Each subscriber has its own delivery goroutine and a one-slot mailbox.
// Publishing never blocks: a newer value overwrites an undelivered one, so a
// slow subscriber skips intermediate values but always ends on the latest.
package pubsub

import (
	"sync"
)

// Topic holds the latest published value and the current subscribers.
type Topic[T any] struct {
	mu     sync.Mutex
	last   T
	has    bool
	closed bool
	subs   map[*Subscription[T]]struct{}
}

// NewTopic returns an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Publish records v as the latest value and hands it to every subscriber.
// Mailboxes are filled under the topic lock so no subscriber can end on an
// older value than Latest.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.last, t.has = v, true
	for s := range t.subs {
		s.put(v)
	}
}

// Latest returns the last published value, if any.
func (t *Topic[T]) Latest() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.has
}

// Subscribe registers fn. If a value was already published, fn receives it
// first. Callbacks for one subscription never run concurrently.
func (t *Topic[T]) Subscribe(fn func(T)) *Subscription[T] {
	s := &Subscription[T]{
		topic:  t,
		fn:     fn,
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		s.closed = true
		close(s.quit)
		return s
	}
	t.subs[s] = struct{}{}
	if t.has {
		s.put(t.last)
	}
	t.mu.Unlock()

	go s.run()
	return s
}

// Len returns the number of live subscriptions.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close stops every subscription. Later publishes are dropped.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	t.closed = true
	subs := make([]*Subscription[T], 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

func (t *Topic[T]) remove(s *Subscription[T]) {
	t.mu.Lock()
	delete(t.subs, s)
	t.mu.Unlock()
}

// Subscription is one registered callback.
type Subscription[T any] struct {
	topic *Topic[T]
	fn    func(T)

	slotMu sync.Mutex
	slot   T
	full   bool
	signal chan struct{}

	// deliverMu is held while fn runs.
	deliverMu sync.Mutex
	closed    bool
	quit      chan struct{}
	once      sync.Once
}

func (s *Subscription[T]) put(v T) {
	s.slotMu.Lock()
	s.slot, s.full = v, true
	s.slotMu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) take() (T, bool) {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	v, ok := s.slot, s.full
	var zero T
	s.slot, s.full = zero, false
	return v, ok
}

func (s *Subscription[T]) run() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.signal:
		}
		if v, ok := s.take(); ok {
			s.deliver(v)
		}
	}
}

func (s *Subscription[T]) deliver(v T) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.closed {
		return
	}
	s.fn(v)
}

// Close unregisters the subscription. When Close returns no callback is
// running and none will start. It must not be called from inside the
// subscription's own callback.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.topic.remove(s)

		s.deliverMu.Lock()
		s.closed = true
		s.deliverMu.Unlock()

		select {
		case <-s.quit:
		default:
			close(s.quit)
		}
	})
}
