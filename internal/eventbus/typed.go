// Package eventbus provides a small in-process publish/subscribe bus.
package eventbus

import (
	"sync"
	"sync/atomic"
)

type subscriber[T any] struct {
	ch   chan T
	wait bool
	gone chan struct{}
	once sync.Once
}

func (s *subscriber[T]) leave() { s.once.Do(func() { close(s.gone) }) }

// TypedBus is a type-safe publish/subscribe bus for events of type T.
type TypedBus[T any] struct {
	mu      sync.RWMutex
	subs    []*subscriber[T]
	closed  bool
	dropped atomic.Uint64
	// index maps a subscriber channel to its subscriber outside mu.
	index sync.Map
}

// NewTyped creates a new TypedBus.
func NewTyped[T any]() *TypedBus[T] { return &TypedBus[T]{} }

// Publish sends the event to all subscribers. Buffered subscribers whose
// buffer is full miss the event and it is counted in Dropped. Publish
// blocks on subscribers created with SubscribeWait until they take the
// event or unsubscribe.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if s.wait {
			select {
			case s.ch <- e:
			case <-s.gone:
			}
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events lost by buffered subscribers.
func (b *TypedBus[T]) Dropped() uint64 { return b.dropped.Load() }

// Subscribe registers a subscriber and returns its channel.
func (b *TypedBus[T]) Subscribe() <-chan T { return b.SubscribeBuffered(8) }

// SubscribeBuffered registers a subscriber whose channel holds up to size
// pending events. Events published while the buffer is full are dropped.
func (b *TypedBus[T]) SubscribeBuffered(size int) <-chan T {
	return b.subscribe(size, false)
}

// SubscribeWait registers a subscriber that never misses an event: once
// its buffer is full, Publish waits for it. The subscriber must keep
// reading until the bus is closed or it unsubscribes.
func (b *TypedBus[T]) SubscribeWait(size int) <-chan T {
	return b.subscribe(size, true)
}

func (b *TypedBus[T]) subscribe(size int, wait bool) <-chan T {
	s := &subscriber[T]{ch: make(chan T, size), wait: wait, gone: make(chan struct{})}
	b.mu.Lock()
	if b.closed {
		close(s.ch)
	} else {
		b.subs = append(b.subs, s)
		b.index.Store((<-chan T)(s.ch), s)
	}
	b.mu.Unlock()
	return s.ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	// release publishers blocked on this subscriber before taking the lock
	if v, ok := b.index.LoadAndDelete(sub); ok {
		v.(*subscriber[T]).leave()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(s.ch)
			}
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, s := range b.subs {
		s.leave()
		close(s.ch)
		b.index.Delete((<-chan T)(s.ch))
	}
	b.subs = nil
	b.mu.Unlock()
}
