package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Bus is a lightweight pub/sub broker using channels. Publishing never
// blocks: a full subscriber channel loses the message.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Event][]chan Message
	dropped atomic.Int64
	now     func() time.Time
}

// NewBus creates an event bus stamping messages with the wall clock.
func NewBus() *Bus {
	return NewBusWithClock(nil)
}

// NewBusWithClock creates an event bus stamping messages with now.
func NewBusWithClock(now func() time.Time) *Bus {
	if now == nil {
		now = time.Now
	}
	return &Bus{subs: make(map[Event][]chan Message), now: now}
}

// Subscribe registers one channel for the given topics (all topics when
// none are named) and returns it with an unsubscribe function.
func (b *Bus) Subscribe(buffer int, topics ...Event) (<-chan Message, func()) {
	if len(topics) == 0 {
		topics = All
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	for _, e := range topics {
		b.subs[e] = append(b.subs[e], ch)
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, e := range topics {
				subs := b.subs[e]
				for i, c := range subs {
					if c == ch {
						b.subs[e] = append(subs[:i], subs[i+1:]...)
						break
					}
				}
			}
			close(ch)
		})
	}
	return ch, unsub
}

// Publish fans the payload out to subscribers of e.
func (b *Bus) Publish(e Event, payload any) {
	msg := Message{Event: e, Timestamp: b.now().UnixMilli(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were lost to slow subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the number of channels registered for e.
func (b *Bus) Subscribers(e Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[e])
}
