// SPDX-License-Identifier: MPL-2.0

// Package notify streams human readable progress traces from the engine
// runtime to whoever is listening. Publishing never blocks: a slow
// subscriber loses messages instead of stalling a check.
package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// ChannelAvailability carries traces emitted while a connection is checked or started.
const ChannelAvailability = "engine.availability"

const defaultBuffer = 64

type (
	// Sink receives traces. Implementations must not block.
	Sink interface {
		Transmit(channel string, msg Message)
	}

	// Message is one progress trace.
	Message struct {
		Trace string
		Time  time.Time
	}

	// Nop discards every message.
	Nop struct{}

	// Bus is a broadcast Sink with buffered subscribers.
	Bus struct {
		mu      sync.RWMutex
		subs    map[uint64]*subscription
		nextID  uint64
		dropped atomic.Uint64
	}

	subscription struct {
		channel string
		ch      chan Message
		once    sync.Once
	}
)

// Transmit implements Sink.
func (Nop) Transmit(string, Message) {}

// NewBus creates an empty broadcast bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Transmit delivers msg to every subscriber of channel. Full subscriber
// buffers drop the message and bump Dropped.
func (b *Bus) Transmit(channel string, msg Message) {
	if b == nil {
		return
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.channel != "" && sub.channel != channel {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a receive channel for channel ("" for all channels) and
// a cancel function that unsubscribes and closes it.
func (b *Bus) Subscribe(channel string, buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &subscription{channel: channel, ch: make(chan Message, buffer)}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
	}
	return sub.ch, cancel
}

// Dropped returns how many messages were discarded because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Trace is a shorthand for sending a text trace on ChannelAvailability.
func Trace(s Sink, trace string) {
	if s == nil {
		return
	}
	s.Transmit(ChannelAvailability, Message{Trace: trace})
}
