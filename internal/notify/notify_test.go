// SPDX-License-Identifier: MPL-2.0

package notify

import "testing"

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	startup, cancelStartup := bus.Subscribe(ChannelAvailability, 4)
	defer cancelStartup()
	all, cancelAll := bus.Subscribe("", 4)
	defer cancelAll()
	other, cancelOther := bus.Subscribe("other", 4)
	defer cancelOther()

	Trace(bus, "checking host")

	if msg := <-startup; msg.Trace != "checking host" {
		t.Errorf("startup trace = %q", msg.Trace)
	}
	if msg := <-all; msg.Trace != "checking host" {
		t.Errorf("wildcard trace = %q", msg.Trace)
	}
	select {
	case msg := <-other:
		t.Errorf("unexpected delivery on other channel: %q", msg.Trace)
	default:
	}
}

func TestBusNeverBlocks(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	_, cancel := bus.Subscribe(ChannelAvailability, 1)
	defer cancel()

	for range 5 {
		Trace(bus, "trace")
	}
	if got := bus.Dropped(); got != 4 {
		t.Errorf("Dropped() = %d, want 4", got)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, cancel := bus.Subscribe(ChannelAvailability, 1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}
	Trace(bus, "after cancel")
}

func TestNilSinks(t *testing.T) {
	t.Parallel()

	var bus *Bus
	bus.Transmit(ChannelAvailability, Message{Trace: "x"})
	Trace(nil, "x")
	Nop{}.Transmit(ChannelAvailability, Message{Trace: "x"})
}
