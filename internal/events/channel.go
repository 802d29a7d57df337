package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch for select-loop
// consumers such as SSE handlers. Events that find ch full are dropped and
// counted in Bus.Dropped. The returned func unsubscribes.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			bus.dropped.Add(1)
		}
	})
}

// Dropped returns how many events channel subscribers have missed.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
