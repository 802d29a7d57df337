package events

import (
	"sync/atomic"

	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
	dropped    atomic.Uint64
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// kelindar/event dispatches on the static type, so each event type needs a case.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SlotStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case SlotMetricsEvent:
		event.Publish(b.dispatcher, e)
	case SourcesReloadedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e SlotStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SlotStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SlotMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourcesReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
