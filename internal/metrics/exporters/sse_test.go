package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{published: make(chan struct{}, 100)}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

func TestSSEExporterPublishesSlotMetrics(t *testing.T) {
	const slot = 201
	metrics.SetSlotProgress(slot, metrics.SlotMetrics{FPS: 25, Speed: 1, Frames: 100, Dropped: 2})
	defer metrics.DeleteSlotMetrics(slot)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond
	exporter.Start(context.Background())

	select {
	case <-mock.published:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for metrics publish")
	}
	exporter.Stop()

	var found bool
	for _, ev := range mock.getEvents() {
		if sme, ok := ev.(events.SlotMetricsEvent); ok && sme.Slot == slot {
			found = true
			if sme.FPS != 25 || sme.Dropped != 2 {
				t.Errorf("unexpected event %+v", sme)
			}
		}
	}
	if !found {
		t.Error("expected SlotMetricsEvent for test slot")
	}
}

func TestSSEExporterStopIdempotent(t *testing.T) {
	const slot = 202
	metrics.SetSlotProgress(slot, metrics.SlotMetrics{FPS: 30})
	defer metrics.DeleteSlotMetrics(slot)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	// Stop before start should not panic
	exporter.Stop()

	exporter.Start(t.Context())
	time.Sleep(30 * time.Millisecond)
	exporter.Stop()
	exporter.Stop()

	countAfterStop := len(mock.getEvents())
	time.Sleep(30 * time.Millisecond)
	if got := len(mock.getEvents()); got != countAfterStop {
		t.Errorf("events published after stop: got %d, want %d", got, countAfterStop)
	}
}
