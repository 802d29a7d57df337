// Package exporters pushes metric snapshots onto the event bus so SSE
// clients see them without scraping Prometheus.
package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter publishes per-slot progress at a fixed interval.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the exporter and waits for the goroutine to finish.
// Safe to call more than once.
func (s *SSEExporter) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	for slot, m := range metrics.GetAllSlotMetrics() {
		s.eventBus.Publish(events.SlotMetricsEvent{
			Slot:    slot,
			FPS:     m.FPS,
			Speed:   m.Speed,
			Frames:  m.Frames,
			Dropped: m.Dropped,
		})
	}
}
