package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/supervisor"
)

// SlotStateEvent builds the bus event for a slot transition.
func SlotStateEvent(st supervisor.Status, old supervisor.State) events.SlotStateChangedEvent {
	return events.SlotStateChangedEvent{
		Slot:      st.ID,
		OldState:  string(old),
		State:     string(st.State),
		PID:       st.PID,
		ExitCode:  st.LastExitCode,
		Restarts:  st.Restarts,
		Error:     st.LastError,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func slotSnapshotEvent(st supervisor.Status) events.SlotStateChangedEvent {
	return SlotStateEvent(st, st.State)
}

// registerSSERoutes registers the slot lifecycle event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Slot state transitions and source reloads. The current state of every slot is sent first.",
		Tags:        []string{"events"},
	}, map[string]any{
		"slot-state-changed": events.SlotStateChangedEvent{},
		"sources-reloaded":   events.SourcesReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SlotStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourcesReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Snapshot so a new client does not wait for the next transition
		for _, st := range s.slots.Statuses() {
			if err := send.Data(slotSnapshotEvent(st)); err != nil {
				return
			}
		}

		forward(ctx, eventCh, send)
	})
}

// forward relays bus events to an SSE client until it disconnects.
func forward(ctx context.Context, eventCh <-chan any, send sse.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			if err := send.Data(event); err != nil {
				return
			}
		}
	}
}
