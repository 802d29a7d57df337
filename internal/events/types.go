package events

// Event type constants for kelindar/event.
const (
	TypeSlotStateChanged uint32 = iota + 1
	TypeSlotMetrics
	TypeSourcesReloaded
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SlotStateChangedEvent is published on every pipeline slot transition.
type SlotStateChangedEvent struct {
	Slot      int    `json:"slot" example:"2" doc:"Slot identifier"`
	OldState  string `json:"old_state" example:"running" doc:"Previous state"`
	State     string `json:"state" example:"restarting" doc:"New state"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"Process ID while running"`
	ExitCode  *int   `json:"exit_code,omitempty" example:"1" doc:"Exit code of the last process"`
	Restarts  int    `json:"restarts" example:"3" doc:"Consecutive restarts"`
	Error     string `json:"error,omitempty" doc:"Launch or validation error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SlotStateChangedEvent.
func (e SlotStateChangedEvent) Type() uint32 { return TypeSlotStateChanged }

// SlotMetricsEvent carries the latest transcode progress for a slot.
type SlotMetricsEvent struct {
	Slot    int     `json:"slot" example:"1"`
	FPS     float64 `json:"fps" example:"25"`
	Speed   float64 `json:"speed" example:"1.01"`
	Frames  float64 `json:"frames" example:"1500"`
	Dropped float64 `json:"dropped" example:"0"`
}

// Type returns the event type identifier for SlotMetricsEvent.
func (e SlotMetricsEvent) Type() uint32 { return TypeSlotMetrics }

// SourcesReloadedEvent is published after streams.toml changed on disk.
type SourcesReloadedEvent struct {
	Changed   []int  `json:"changed" doc:"Slots relaunched with a new source"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourcesReloadedEvent.
func (e SourcesReloadedEvent) Type() uint32 { return TypeSourcesReloaded }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
