package supervisor

import "time"

// State represents where a slot is in its lifecycle.
type State string

// Slot states. A slot cycles Starting → Running → Exited → Restarting →
// Starting until shutdown.
const (
	StateStarting   State = "starting"   // Launching a process
	StateRunning    State = "running"    // Process alive
	StateExited     State = "exited"     // Process gone, relaunch not yet scheduled
	StateRestarting State = "restarting" // Sleeping out the backoff delay
	StateFailed     State = "failed"     // MaxAttempts exhausted, waiting for Restart
	StateStopped    State = "stopped"    // Supervisor shut down
)

// Status is a snapshot of one slot.
type Status struct {
	ID            int       `json:"id"`
	Source        string    `json:"source"`
	OutputDir     string    `json:"output_dir"`
	State         State     `json:"state"`
	PID           int       `json:"pid,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	NextStartAt   time.Time `json:"next_start_at,omitzero"`
	Restarts      int       `json:"restarts"`       // consecutive, reset after a stable run
	TotalRestarts int       `json:"total_restarts"` // since supervisor start
	LastExitCode  *int      `json:"last_exit_code,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	Generation    uint64    `json:"generation"` // incremented on every launch
}
