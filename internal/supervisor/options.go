package supervisor

import (
	"log/slog"
	"time"

	"github.com/smazurov/camsync/internal/ffmpeg"
)

// Source is the input a slot transcodes.
type Source struct {
	URI     string              `json:"uri"`
	Options []ffmpeg.OptionType `json:"options,omitempty"`
}

// Command is the executable and argv for one launch.
type Command struct {
	Name string
	Args []string
}

// SlotSpec is what a CommandProvider gets to build a launch command.
type SlotSpec struct {
	ID        int
	Source    Source
	OutputDir string
}

// CommandProvider builds the command for a slot. Errors count as a failed
// launch (exit code 1) and go through the normal backoff.
type CommandProvider func(spec SlotSpec) (Command, error)

// StateChangeCallback is called after every slot transition.
// It runs on the slot's monitor goroutine and must not block.
type StateChangeCallback func(status Status, old State)

// Options configures a Supervisor.
type Options struct {
	// Count is the number of slots, numbered 1..Count (required).
	Count int

	// Root is the HLS root; slot i writes to Root/stream<i> (required).
	Root string

	// Source returns the initial input for a slot (required).
	Source func(id int) Source

	// CommandProvider builds launch commands. Defaults to FFmpegCommand.
	CommandProvider CommandProvider

	// Backoff between relaunches. Zero value means DefaultBackoff.
	Backoff Backoff

	// StablePeriod resets the consecutive restart count once a process has
	// run this long. Default 30s.
	StablePeriod time.Duration

	// MaxAttempts parks a slot in StateFailed after this many consecutive
	// failed launches. 0 means unbounded.
	MaxAttempts int

	// GracefulTimeout between SIGINT and SIGKILL. Default 5s.
	GracefulTimeout time.Duration

	// OnStateChange is called when slot state transitions (optional).
	OnStateChange StateChangeCallback

	// Logger for supervisor operations. If nil, uses slog.Default().
	Logger *slog.Logger

	// ProcessLogger receives child output. If nil, uses Logger.
	ProcessLogger *slog.Logger
}
