package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camsync/internal/ffmpeg"
	"github.com/smazurov/camsync/internal/metrics"
	"github.com/smazurov/camsync/internal/process"
)

var (
	// ErrUnknownSlot is returned for slot IDs outside 1..Count.
	ErrUnknownSlot = errors.New("unknown slot")
	// ErrNotRunning is returned by operations that need a started supervisor.
	ErrNotRunning = errors.New("supervisor not running")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("supervisor already started")
)

// slot is the per-slot record. Fields are guarded by Supervisor.mu except
// wake, which is only used for non-blocking sends and receives.
type slot struct {
	id            int
	outputDir     string
	source        Source
	state         State
	pid           int
	startedAt     time.Time
	nextStartAt   time.Time
	restarts      int
	totalRestarts int
	lastExitCode  *int
	lastError     string
	generation    uint64

	cancelRun        context.CancelFunc // cancels the live process, nil between launches
	restartRequested bool
	wake             chan struct{}
}

func (sl *slot) status() Status {
	st := Status{
		ID:            sl.id,
		Source:        sl.source.URI,
		OutputDir:     sl.outputDir,
		State:         sl.state,
		PID:           sl.pid,
		StartedAt:     sl.startedAt,
		NextStartAt:   sl.nextStartAt,
		Restarts:      sl.restarts,
		TotalRestarts: sl.totalRestarts,
		LastError:     sl.lastError,
		Generation:    sl.generation,
	}
	if sl.lastExitCode != nil {
		code := *sl.lastExitCode
		st.LastExitCode = &code
	}
	return st
}

// Supervisor keeps one transcoding process alive per slot. Each slot has
// its own monitor goroutine, so a crash or hang in one slot never delays
// another.
type Supervisor struct {
	opts   Options
	logger *slog.Logger
	slots  []*slot // index id-1

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New validates opts and builds the slot table. Nothing runs until Start.
func New(opts Options) (*Supervisor, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("slot count must be positive, got %d", opts.Count)
	}
	if opts.Root == "" {
		return nil, errors.New("hls root is required")
	}
	if opts.Source == nil {
		return nil, errors.New("source func is required")
	}
	if opts.CommandProvider == nil {
		opts.CommandProvider = FFmpegCommand(ffmpeg.DefaultParams("", ""))
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if err := opts.Backoff.Validate(); err != nil {
		return nil, err
	}
	if opts.StablePeriod <= 0 {
		opts.StablePeriod = 30 * time.Second
	}
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ProcessLogger == nil {
		opts.ProcessLogger = logger
	}

	s := &Supervisor{opts: opts, logger: logger}
	for id := 1; id <= opts.Count; id++ {
		s.slots = append(s.slots, &slot{
			id:        id,
			outputDir: SlotDir(opts.Root, id),
			source:    opts.Source(id),
			state:     StateStopped,
			wake:      make(chan struct{}, 1),
		})
	}
	return s, nil
}

// SlotDir returns the output directory for a slot under root.
func SlotDir(root string, id int) string {
	return filepath.Join(root, "stream"+strconv.Itoa(id))
}

// FFmpegCommand returns a CommandProvider that fills template with the
// slot's source and output directory and validates the result.
func FFmpegCommand(template ffmpeg.Params) CommandProvider {
	return func(spec SlotSpec) (Command, error) {
		p := template
		p.Source = spec.Source.URI
		p.Options = spec.Source.Options
		p.OutputDir = spec.OutputDir
		args, err := ffmpeg.BuildArgs(p)
		if err != nil {
			return Command{}, fmt.Errorf("invalid pipeline arguments: %w", err)
		}
		return Command{Name: ffmpeg.Binary, Args: args}, nil
	}
}

// Start creates every slot's output directory and launches the monitor
// loops. The loops run until ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	for _, sl := range s.slots {
		if err := os.MkdirAll(sl.outputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir for slot %d: %w", sl.id, err)
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	s.started = true

	for _, sl := range s.slots {
		s.group.Go(func() error {
			s.monitor(ctx, sl)
			return nil
		})
	}

	s.logger.Info("Supervisor started", "slots", len(s.slots), "root", s.opts.Root,
		"backoff", s.opts.Backoff.Strategy, "delay", s.opts.Backoff.Delay)
	return nil
}

// Stop cancels every slot and returns after all monitor loops have exited
// and their processes have been reaped.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.stopped = true
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	s.logger.Info("Stopping all slots")
	cancel()
	_ = group.Wait()
	s.logger.Info("All slots stopped")
}

// Count returns the number of slots.
func (s *Supervisor) Count() int {
	return len(s.slots)
}

func (s *Supervisor) slot(id int) (*slot, error) {
	if id < 1 || id > len(s.slots) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSlot, id)
	}
	return s.slots[id-1], nil
}

// Status returns a snapshot of one slot.
func (s *Supervisor) Status(id int) (Status, error) {
	sl, err := s.slot(id)
	if err != nil {
		return Status{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sl.status(), nil
}

// Statuses returns snapshots of all slots ordered by ID.
func (s *Supervisor) Statuses() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Status, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl.status())
	}
	return out
}

// Restart relaunches a slot now, skipping any backoff delay and resetting
// its consecutive restart count. A failed slot is revived.
func (s *Supervisor) Restart(id int) error {
	sl, err := s.slot(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotRunning
	}
	sl.restartRequested = true
	cancel := sl.cancelRun
	s.mu.Unlock()

	s.logger.Info("Restart requested", "slot", id)
	if cancel != nil {
		cancel()
	}
	select {
	case sl.wake <- struct{}{}:
	default:
	}
	return nil
}

// UpdateSource switches a slot to a new input. The slot is relaunched only
// if the source actually changed; the return value reports whether it did.
func (s *Supervisor) UpdateSource(id int, src Source) (bool, error) {
	sl, err := s.slot(id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if sl.source.URI == src.URI && slices.Equal(sl.source.Options, src.Options) {
		s.mu.Unlock()
		return false, nil
	}
	sl.source = Source{URI: src.URI, Options: slices.Clone(src.Options)}
	running := s.started && !s.stopped
	s.mu.Unlock()

	s.logger.Info("Slot source changed", "slot", id)
	if !running {
		return true, nil
	}
	return true, s.Restart(id)
}

// transition applies mutate and the new state under the lock, then notifies
// outside it.
func (s *Supervisor) transition(sl *slot, state State, mutate func()) {
	s.mu.Lock()
	old := sl.state
	if mutate != nil {
		mutate()
	}
	sl.state = state
	st := sl.status()
	s.mu.Unlock()

	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st, old)
	}
}

// takeRestartRequest clears and returns the manual restart flag.
func (s *Supervisor) takeRestartRequest(sl *slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	requested := sl.restartRequested
	sl.restartRequested = false
	return requested
}

// monitor is the per-slot loop: launch, wait for exit, back off, repeat.
func (s *Supervisor) monitor(ctx context.Context, sl *slot) {
	logger := s.logger.With("slot", sl.id)
	defer metrics.SetSlotUp(sl.id, false)

	for {
		res := s.launch(ctx, sl, logger)

		if ctx.Err() != nil {
			s.transition(sl, StateStopped, func() { sl.nextStartAt = time.Time{} })
			return
		}

		manual := s.takeRestartRequest(sl)
		s.transition(sl, StateExited, func() {
			if manual || res.uptime >= s.opts.StablePeriod {
				sl.restarts = 0
			}
			if !manual {
				sl.restarts++
			}
			sl.totalRestarts++
		})
		metrics.RecordSlotExit(sl.id, res.exitCode, true)

		switch {
		case res.err != nil:
			logger.Error("Pipeline launch failed", "error", res.err)
		case manual:
			logger.Info("Pipeline stopped for restart", "exit_code", res.exitCode)
		default:
			logger.Warn("Pipeline exited", "exit_code", res.exitCode, "uptime", res.uptime.Round(time.Millisecond))
		}

		if manual {
			continue
		}

		if !s.backoff(ctx, sl, logger) {
			s.transition(sl, StateStopped, func() { sl.nextStartAt = time.Time{} })
			return
		}
	}
}

// backoff waits out the relaunch delay, or parks the slot once MaxAttempts
// is exhausted. It returns false if ctx was cancelled.
func (s *Supervisor) backoff(ctx context.Context, sl *slot, logger *slog.Logger) bool {
	s.mu.RLock()
	consecutive := sl.restarts
	s.mu.RUnlock()

	var timerC <-chan time.Time
	if s.opts.MaxAttempts > 0 && consecutive >= s.opts.MaxAttempts {
		logger.Error("Slot failed, giving up until restarted", "attempts", consecutive)
		s.transition(sl, StateFailed, func() { sl.nextStartAt = time.Time{} })
	} else {
		delay := s.opts.Backoff.Next(consecutive)
		timer := time.NewTimer(delay)
		defer timer.Stop()
		timerC = timer.C
		logger.Info("Relaunching after backoff", "delay", delay, "consecutive", consecutive)
		s.transition(sl, StateRestarting, func() { sl.nextStartAt = time.Now().Add(delay) })
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timerC:
			return true
		case <-sl.wake:
			if s.takeRestartRequest(sl) {
				s.mu.Lock()
				sl.restarts = 0
				s.mu.Unlock()
				return true
			}
		}
	}
}

// runResult describes how one launch ended.
type runResult struct {
	exitCode int
	err      error
	uptime   time.Duration
}

// launch runs one process to completion. The live process is released by
// this call before it returns.
func (s *Supervisor) launch(ctx context.Context, sl *slot, logger *slog.Logger) runResult {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var spec SlotSpec
	s.transition(sl, StateStarting, func() {
		sl.generation++
		sl.cancelRun = cancel
		sl.pid = 0
		sl.startedAt = time.Now()
		sl.nextStartAt = time.Time{}
		sl.lastError = ""
		spec = SlotSpec{ID: sl.id, Source: sl.source, OutputDir: sl.outputDir}
	})

	// Drop a wake left over from a restart that raced this launch
	select {
	case <-sl.wake:
	default:
	}

	res := s.runProcess(runCtx, spec, logger)

	s.mu.Lock()
	sl.cancelRun = nil
	sl.pid = 0
	code := res.exitCode
	sl.lastExitCode = &code
	if res.err != nil {
		sl.lastError = res.err.Error()
	}
	s.mu.Unlock()
	metrics.SetSlotUp(sl.id, false)

	return res
}

func (s *Supervisor) runProcess(ctx context.Context, spec SlotSpec, logger *slog.Logger) runResult {
	cmd, err := s.opts.CommandProvider(spec)
	if err != nil {
		return runResult{exitCode: 1, err: err}
	}

	sl := s.slots[spec.ID-1]
	proc := process.New("stream"+strconv.Itoa(spec.ID), cmd.Name, cmd.Args, logger,
		process.WithLogParser(s.opts.ProcessLogger.With("slot", spec.ID), ffmpeg.ParseLogLevel),
		process.WithOutputHandler(progressHandler(spec.ID)),
		process.WithTimeouts(s.opts.GracefulTimeout, 5*time.Second),
		process.WithStartHook(func(pid int) {
			s.transition(sl, StateRunning, func() { sl.pid = pid })
			metrics.SetSlotUp(spec.ID, true)
		}),
	)

	started := time.Now()
	exitCode, err := proc.Run(ctx)
	return runResult{exitCode: exitCode, err: err, uptime: time.Since(started)}
}

// progressHandler turns stats lines into slot metrics.
func progressHandler(id int) process.OutputHandler {
	return process.OutputHandlerFunc(func(_, line string) {
		p, ok := ffmpeg.ParseProgress(line)
		if !ok {
			return
		}
		metrics.SetSlotProgress(id, metrics.SlotMetrics{
			FPS:     p.FPS,
			Speed:   p.Speed,
			Frames:  float64(p.Frame),
			Dropped: float64(p.Dropped),
		})
	})
}
