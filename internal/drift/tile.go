package drift

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/metrics"
)

// State is where a tile is in its correction cycle.
type State string

// Tile states. Every tick re-enters one of the last four.
const (
	StateInitializing   State = "initializing"
	StateNotReady       State = "not_ready"
	StateSeeking        State = "seeking"
	StateRateCorrecting State = "rate_correcting"
	StateSynced         State = "synced"
)

func stateFor(z Zone) State {
	switch z {
	case ZoneSeek:
		return StateSeeking
	case ZoneRate:
		return StateRateCorrecting
	case ZoneHold:
		return StateSynced
	default:
		return StateNotReady
	}
}

// Tick is one clock update for a tile.
type Tick struct {
	ServerNow int64
	Info      SyncInfo
}

// Observer is called after every pass on the tile's goroutine.
type Observer func(tile int, state State, c Correction)

// TileOption configures a Tile.
type TileOption func(*Tile)

// WithObserver sets a callback for every pass.
func WithObserver(fn Observer) TileOption {
	return func(t *Tile) { t.observer = fn }
}

// WithTileLogger sets the logger.
func WithTileLogger(logger *slog.Logger) TileOption {
	return func(t *Tile) { t.logger = logger }
}

// Tile steers one surface from a stream of ticks. Passes run on a single
// goroutine, so they never overlap.
type Tile struct {
	id       int
	surface  Surface
	ticks    chan Tick
	observer Observer
	logger   *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	offerMu sync.Mutex
	mu      sync.RWMutex
	state   State
	last    Correction
}

// NewTile starts a tile actor for surface.
func NewTile(id int, surface Surface, opts ...TileOption) *Tile {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tile{
		id:      id,
		surface: surface,
		ticks:   make(chan Tick, 1),
		logger:  logging.GetLogger("client"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   StateInitializing,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("tile", id)

	go t.run()
	return t
}

// ID returns the tile ID.
func (t *Tile) ID() int {
	return t.id
}

// Offer hands the tile a tick without blocking. An unprocessed older tick
// is replaced, so the tile always works on the latest time.
func (t *Tile) Offer(tick Tick) {
	t.offerMu.Lock()
	defer t.offerMu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	for {
		select {
		case t.ticks <- tick:
			return
		default:
		}
		select {
		case <-t.ticks:
		default:
		}
	}
}

// State returns the state after the latest pass.
func (t *Tile) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Last returns the latest correction.
func (t *Tile) Last() Correction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Close stops the tile and waits for any pass in progress. The surface is
// not touched after Close returns.
func (t *Tile) Close() {
	t.closeOnce.Do(t.cancel)
	<-t.done
}

func (t *Tile) run() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return
		case tick := <-t.ticks:
			if t.ctx.Err() != nil {
				return
			}
			t.pass(tick)
		}
	}
}

func (t *Tile) pass(tick Tick) {
	c := Apply(t.surface, tick.ServerNow, tick.Info)
	state := stateFor(c.Zone)

	t.mu.Lock()
	prev := t.state
	t.state = state
	t.last = c
	t.mu.Unlock()

	if c.Zone != ZoneNotReady {
		metrics.SetClientDrift(t.id, c.Drift)
	}
	metrics.ClientCorrection(string(c.Zone))

	if state != prev {
		t.logger.Debug("Tile state changed", "from", prev, "to", state, "drift", c.Drift)
	}
	switch {
	case c.Err == nil && c.Zone == ZoneSeek:
		t.logger.Info("Seeked to live target", "target", c.Target, "drift", c.Drift)
	case errors.Is(c.Err, ErrNotSeekable):
		t.logger.Debug("Surface not seekable, retrying next tick", "target", c.Target)
	case c.Err != nil:
		t.logger.Warn("Seek failed, retrying next tick", "target", c.Target, "error", c.Err)
	}
	if t.observer != nil {
		t.observer(t.id, state, c)
	}
}
