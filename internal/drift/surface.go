package drift

import (
	"sync"
	"time"
)

// SimulatedSurface is a Surface whose position advances with a clock at the
// current rate. It stands in for a real player in the headless client.
type SimulatedSurface struct {
	mu       sync.Mutex
	now      func() time.Time
	updated  time.Time
	position float64
	rate     float64
	ready    bool
	seekable bool
	stalled  bool

	seeks       int
	rateChanges int
}

// NewSimulatedSurface returns a ready, seekable surface at position 0.
// A nil now uses time.Now.
func NewSimulatedSurface(now func() time.Time) *SimulatedSurface {
	if now == nil {
		now = time.Now
	}
	return &SimulatedSurface{
		now:      now,
		updated:  now(),
		rate:     1,
		ready:    true,
		seekable: true,
	}
}

// advance moves position forward to the current time. Caller holds mu.
func (s *SimulatedSurface) advance() {
	now := s.now()
	if s.ready && !s.stalled {
		s.position += now.Sub(s.updated).Seconds() * s.rate
	}
	s.updated = now
}

// Ready implements Surface.
func (s *SimulatedSurface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Position implements Surface.
func (s *SimulatedSurface) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.position
}

// Rate implements Surface.
func (s *SimulatedSurface) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Seek implements Surface.
func (s *SimulatedSurface) Seek(pos float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seekable {
		return ErrNotSeekable
	}
	s.advance()
	s.position = pos
	s.seeks++
	return nil
}

// SetRate implements Surface.
func (s *SimulatedSurface) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.rate = rate
	s.rateChanges++
}

// SetReady toggles readiness.
func (s *SimulatedSurface) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.ready = ready
}

// SetSeekable toggles whether Seek succeeds.
func (s *SimulatedSurface) SetSeekable(seekable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekable = seekable
}

// Stall freezes or resumes playback, as when the player is buffering.
func (s *SimulatedSurface) Stall(stalled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.stalled = stalled
}

// Seeks returns the number of successful seeks.
func (s *SimulatedSurface) Seeks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeks
}

// RateChanges returns the number of SetRate calls.
func (s *SimulatedSurface) RateChanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateChanges
}
