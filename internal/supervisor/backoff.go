package supervisor

import (
	"fmt"
	"time"
)

// Backoff strategies.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Backoff computes the delay before relaunching a slot.
type Backoff struct {
	Strategy string
	Delay    time.Duration // fixed delay, or the exponential base
	Max      time.Duration // exponential cap; 0 means uncapped
}

// DefaultBackoff relaunches every 2s.
func DefaultBackoff() Backoff {
	return Backoff{Strategy: BackoffFixed, Delay: 2 * time.Second}
}

// Validate checks the strategy name and durations.
func (b Backoff) Validate() error {
	switch b.Strategy {
	case BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("unknown backoff strategy %q", b.Strategy)
	}
	if b.Delay < 0 || b.Max < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	return nil
}

// Next returns the delay after the given number of consecutive failures
// (1 for the first).
func (b Backoff) Next(consecutive int) time.Duration {
	if b.Strategy != BackoffExponential || consecutive <= 1 {
		return b.Delay
	}

	delay := b.Delay
	for i := 1; i < consecutive; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
		// Overflow guard for uncapped backoff
		if delay <= 0 {
			return time.Duration(1<<63 - 1)
		}
	}
	return delay
}
