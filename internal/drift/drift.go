// Package drift keeps a playback surface locked to the server's live
// timeline.
//
// Every clock tick gives a live target:
//
//	target = max(0, (serverNow - serverStart)/1000 - liveLag)
//
// and the surface's drift from it picks one of three zones, in order:
//
//	|drift| > 0.5          seek to target
//	0.05 < |drift| <= 0.5  rate = clamp(1 - 0.1*drift, 0.95, 1.05)
//	|drift| <= 0.05        rate back to 1
//
// A surface that is not ready is left alone until the next tick.
package drift

import (
	"errors"
	"math"
)

// Correction policy constants.
const (
	SeekThreshold = 0.5  // seconds
	HoldThreshold = 0.05 // seconds
	Gain          = 0.1
	MinRate       = 0.95
	MaxRate       = 1.05

	// DefaultLiveLag is segment duration times window, plus buffering.
	DefaultLiveLag = 2.5
)

// ErrNotSeekable is returned by a Surface that cannot seek right now.
var ErrNotSeekable = errors.New("media not seekable")

// Surface is a playback element the controller steers.
type Surface interface {
	// Ready reports whether the surface has decoded data and a duration.
	Ready() bool
	// Position is the current playback position in seconds.
	Position() float64
	// Rate is the current playback rate.
	Rate() float64
	// Seek jumps to pos seconds.
	Seek(pos float64) error
	// SetRate changes the playback rate.
	SetRate(rate float64)
}

// SyncInfo is the client's view of the server timeline.
type SyncInfo struct {
	ServerStart int64   // epoch milliseconds
	LiveLag     float64 // seconds
}

// Zone is the outcome of one correction pass.
type Zone string

// Zones.
const (
	ZoneNotReady Zone = "not_ready"
	ZoneSeek     Zone = "seek"
	ZoneRate     Zone = "rate"
	ZoneHold     Zone = "hold"
)

// Correction describes what a pass decided.
type Correction struct {
	Zone   Zone
	Target float64
	Drift  float64
	Rate   float64 // rate after the pass
	Err    error   // seek failure, retried on the next tick
}

// Target returns the live position in seconds for serverNow.
func Target(serverNow int64, info SyncInfo) float64 {
	return math.Max(0, float64(serverNow-info.ServerStart)/1000-info.LiveLag)
}

// Correct picks the zone for a surface at position against target. It has
// no side effects.
func Correct(position, target, rate float64) Correction {
	drift := position - target
	c := Correction{Target: target, Drift: drift, Rate: rate}

	switch abs := math.Abs(drift); {
	case abs > SeekThreshold:
		c.Zone = ZoneSeek
	case abs > HoldThreshold:
		c.Zone = ZoneRate
		c.Rate = clamp(1-Gain*drift, MinRate, MaxRate)
	default:
		c.Zone = ZoneHold
		c.Rate = 1
	}
	return c
}

// Apply runs one correction pass against s. A seek the surface refuses is
// dropped; the next tick will try again.
func Apply(s Surface, serverNow int64, info SyncInfo) Correction {
	if !s.Ready() {
		return Correction{Zone: ZoneNotReady, Rate: s.Rate()}
	}

	target := Target(serverNow, info)
	c := Correct(s.Position(), target, s.Rate())

	switch c.Zone {
	case ZoneSeek:
		c.Err = s.Seek(target)
	case ZoneRate:
		s.SetRate(c.Rate)
	case ZoneHold:
		if s.Rate() != 1 {
			s.SetRate(1)
		}
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
