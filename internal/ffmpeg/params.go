package ffmpeg

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Output layout inside a slot directory.
const (
	PlaylistName   = "index.m3u8"
	SegmentPattern = "seg_%03d.ts"
)

// Validation errors returned by Params.Validate.
var (
	ErrEmptySource         = errors.New("source is required")
	ErrEmptyOutputDir      = errors.New("output directory is required")
	ErrInvalidFrameRate    = errors.New("frame rate must be positive")
	ErrInvalidSegment      = errors.New("segment duration must be positive")
	ErrInvalidWindow       = errors.New("playlist window must be positive")
	ErrInvalidBitrate      = errors.New("bitrate and buffer size must be positive")
	ErrMaxRateBelowBitrate = errors.New("maxrate must not be below bitrate")
)

// Params holds everything needed to build one slot's HLS transcode.
// Rates are in kbit/s.
type Params struct {
	// Input
	Source  string
	Options []OptionType // input flags; nil selects GetDefaultOptions

	// Encoder
	Encoder string // libx264
	Preset  string // veryfast
	Tune    string // zerolatency

	// Rate control
	Bitrate    int
	MaxRate    int
	BufferSize int

	// Timing. GOP is derived as FrameRate * SegmentSeconds.
	FrameRate      int
	SegmentSeconds int
	PlaylistSize   int

	// Scale width, height follows aspect. 0 keeps the source size.
	Width int

	// Output
	OutputDir string
	LogLevel  string // ffmpeg -loglevel without the level+ prefix
}

// DefaultParams returns the reference low-latency HLS profile.
func DefaultParams(source, outputDir string) Params {
	return Params{
		Source:         source,
		Encoder:        "libx264",
		Preset:         "veryfast",
		Tune:           "zerolatency",
		Bitrate:        1000,
		MaxRate:        1200,
		BufferSize:     2000,
		FrameRate:      25,
		SegmentSeconds: 1,
		PlaylistSize:   6,
		Width:          640,
		OutputDir:      outputDir,
		LogLevel:       "warning",
	}
}

// GOP returns the keyframe interval in frames. Every segment boundary
// lands on a keyframe.
func (p Params) GOP() int {
	return p.FrameRate * p.SegmentSeconds
}

// PlaylistPath returns the playlist file the transcode writes.
func (p Params) PlaylistPath() string {
	return filepath.Join(p.OutputDir, PlaylistName)
}

// SegmentPath returns the segment filename template.
func (p Params) SegmentPath() string {
	return filepath.Join(p.OutputDir, SegmentPattern)
}

// EffectiveOptions returns Options or the defaults when none are set.
func (p Params) EffectiveOptions() []OptionType {
	if p.Options == nil {
		return GetDefaultOptions()
	}
	return p.Options
}

// IsRTSP reports whether the source is an RTSP URL.
func (p Params) IsRTSP() bool {
	lower := strings.ToLower(p.Source)
	return strings.HasPrefix(lower, "rtsp://") || strings.HasPrefix(lower, "rtsps://")
}

// Validate checks the invariants the builder relies on.
func (p Params) Validate() error {
	switch {
	case strings.TrimSpace(p.Source) == "":
		return ErrEmptySource
	case p.OutputDir == "":
		return ErrEmptyOutputDir
	case p.FrameRate <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidFrameRate, p.FrameRate)
	case p.SegmentSeconds <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidSegment, p.SegmentSeconds)
	case p.PlaylistSize <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidWindow, p.PlaylistSize)
	case p.Bitrate <= 0 || p.BufferSize <= 0:
		return ErrInvalidBitrate
	case p.MaxRate < p.Bitrate:
		return fmt.Errorf("%w: %dk < %dk", ErrMaxRateBelowBitrate, p.MaxRate, p.Bitrate)
	}
	return ValidateOptions(p.EffectiveOptions())
}
