package cmd

import "github.com/smazurov/camsync/internal/ffmpeg"

// PipelineOptions are the transcode settings exposed in config.toml.
// Zero values keep the defaults. Width 0 keeps the source size, so a
// negative Width is the one that keeps the default.
type PipelineOptions struct {
	FrameRate      int
	SegmentSeconds int
	PlaylistSize   int
	Width          int
	Bitrate        int
}

// PipelineParams returns the slot template: the default profile with opts
// applied. Source and output directory are filled in per slot.
func PipelineParams(opts PipelineOptions) ffmpeg.Params {
	p := ffmpeg.DefaultParams("", "")
	if opts.FrameRate > 0 {
		p.FrameRate = opts.FrameRate
	}
	if opts.SegmentSeconds > 0 {
		p.SegmentSeconds = opts.SegmentSeconds
	}
	if opts.PlaylistSize > 0 {
		p.PlaylistSize = opts.PlaylistSize
	}
	if opts.Width >= 0 {
		p.Width = opts.Width
	}
	if opts.Bitrate > 0 {
		// Keep the default headroom between bitrate, maxrate and buffer
		p.MaxRate = opts.Bitrate * p.MaxRate / p.Bitrate
		p.BufferSize = opts.Bitrate * 2
		p.Bitrate = opts.Bitrate
	}
	return p
}
