package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// Binary is the transcoder executable looked up on PATH.
const Binary = "ffmpeg"

// Base returns the flags every invocation starts with.
func Base() []string {
	return []string{"-hide_banner", "-nostdin", "-stats"}
}

// BuildArgs validates p and returns the argv (without the binary) for a
// rolling HLS transcode.
func BuildArgs(p Params) ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	args := Base()

	logLevel := p.LogLevel
	if logLevel == "" {
		logLevel = "warning"
	}
	args = append(args, "-loglevel", "level+"+logLevel)

	// Input
	args = append(args, InputArgs(p.EffectiveOptions(), p.IsRTSP())...)
	args = append(args, "-i", p.Source)

	// Video only
	args = append(args, "-an", "-c:v", p.Encoder)
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.Tune != "" {
		args = append(args, "-tune", p.Tune)
	}

	// Fixed rate and keyframe cadence aligned to segments
	gop := strconv.Itoa(p.GOP())
	args = append(args,
		"-r", strconv.Itoa(p.FrameRate),
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
	)

	// Rate control
	args = append(args,
		"-b:v", kbps(p.Bitrate),
		"-maxrate", kbps(p.MaxRate),
		"-bufsize", kbps(p.BufferSize),
	)

	if p.Width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", p.Width))
	}

	// Rolling playlist
	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(p.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(p.PlaylistSize),
		"-hls_flags", "delete_segments+program_date_time",
		"-hls_segment_filename", p.SegmentPath(),
		p.PlaylistPath(),
	)

	return args, nil
}

// BuildCommand returns the argv as a single shell-quoted line for display.
func BuildCommand(p Params) (string, error) {
	args, err := BuildArgs(p)
	if err != nil {
		return "", err
	}
	return QuoteCommand(Binary, args), nil
}

// QuoteCommand joins name and args, quoting arguments the shell would split.
func QuoteCommand(name string, args []string) string {
	var cmd strings.Builder
	cmd.WriteString(name)
	for _, arg := range args {
		cmd.WriteByte(' ')
		if arg == "" || strings.ContainsAny(arg, " \t\"'$&;|<>()*?`\\") {
			cmd.WriteString("'" + strings.ReplaceAll(arg, "'", `'\''`) + "'")
			continue
		}
		cmd.WriteString(arg)
	}
	return cmd.String()
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}
