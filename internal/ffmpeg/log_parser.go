package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// LevelProgress marks a stats line. Callers turn it into metrics and never log it.
const LevelProgress = "progress"

// ParseLogLevel extracts the log level from ffmpeg output.
// FFmpeg with -loglevel level+warning outputs lines like "[warning] message"
// or "[component @ 0x...] [level] message" for component-specific logs.
// Stats lines ("frame= ... speed=1x") are reported as LevelProgress.
// Returns the level and the message with level stripped but component preserved.
func ParseLogLevel(line string) (level, msg string) {
	if IsProgressLine(line) {
		return LevelProgress, line
	}
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	bracket := line[1:end]

	if isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	// Check for component prefix: [component @ 0x...] [level] message
	// Keep the component, strip only the [level]
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			nextBracket := rest[1:nextEnd]
			if isLogLevel(nextBracket) {
				return nextBracket, component + rest[nextEnd+2:]
			}
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

// IsProgressLine reports whether line is an ffmpeg stats line.
func IsProgressLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "frame=") && strings.Contains(trimmed, "fps=")
}

// Progress is one parsed stats line.
type Progress struct {
	Frame     int64
	FPS       float64
	Time      time.Duration
	Speed     float64
	Dropped   int64
	Duplicate int64
}

// ParseProgress parses a stats line such as
// "frame=  125 fps= 25 q=28.0 size=N/A time=00:00:05.00 bitrate=N/A dup=0 drop=2 speed=1.01x".
// Fields that are absent or N/A stay zero.
func ParseProgress(line string) (Progress, bool) {
	if !IsProgressLine(line) {
		return Progress{}, false
	}

	var p Progress
	for key, value := range progressFields(line) {
		switch key {
		case "frame":
			p.Frame, _ = strconv.ParseInt(value, 10, 64)
		case "fps":
			p.FPS, _ = strconv.ParseFloat(value, 64)
		case "time":
			p.Time = parseClock(value)
		case "speed":
			p.Speed, _ = strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64)
		case "drop":
			p.Dropped, _ = strconv.ParseInt(value, 10, 64)
		case "dup":
			p.Duplicate, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	return p, true
}

// progressFields splits "key= value" pairs, tolerating the padding ffmpeg
// inserts after '='.
func progressFields(line string) map[string]string {
	fields := make(map[string]string)
	tokens := strings.Fields(line)
	for i := 0; i < len(tokens); i++ {
		key, value, ok := strings.Cut(tokens[i], "=")
		if !ok {
			continue
		}
		if value == "" && i+1 < len(tokens) && !strings.Contains(tokens[i+1], "=") {
			i++
			value = tokens[i]
		}
		fields[key] = value
	}
	return fields
}

// parseClock parses HH:MM:SS.ss, returning 0 on malformed input.
func parseClock(s string) time.Duration {
	s = strings.TrimPrefix(s, "-")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	sec, errS := strconv.ParseFloat(parts[2], 64)
	if errH != nil || errM != nil || errS != nil {
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
}
