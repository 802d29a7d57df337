package ffmpeg

import (
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[error] Connection refused", "error", "Connection refused"},
		{"[warning] Non-monotonous DTS", "warning", "Non-monotonous DTS"},
		{"[hls @ 0x55d1] [warning] Duplicated segment", "warning", "[hls @ 0x55d1] Duplicated segment"},
		{"[rtsp @ 0x1] no level here", "info", "[rtsp @ 0x1] no level here"},
		{"plain line", "info", "plain line"},
		{"frame=  125 fps= 25 q=28.0 speed=1.0x", LevelProgress, "frame=  125 fps= 25 q=28.0 speed=1.0x"},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestParseProgress(t *testing.T) {
	line := "frame=  125 fps= 25 q=28.0 size=N/A time=00:00:05.00 bitrate=N/A dup=1 drop=2 speed=1.01x    "
	p, ok := ParseProgress(line)
	if !ok {
		t.Fatal("expected progress line")
	}

	if p.Frame != 125 {
		t.Errorf("Frame = %d, want 125", p.Frame)
	}
	if p.FPS != 25 {
		t.Errorf("FPS = %v, want 25", p.FPS)
	}
	if p.Time != 5*time.Second {
		t.Errorf("Time = %v, want 5s", p.Time)
	}
	if p.Speed != 1.01 {
		t.Errorf("Speed = %v, want 1.01", p.Speed)
	}
	if p.Duplicate != 1 || p.Dropped != 2 {
		t.Errorf("dup/drop = %d/%d, want 1/2", p.Duplicate, p.Dropped)
	}
}

func TestParseProgressRejectsOtherLines(t *testing.T) {
	for _, line := range []string{"", "[info] frame=1", "Input #0, rtsp, from 'rtsp://cam'"} {
		if _, ok := ParseProgress(line); ok {
			t.Errorf("ParseProgress(%q) reported progress", line)
		}
	}
}

func TestParseProgressNotAvailable(t *testing.T) {
	p, ok := ParseProgress("frame=    0 fps=0.0 q=0.0 size=N/A time=N/A bitrate=N/A speed=N/A")
	if !ok {
		t.Fatal("expected progress line")
	}
	if p.Time != 0 || p.Speed != 0 {
		t.Errorf("N/A fields should be zero, got %+v", p)
	}
}
