package hls

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const rolling = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:1
#EXT-X-MEDIA-SEQUENCE:42
#EXT-X-PROGRAM-DATE-TIME:2024-05-01T10:00:00.000Z
#EXTINF:1.000000,
seg_042.ts
#EXT-X-PROGRAM-DATE-TIME:2024-05-01T10:00:01.000Z
#EXTINF:1.000000,
seg_043.ts
#EXT-X-PROGRAM-DATE-TIME:2024-05-01T10:00:02.000Z
#EXTINF:0.960000,
seg_044.ts
`

func TestParse(t *testing.T) {
	info, err := Parse(strings.NewReader(rolling))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if info.MediaSequence != 42 {
		t.Errorf("media sequence = %d, want 42", info.MediaSequence)
	}
	if info.Segments != 3 {
		t.Errorf("segments = %d, want 3", info.Segments)
	}
	if info.TargetDuration != 1 {
		t.Errorf("target duration = %v, want 1", info.TargetDuration)
	}
	if d := info.WindowDuration; d < 2.95 || d > 2.97 {
		t.Errorf("window duration = %v, want 2.96", d)
	}
	if info.NewestSegment != "seg_044.ts" {
		t.Errorf("newest = %q", info.NewestSegment)
	}
	want := time.Date(2024, 5, 1, 10, 0, 2, 0, time.UTC)
	if !info.ProgramDateTime.Equal(want) {
		t.Errorf("program date time = %v, want %v", info.ProgramDateTime, want)
	}
	if info.Ended {
		t.Error("live playlist reported as ended")
	}
}

func TestParseRejects(t *testing.T) {
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000000\nlow/index.m3u8\n"
	if _, err := Parse(strings.NewReader(master)); !errors.Is(err, ErrNotMediaPlaylist) {
		t.Errorf("master playlist error = %v", err)
	}
	if _, err := Parse(strings.NewReader("hello")); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.m3u8")
	if err := os.WriteFile(path, []byte(rolling), 0o644); err != nil {
		t.Fatal(err)
	}
	written := time.Now().Add(-10 * time.Second)
	if err := os.Chtimes(path, written, written); err != nil {
		t.Fatal(err)
	}

	info, err := Inspect(path, time.Now())
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if info.Age < 9*time.Second {
		t.Errorf("age = %v, want about 10s", info.Age)
	}
	if !info.Stale() {
		t.Error("10s old playlist with 1s target should be stale")
	}

	fresh, err := Inspect(path, written.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Stale() {
		t.Error("1s old playlist should not be stale")
	}

	if _, err := Inspect(filepath.Join(dir, "missing.m3u8"), time.Now()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestEndedPlaylistIsStale(t *testing.T) {
	info, err := Parse(strings.NewReader(rolling + "#EXT-X-ENDLIST\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.Ended || !info.Stale() {
		t.Errorf("ended=%v stale=%v, want both true", info.Ended, info.Stale())
	}
}
