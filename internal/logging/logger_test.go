package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetLogging() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"supervisor": "debug",
			"api":        "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"supervisor", true, true, true},
		{"api", false, false, true},
		{"broadcast", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetLogging()

	early := GetLogger("ffmpeg")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"ffmpeg": "debug"}})

	if !GetLogger("ffmpeg").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected ffmpeg logger to be rebuilt at debug level")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "info"})

	if SetModuleLevel("client", "bogus") {
		t.Error("expected unknown level to be rejected")
	}
	if !SetModuleLevel("client", "error") {
		t.Fatal("expected error level to be accepted")
	}
	if GetLogger("client").Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("client logger should no longer accept warn")
	}
}

func TestBufferCapturesModuleAndAttributes(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "debug"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })

	GetLogger("supervisor").Info("Pipeline exited", "slot", 3, "error", errors.New("boom"))

	entries := GetBuffer().ReadAll()
	if len(entries) == 0 {
		t.Fatal("expected buffered entries")
	}
	last := entries[len(entries)-1]
	if last.Module != "supervisor" {
		t.Errorf("module = %q, want supervisor", last.Module)
	}
	if last.Attributes["slot"] != int64(3) {
		t.Errorf("slot attribute = %v (%T), want 3", last.Attributes["slot"], last.Attributes["slot"])
	}
	if last.Attributes["error"] != "boom" {
		t.Errorf("error attribute = %v, want boom", last.Attributes["error"])
	}
	if len(got) == 0 {
		t.Error("expected log callback to fire")
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: string(rune('a' + i))})
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	var msgs []string
	for _, e := range entries {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, "") != "cde" {
		t.Errorf("order = %q, want cde", strings.Join(msgs, ""))
	}
	if tail := rb.Tail(2); len(tail) != 2 || tail[1].Message != "e" {
		t.Errorf("Tail(2) = %+v", tail)
	}
	if seq := entries[2].Seq; seq != 5 {
		t.Errorf("newest seq = %d, want 5", seq)
	}
}

func TestFormatLogLine(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	line := FormatLogLine(LogEntry{
		Timestamp:  ts,
		Level:      "warn",
		Module:     "ffmpeg",
		Message:    "Non-monotonous DTS",
		Attributes: map[string]any{"slot": 2, "b": "x"},
	})

	want := "2024-01-02T03:04:05Z [WARN] [ffmpeg] Non-monotonous DTS b=x slot=2"
	if line != want {
		t.Errorf("FormatLogLine() = %q, want %q", line, want)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandlerKeepsWritingAfterSinkError(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	h := NewMultiHandler(failingHandler{text}, text)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0))
	if err == nil {
		t.Error("expected joined sink error")
	}
	if !strings.Contains(buf.String(), "still here") {
		t.Errorf("second sink output = %q", buf.String())
	}
}
