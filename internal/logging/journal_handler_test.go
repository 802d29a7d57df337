package logging

import (
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

func TestJournalKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"slot"}, "SLOT"},
		{[]string{"remote_addr"}, "REMOTE_ADDR"},
		{[]string{"http", "status"}, "HTTP_STATUS"},
		{[]string{"exit-code"}, "EXIT_CODE"},
		{[]string{"_private"}, "PRIVATE"},
		{[]string{"2fa"}, "FA"},
		{[]string{"ünicode"}, "NICODE"},
	}
	for _, tt := range tests {
		if got := journalKey(tt.parts); got != tt.want {
			t.Errorf("journalKey(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestAddJournalField(t *testing.T) {
	fields := map[string]string{}
	attrs := []slog.Attr{
		slog.Int("slot", 2),
		slog.Float64("speed", 1.25),
		slog.Bool("manual", true),
		slog.Duration("delay", 2*time.Second),
		slog.Group("proc", slog.Int("pid", 4242), slog.Group("exit", slog.Int("code", 137))),
		{},
	}
	for _, a := range attrs {
		addJournalField(fields, []string{"supervisor"}, a)
	}

	want := map[string]string{
		"SUPERVISOR_SLOT":           "2",
		"SUPERVISOR_SPEED":          "1.25",
		"SUPERVISOR_MANUAL":         "true",
		"SUPERVISOR_DELAY":          "2s",
		"SUPERVISOR_PROC_PID":       "4242",
		"SUPERVISOR_PROC_EXIT_CODE": "137",
	}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
}

func TestJournalPriority(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  journal.Priority
	}{
		{slog.LevelDebug, journal.PriDebug},
		{slog.LevelInfo, journal.PriInfo},
		{slog.LevelWarn, journal.PriWarning},
		{slog.LevelError, journal.PriErr},
		{slog.LevelError + 4, journal.PriErr},
	}
	for _, tt := range tests {
		if got := journalPriority(tt.level); got != tt.want {
			t.Errorf("journalPriority(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestJournalHandlerWithGroupIsolated(t *testing.T) {
	base := NewJournalHandler(slog.LevelInfo)
	a := base.WithGroup("a").(*JournalHandler)
	b := base.WithGroup("b").(*JournalHandler)
	if len(base.groups) != 0 || a.groups[0] != "a" || b.groups[0] != "b" {
		t.Errorf("groups leaked: base %v a %v b %v", base.groups, a.groups, b.groups)
	}
}
