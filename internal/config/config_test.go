package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsync/internal/ffmpeg"
)

type testOptions struct {
	Config string `help:"Config file path"`

	SourceURL  string   `toml:"server.source_url" env:"SOURCE_URL"`
	Count      int      `toml:"server.count" env:"COUNT"`
	Exponent   bool     `toml:"restart.exponential" env:"RESTART_EXPONENTIAL"`
	LiveLag    float64  `toml:"sync.live_lag" env:"LIVE_LAG"`
	Origins    []string `toml:"api.origins" env:"ORIGINS"`
	LogModules string   `toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
}

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTOML(t, `
[server]
source_url = "rtsp://cam/live"
count = 4

[restart]
exponential = true

[sync]
live_lag = 3

[api]
origins = ["http://a", "http://b"]

[logging]
supervisor = "debug"
`)

	opts := &testOptions{Config: path, LiveLag: 2.5}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.SourceURL != "rtsp://cam/live" {
		t.Errorf("SourceURL = %q", opts.SourceURL)
	}
	if opts.Count != 4 {
		t.Errorf("Count = %d, want 4", opts.Count)
	}
	if !opts.Exponent {
		t.Error("Exponent = false, want true")
	}
	// TOML integers widen into float fields
	if opts.LiveLag != 3 {
		t.Errorf("LiveLag = %v, want 3", opts.LiveLag)
	}
	if !reflect.DeepEqual(opts.Origins, []string{"http://a", "http://b"}) {
		t.Errorf("Origins = %v", opts.Origins)
	}
	if opts.LogModules != "debug" {
		t.Errorf("LogModules = %q, want debug", opts.LogModules)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeTOML(t, `
[server]
source_url = "rtsp://toml"
count = 6

[sync]
live_lag = 1.5
`)
	t.Setenv("CAMSYNC_SOURCE_URL", "rtsp://env")
	t.Setenv("CAMSYNC_COUNT", "8")
	t.Setenv("CAMSYNC_LIVE_LAG", "4.25")
	t.Setenv("CAMSYNC_ORIGINS", " x , y ")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("count", 0, "")
	if err := cmd.Flags().Set("count", "2"); err != nil {
		t.Fatal(err)
	}

	opts := &testOptions{Config: path, Count: 2}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env over toml", opts.SourceURL, "rtsp://env"},
		{"flag over env", opts.Count, 2},
		{"env float", opts.LiveLag, 4.25},
		{"env slice", opts.Origins, []string{"x", "y"}},
	}
	for _, tt := range tests {
		if !reflect.DeepEqual(tt.got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Error("expected error for non-pointer opts")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &testOptions{Config: writeTOML(t, "[server\ncount = ")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":           "port",
		"LoggingLevel":   "logging-level",
		"RestartBackoff": "restart-backoff",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"server": map[string]any{"port": int64(8000)},
		"root":   "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"server.port", int64(8000)},
		{"server.missing", nil},
		{"root.child", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTOML(t, `
[logging]
level = "warn"
format = "json"
api = "error"

[logging.modules]
supervisor = "debug"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("got level=%q format=%q", cfg.Level, cfg.Format)
	}
	if cfg.Modules["api"] != "error" {
		t.Errorf("api module level = %q, want error", cfg.Modules["api"])
	}
	if cfg.Modules["supervisor"] != "debug" {
		t.Errorf("supervisor module level = %q, want debug", cfg.Modules["supervisor"])
	}

	defaults := LoadLoggingConfig("")
	if defaults.Level != "info" || defaults.Format != "text" {
		t.Errorf("defaults = %+v", defaults)
	}
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		body    string
		wantErr bool
		wantIDs []int
	}{
		{"empty", "", false, nil},
		{"two streams", "[[streams]]\nid = 1\nsource = \"a\"\n[[streams]]\nid = 4\nsource = \"b\"\noptions = [\"rtsp_tcp\"]\n", false, []int{1, 4}},
		{"zero id", "[[streams]]\nid = 0\nsource = \"a\"\n", true, nil},
		{"duplicate", "[[streams]]\nid = 2\n[[streams]]\nid = 2\n", true, nil},
		{"unknown option", "[[streams]]\nid = 1\noptions = [\"bogus\"]\n", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			sources, err := LoadSources(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			for _, id := range tt.wantIDs {
				if _, ok := sources[id]; !ok {
					t.Errorf("missing stream %d", id)
				}
			}
		})
	}

	missing, err := LoadSources(filepath.Join(dir, "nope.toml"))
	if err != nil || len(missing) != 0 {
		t.Errorf("missing file: got %v, %v", missing, err)
	}
}

func TestSaveSourcesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "streams.toml")
	in := Sources{
		3: {ID: 3, Source: "rtsp://c", Options: []ffmpeg.OptionType{ffmpeg.OptionRTSPTCP}},
		1: {ID: 1, Source: "rtsp://a"},
	}
	if err := SaveSources(path, in); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}
	out, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	for id, want := range in {
		if !out[id].Equal(want) {
			t.Errorf("stream %d = %+v, want %+v", id, out[id], want)
		}
	}
}

func TestSourcesResolve(t *testing.T) {
	sources := Sources{
		2: {ID: 2, Source: "rtsp://two"},
		5: {ID: 5, Options: []ffmpeg.OptionType{ffmpeg.OptionLowLatency}},
	}

	if got := sources.Resolve(2, "rtsp://default"); got.Source != "rtsp://two" {
		t.Errorf("slot 2 source = %q", got.Source)
	}
	if got := sources.Resolve(1, "rtsp://default"); got.Source != "rtsp://default" || got.ID != 1 {
		t.Errorf("slot 1 = %+v", got)
	}
	got := sources.Resolve(5, "rtsp://default")
	if got.Source != "rtsp://default" || len(got.Options) != 1 {
		t.Errorf("slot 5 should keep options with fallback source, got %+v", got)
	}
}
