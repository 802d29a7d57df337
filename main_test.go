package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/smazurov/camsync/internal/logging"
)

func TestLogModulesIncludeClient(t *testing.T) {
	opts := &Options{
		LoggingLevel:      "warn",
		LoggingFormat:     "text",
		LoggingSupervisor: "info",
		LoggingTranscoder: "warn",
		LoggingBroadcast:  "info",
		LoggingAPI:        "warn",
		LoggingHTTP:       "info",
		LoggingClient:     "debug",
	}

	modules := logModules(opts)
	for _, name := range []string{"supervisor", "ffmpeg", "broadcast", "api", "http", "client"} {
		if _, ok := modules[name]; !ok {
			t.Errorf("module %q has no level", name)
		}
	}

	logging.Initialize(logging.Config{Level: opts.LoggingLevel, Format: opts.LoggingFormat, Modules: modules})
	ctx := context.Background()
	if !logging.GetLogger("client").Enabled(ctx, slog.LevelDebug) {
		t.Error("client logger should log at debug")
	}
	if logging.GetLogger("api").Enabled(ctx, slog.LevelInfo) {
		t.Error("api logger should be at warn")
	}
}
