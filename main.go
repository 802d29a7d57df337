package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/camsync/cmd"
	"github.com/smazurov/camsync/internal/api"
	"github.com/smazurov/camsync/internal/broadcast"
	"github.com/smazurov/camsync/internal/catalog"
	"github.com/smazurov/camsync/internal/config"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/ffmpeg"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/metrics"
	"github.com/smazurov/camsync/internal/metrics/exporters"
	"github.com/smazurov/camsync/internal/supervisor"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8000" toml:"server.port" env:"PORT"`

	// Pipeline settings
	Count          int    `help:"Number of transcoding slots" default:"6" toml:"pipeline.count" env:"COUNT"`
	DefaultSource  string `help:"Input for slots without an entry in the sources file" default:"rtsp://localhost:8554/live" toml:"pipeline.source_url" env:"SOURCE_URL"`
	SourcesFile    string `help:"Per-slot source overrides" default:"streams.toml" toml:"pipeline.sources_file" env:"SOURCES_FILE"`
	MediaRoot      string `help:"Directory the slots write HLS output under" default:"hls" toml:"pipeline.media_root" env:"MEDIA_ROOT"`
	FrameRate      int    `help:"Output frame rate" default:"25" toml:"pipeline.frame_rate" env:"FRAME_RATE"`
	SegmentSeconds int    `help:"HLS segment duration in seconds" default:"1" toml:"pipeline.segment_seconds" env:"SEGMENT_SECONDS"`
	PlaylistSize   int    `help:"Segments kept in the rolling playlist" default:"6" toml:"pipeline.playlist_size" env:"PLAYLIST_SIZE"`
	Width          int    `help:"Output width, 0 keeps the source size" default:"640" toml:"pipeline.width" env:"WIDTH"`
	Bitrate        int    `help:"Video bitrate in kbit/s" default:"1000" toml:"pipeline.bitrate" env:"BITRATE"`

	// Restart settings
	RestartStrategy     string `help:"Relaunch delay strategy (fixed, exponential)" default:"fixed" toml:"restart.strategy" env:"RESTART_STRATEGY"`
	RestartDelay        string `help:"Relaunch delay, or the exponential base" default:"2s" toml:"restart.delay" env:"RESTART_DELAY"`
	RestartMaxDelay     string `help:"Cap for exponential delays" default:"30s" toml:"restart.max_delay" env:"RESTART_MAX_DELAY"`
	RestartStablePeriod string `help:"Uptime after which the restart count resets" default:"30s" toml:"restart.stable_period" env:"RESTART_STABLE_PERIOD"`
	RestartMaxAttempts  int    `help:"Park a slot after this many consecutive failures, 0 for never" default:"0" toml:"restart.max_attempts" env:"RESTART_MAX_ATTEMPTS"`

	// Sync settings
	SyncInterval string `help:"Clock broadcast interval" default:"1s" toml:"sync.interval" env:"SYNC_INTERVAL"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEEnabled        bool `help:"Publish slot progress on /api/metrics" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingTranscoder string `help:"Transcoder output logging level" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingBroadcast  string `help:"Sync broadcast logging level" default:"info" toml:"logging.broadcast" env:"LOGGING_BROADCAST"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingClient     string `help:"Sync client logging level" default:"info" toml:"logging.client" env:"LOGGING_CLIENT"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Modules: logModules(opts),
		})
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryEvent(entry))
		})

		// The epoch every client derives its live target from
		epoch := time.Now()

		sources, err := config.LoadSources(opts.SourcesFile)
		if err != nil {
			logger.Error("Failed to load sources", "path", opts.SourcesFile, "error", err)
			os.Exit(1)
		}

		backoff, err := restartBackoff(opts)
		if err != nil {
			logger.Error("Invalid restart settings", "error", err)
			os.Exit(1)
		}

		sup, err := supervisor.New(supervisor.Options{
			Count: opts.Count,
			Root:  opts.MediaRoot,
			Source: func(id int) supervisor.Source {
				return slotSource(sources.Resolve(id, opts.DefaultSource))
			},
			CommandProvider: supervisor.FFmpegCommand(pipelineParams(opts)),
			Backoff:         backoff,
			StablePeriod:    parseDuration(opts.RestartStablePeriod, 30*time.Second),
			MaxAttempts:     opts.RestartMaxAttempts,
			OnStateChange: func(st supervisor.Status, old supervisor.State) {
				eventBus.Publish(api.SlotStateEvent(st, old))
			},
			Logger:        logging.GetLogger("supervisor"),
			ProcessLogger: logging.GetLogger("ffmpeg"),
		})
		if err != nil {
			logger.Error("Failed to create supervisor", "error", err)
			os.Exit(1)
		}

		watcher := config.NewConfigWatcher(opts.SourcesFile, config.LoadSources, logger)
		watcher.OnReload(func(next config.Sources) {
			reloadSources(sup, next, opts.DefaultSource, eventBus, logger)
		})

		var sseExporter *exporters.SSEExporter
		if opts.MetricsSSEEnabled {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		broadcaster := broadcast.New(epoch,
			broadcast.WithInterval(parseDuration(opts.SyncInterval, broadcast.DefaultInterval)),
		)

		apiOpts := &api.Options{
			Slots:     sup,
			Catalog:   catalog.New(epoch, opts.Count),
			Broadcast: broadcaster,
			EventBus:  eventBus,
			HLSRoot:   opts.MediaRoot,
		}
		if opts.MetricsPrometheusEnabled {
			apiOpts.PrometheusHandler = metrics.Handler()
		}
		server := api.NewServer(apiOpts)

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if startErr := sup.Start(ctx); startErr != nil {
				logger.Error("Failed to start supervisor", "error", startErr)
				os.Exit(1)
			}
			logger.Info("Supervisor started", "slots", opts.Count, "root", opts.MediaRoot)

			// Hot reload is optional
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start sources watcher, hot-reload disabled", "error", startErr)
			}
			if sseExporter != nil {
				sseExporter.Start(ctx)
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(5 * time.Second); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping sources watcher", "error", stopErr)
			}
			if sseExporter != nil {
				sseExporter.Stop()
			}

			// Transcoders last so clients see the server go away first
			sup.Stop()
			cancel()
		})
	})

	cli.Root().Use = "camsync"
	cli.Root().Short = "Live HLS transcoding with a shared playback clock"
	cli.Root().AddCommand(cmd.CreateFollowCmd())
	cli.Root().AddCommand(cmd.CreateArgsCmd())
	cli.Root().AddCommand(cmd.CreateInspectCmd())

	cli.Run()
}

// logModules maps each module logger to its configured level.
func logModules(opts *Options) map[string]string {
	return map[string]string{
		"supervisor": opts.LoggingSupervisor,
		"ffmpeg":     opts.LoggingTranscoder,
		"broadcast":  opts.LoggingBroadcast,
		"api":        opts.LoggingAPI,
		"http":       opts.LoggingHTTP,
		"client":     opts.LoggingClient,
	}
}

func restartBackoff(opts *Options) (supervisor.Backoff, error) {
	b := supervisor.Backoff{
		Strategy: opts.RestartStrategy,
		Delay:    parseDuration(opts.RestartDelay, 2*time.Second),
		Max:      parseDuration(opts.RestartMaxDelay, 0),
	}
	return b, b.Validate()
}

func pipelineParams(opts *Options) ffmpeg.Params {
	return cmd.PipelineParams(cmd.PipelineOptions{
		FrameRate:      opts.FrameRate,
		SegmentSeconds: opts.SegmentSeconds,
		PlaylistSize:   opts.PlaylistSize,
		Width:          opts.Width,
		Bitrate:        opts.Bitrate,
	})
}

// parseDuration falls back on empty or malformed values.
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func slotSource(cfg config.SourceConfig) supervisor.Source {
	return supervisor.Source{URI: cfg.Source, Options: cfg.Options}
}

// reloadSources relaunches every slot whose effective source changed.
func reloadSources(sup *supervisor.Supervisor, next config.Sources, fallback string, bus *events.Bus, logger *slog.Logger) {
	var changed []int
	for id := 1; id <= sup.Count(); id++ {
		updated, err := sup.UpdateSource(id, slotSource(next.Resolve(id, fallback)))
		if err != nil {
			logger.Warn("Failed to update slot source", "slot", id, "error", err)
			continue
		}
		if updated {
			changed = append(changed, id)
		}
	}
	logger.Info("Sources reloaded", "changed", changed)
	bus.Publish(events.SourcesReloadedEvent{
		Changed:   changed,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
