// Package logging provides structured logging with per-module log levels.
//
// Every subsystem asks for its own logger once:
//
//	logger := logging.GetLogger("supervisor").With("slot", id)
//	logger.Info("Pipeline started", "pid", pid)
//
// Levels are configured globally and per module, usually from the
// [logging] table of config.toml:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	supervisor = "debug"
//	ffmpeg = "warn"
//
// Output is routed to stdout (text or json), to the systemd journal when
// journald is listening (SYSLOG_IDENTIFIER=camsync), and to an in-memory
// ring buffer that backs the /api/logs/stream endpoint:
//
//	journalctl -t camsync MODULE=supervisor SLOT=3
package logging
