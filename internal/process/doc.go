// Package process runs a single subprocess to completion.
//
// Process wraps os/exec for one run of an external program:
//   - The child gets its own process group so signals reach its children
//   - Context cancellation sends SIGINT, then SIGKILL after a timeout
//   - Output is split on '\n' and '\r' and streamed to a pluggable LogParser
//   - An OutputHandler sees every line, including ones the parser suppresses
//
// Restart policy lives with the caller; see internal/supervisor.
//
//	p := process.New("stream1", "ffmpeg", args, logger,
//	    process.WithLogParser(ffmpegLogger, ffmpeg.ParseLogLevel),
//	)
//	exitCode, err := p.Run(ctx)
package process
