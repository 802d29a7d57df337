package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ExitCodeKilled is reported when the process had to be force killed.
const ExitCodeKilled = 137

// ErrEmptyCommand is returned by Run when no executable was given.
var ErrEmptyCommand = errors.New("empty command")

// OutputHandler receives output lines from the subprocess, including lines
// the LogParser marks as not worth logging.
type OutputHandler interface {
	HandleLine(source, line string)
}

// OutputHandlerFunc adapts a function to OutputHandler.
type OutputHandlerFunc func(source, line string)

// HandleLine implements OutputHandler.
func (f OutputHandlerFunc) HandleLine(source, line string) { f(source, line) }

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, etc.)
// The level "progress" suppresses logging of the line.
type LogParser func(line string) (level, msg string)

// Option configures a Process.
type Option func(*Process)

// WithOutputHandler sets a handler that sees every output line.
func WithOutputHandler(handler OutputHandler) Option {
	return func(p *Process) { p.outputHandler = handler }
}

// WithLogParser sets the logger and parser used for process output.
func WithLogParser(logger *slog.Logger, parser LogParser) Option {
	return func(p *Process) {
		p.processLogger = logger
		p.logParser = parser
	}
}

// WithTimeouts overrides the graceful stop and post-kill timeouts.
func WithTimeouts(graceful, kill time.Duration) Option {
	return func(p *Process) {
		p.gracefulTimeout = graceful
		p.killTimeout = kill
	}
}

// WithStartHook is called with the PID once the process has started.
func WithStartHook(hook func(pid int)) Option {
	return func(p *Process) { p.onStart = hook }
}

// Process runs one subprocess to completion. A Process is single use.
type Process struct {
	id              string
	name            string
	args            []string
	logger          *slog.Logger
	processLogger   *slog.Logger // logger for process output (nil = use logger)
	logParser       LogParser    // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	onStart         func(pid int)
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu  sync.Mutex
	cmd *exec.Cmd
}

// New creates a process for name with args. Nothing runs until Run.
func New(id, name string, args []string, logger *slog.Logger, opts ...Option) *Process {
	p := &Process{
		id:              id,
		name:            name,
		args:            append([]string(nil), args...),
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Args returns a copy of the argument list.
func (p *Process) Args() []string {
	return append([]string(nil), p.args...)
}

// PID returns the OS process ID, or 0 before start.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// runningProcess holds channels for monitoring a running subprocess.
type runningProcess struct {
	processDone <-chan error
}

// startProcess starts the subprocess in its own process group and returns
// channels for monitoring.
func (p *Process) startProcess() (*runningProcess, error) {
	if p.name == "" {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(p.name, p.args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", p.name, err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	pid := cmd.Process.Pid
	p.logger.Info("Process started", "id", p.id, "pid", pid)
	if p.onStart != nil {
		p.onStart(pid)
	}

	outputDone := make(chan struct{}, 2)
	go func() {
		p.streamOutput(stdout, "stdout")
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	// Wait closes the pipes, so both readers must hit EOF first
	processDone := make(chan error, 1)
	go func() {
		<-outputDone
		<-outputDone
		processDone <- cmd.Wait()
	}()

	return &runningProcess{processDone: processDone}, nil
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
// A process terminated by a signal reports 128 plus the signal number.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

// Run starts the subprocess and blocks until it exits or ctx is cancelled.
// On cancellation the process group gets SIGINT, then SIGKILL after the
// graceful timeout. A start failure returns exit code 1 and the error.
func (p *Process) Run(ctx context.Context) (int, error) {
	rp, err := p.startProcess()
	if err != nil {
		return 1, err
	}

	select {
	case <-ctx.Done():
		p.logger.Info("Context cancelled, shutting down process", "id", p.id)
		p.signal(syscall.SIGINT)
		return p.waitForExit(rp.processDone), nil
	case processErr := <-rp.processDone:
		exitCode := exitCodeFromError(processErr)
		p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
		return exitCode, nil
	}
}

// signal sends sig to the process group without waiting.
func (p *Process) signal(sig syscall.Signal) {
	pid := p.PID()
	if pid == 0 {
		return
	}
	p.logger.Debug("Signalling process group", "pid", pid, "signal", sig.String())
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Warn("Failed to signal process", "signal", sig.String(), "error", err)
	}
}

// waitForExit waits for the process to exit, force-killing after the graceful timeout.
func (p *Process) waitForExit(processDone <-chan error) int {
	timer := time.NewTimer(p.gracefulTimeout)
	defer timer.Stop()

	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-timer.C:
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", p.gracefulTimeout)
		p.signal(syscall.SIGKILL)
		select {
		case <-processDone:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal", "id", p.id)
		}
		return ExitCodeKilled
	}
}

// streamOutput streams output from the subprocess.
// Lines end at '\n' or '\r' so carriage-return progress updates arrive one by one.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	scanner.Split(ScanLines)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "progress":
		case "panic", "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// ScanLines is a bufio.SplitFunc that splits on '\n', '\r' or "\r\n".
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
