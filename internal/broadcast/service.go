// Package broadcast emits the shared server clock to sync channel clients.
//
// Every connection gets a Session: one server-info message carrying the
// epoch, then a clock tick every interval until the connection goes away.
// A Session owns its ticker, a bounded outgoing queue and a writer
// goroutine, so a slow client only loses its own ticks.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/metrics"
	"github.com/smazurov/camsync/internal/syncproto"
)

// Transport labels for sessions.
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// Defaults.
const (
	DefaultInterval  = time.Second
	DefaultQueueSize = 4
)

// ErrClosed is returned by Open after Shutdown.
var ErrClosed = errors.New("broadcast service closed")

// SendFunc writes one message to a client. It is only ever called from the
// session's writer goroutine.
type SendFunc func(msg syncproto.Message) error

// Option configures a Service.
type Option func(*Service)

// WithInterval sets the clock tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithQueueSize sets the per-session outgoing queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithClock overrides the time source for ticks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service tracks open sessions against a fixed epoch.
type Service struct {
	epoch     time.Time
	interval  time.Duration
	queueSize int
	now       func() time.Time
	logger    *slog.Logger

	nextID   atomic.Uint64
	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

// New creates a Service. The epoch is fixed for the Service's lifetime.
func New(epoch time.Time, opts ...Option) *Service {
	s := &Service{
		epoch:     epoch,
		interval:  DefaultInterval,
		queueSize: DefaultQueueSize,
		now:       time.Now,
		logger:    logging.GetLogger("broadcast"),
		sessions:  make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Epoch returns the server launch time.
func (s *Service) Epoch() time.Time {
	return s.epoch
}

// Interval returns the tick interval.
func (s *Service) Interval() time.Duration {
	return s.interval
}

// ServerInfo returns the message sent first on every connection.
func (s *Service) ServerInfo() syncproto.ServerInfo {
	return syncproto.ServerInfo{ServerStart: syncproto.Millis(s.epoch)}
}

// Sessions returns the number of open sessions.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Open starts a session that writes through send until ctx is cancelled,
// send fails or the session is closed.
func (s *Service) Open(ctx context.Context, transport string, send SendFunc) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	sess := &Session{
		id:        s.nextID.Add(1),
		transport: transport,
		service:   s,
		send:      send,
		queue:     make(chan syncproto.Message, s.queueSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	sess.logger = s.logger.With("session", sess.id, "transport", transport)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	metrics.SyncConnectionOpened(transport)
	sess.logger.Debug("Sync session opened")

	// The queue is empty here, so server-info always goes out first
	sess.enqueue(s.ServerInfo())
	sess.start()
	return sess, nil
}

// Shutdown closes every session and waits for them to finish. Open fails
// afterwards.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	for _, sess := range sessions {
		<-sess.Done()
	}
}

func (s *Service) remove(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// Session is one client connection.
type Session struct {
	id        uint64
	transport string
	service   *Service
	send      SendFunc
	queue     chan syncproto.Message
	logger    *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	lastNow int64 // tick loop only
	dropped atomic.Uint64
}

func (sess *Session) start() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sess.tickLoop()
	}()
	go func() {
		defer wg.Done()
		sess.writeLoop()
	}()
	go func() {
		wg.Wait()
		sess.service.remove(sess)
		metrics.SyncConnectionClosed(sess.transport)
		sess.logger.Debug("Sync session closed", "dropped", sess.dropped.Load())
		close(sess.done)
	}()
}

// Close ends the session. It is safe to call more than once and from any
// goroutine, including while a tick is pending.
func (sess *Session) Close() {
	sess.closeOnce.Do(sess.cancel)
}

// Done is closed once both session goroutines have exited. No send happens
// after that.
func (sess *Session) Done() <-chan struct{} {
	return sess.done
}

// Dropped returns how many messages were discarded on a full queue.
func (sess *Session) Dropped() uint64 {
	return sess.dropped.Load()
}

// enqueue never blocks. A full queue drops the message.
func (sess *Session) enqueue(msg syncproto.Message) {
	select {
	case sess.queue <- msg:
	default:
		sess.dropped.Add(1)
		metrics.SyncMessageDropped(msg.Event())
	}
}

// nextTick returns the current server time, clamped so ticks on this
// session never go backwards.
func (sess *Session) nextTick() syncproto.ClockTick {
	now := syncproto.Millis(sess.service.now())
	if now < sess.lastNow {
		now = sess.lastNow
	}
	sess.lastNow = now
	return syncproto.ClockTick{Now: now}
}

func (sess *Session) tickLoop() {
	ticker := time.NewTicker(sess.service.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			sess.enqueue(sess.nextTick())
		}
	}
}

func (sess *Session) writeLoop() {
	for {
		select {
		case <-sess.ctx.Done():
			return
		case msg := <-sess.queue:
			if err := sess.send(msg); err != nil {
				sess.logger.Debug("Sync send failed, closing session", "error", err)
				sess.Close()
				return
			}
			metrics.SyncMessageSent(msg.Event())
		}
	}
}
