// Package syncclient follows a camsync server's clock and drives drift
// tiles from it.
//
// Run fetches the stream catalog, dials the /sync WebSocket and hands every
// clock tick to the attached tiles. Catalog and connection failures are
// retried with capped exponential backoff while Status reports degraded.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camsync/internal/drift"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/syncproto"
	"github.com/smazurov/camsync/internal/version"
)

// Status is the client's connection state.
type Status string

// Client states.
const (
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusDegraded   Status = "degraded"
	StatusClosed     Status = "closed"
)

// Paths on the server.
const (
	CatalogPath = "/streams"
	SyncPath    = "/sync"
)

const maxCatalogSize = 1 << 20

// Options configures a Client.
type Options struct {
	// BaseURL of the server, e.g. http://localhost:8000 (required).
	BaseURL string

	// LiveLag in seconds. Defaults to drift.DefaultLiveLag.
	LiveLag float64

	// HTTPClient for the catalog. Defaults to a client with a 5s timeout.
	HTTPClient *http.Client

	// Dialer for the sync channel. Defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// RetryDelay is the first retry delay, doubled per failure up to
	// MaxRetryDelay. Defaults 500ms and 10s.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// OnStatus is called on every status change (optional).
	OnStatus func(status Status, err error)

	// OnCatalog is called once from Run after the catalog has loaded and
	// before the sync channel is dialed (optional). Tiles attached here
	// see the first tick.
	OnCatalog func(cat syncproto.Catalog)

	Logger *slog.Logger
}

// Client holds the sync state shared by all tiles.
type Client struct {
	opts    Options
	base    *url.URL
	logger  *slog.Logger
	catalog syncproto.Catalog

	mu      sync.RWMutex
	status  Status
	lastErr error
	info    drift.SyncInfo
	tiles   []*drift.Tile
	lastNow int64
}

// New validates opts and returns an idle Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", opts.BaseURL)
	}
	if opts.LiveLag <= 0 {
		opts.LiveLag = drift.DefaultLiveLag
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.MaxRetryDelay < opts.RetryDelay {
		opts.MaxRetryDelay = max(10*time.Second, opts.RetryDelay)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("client")
	}

	return &Client{
		opts:   opts,
		base:   base,
		logger: logger,
		status: StatusConnecting,
		info:   drift.SyncInfo{LiveLag: opts.LiveLag},
	}, nil
}

// Attach adds a tile. It receives every tick from now on.
func (c *Client) Attach(tile *drift.Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles = append(c.tiles, tile)
}

// Detach removes a tile. The caller still owns and closes it.
func (c *Client) Detach(tile *drift.Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles = slices.DeleteFunc(c.tiles, func(t *drift.Tile) bool { return t == tile })
}

// Status returns the connection state and the last error while degraded.
func (c *Client) Status() (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status, c.lastErr
}

// Info returns the current sync info.
func (c *Client) Info() drift.SyncInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Catalog returns the catalog fetched by Run. It is empty before that.
func (c *Client) Catalog() syncproto.Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog
}

// LastTick returns the latest server time received, in epoch milliseconds.
func (c *Client) LastTick() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastNow
}

func (c *Client) setStatus(status Status, err error) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.lastErr = err
	c.mu.Unlock()

	if !changed {
		return
	}
	if err != nil {
		c.logger.Warn("Sync client status changed", "status", status, "error", err)
	} else {
		c.logger.Info("Sync client status changed", "status", status)
	}
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(status, err)
	}
}

// Run fetches the catalog and follows the clock until ctx is cancelled.
// It only returns ctx's error.
func (c *Client) Run(ctx context.Context) error {
	defer c.setStatus(StatusClosed, nil)

	failures := 0
	for {
		cat, err := c.FetchCatalog(ctx)
		if err == nil {
			c.mu.Lock()
			c.catalog = cat
			c.info.ServerStart = cat.ServerStart
			c.mu.Unlock()
			c.logger.Info("Catalog loaded", "streams", len(cat.Streams), "server_start", cat.ServerStart)
			if c.opts.OnCatalog != nil {
				c.opts.OnCatalog(cat)
			}
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failures++
		c.setStatus(StatusDegraded, err)
		if !c.sleep(ctx, failures) {
			return ctx.Err()
		}
	}

	failures = 0
	for {
		connected, err := c.follow(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			failures = 0
		}
		if err == nil {
			err = errors.New("sync channel closed by server")
		}
		failures++
		c.setStatus(StatusDegraded, err)
		if !c.sleep(ctx, failures) {
			return ctx.Err()
		}
	}
}

// retryDelay doubles per consecutive failure up to the cap.
func (c *Client) retryDelay(failures int) time.Duration {
	delay := c.opts.RetryDelay
	for i := 1; i < failures && delay < c.opts.MaxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, c.opts.MaxRetryDelay)
}

func (c *Client) sleep(ctx context.Context, failures int) bool {
	timer := time.NewTimer(c.retryDelay(failures))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// FetchCatalog makes one catalog request.
func (c *Client) FetchCatalog(ctx context.Context) (syncproto.Catalog, error) {
	u := c.base.JoinPath(CatalogPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return syncproto.Catalog{}, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return syncproto.Catalog{}, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return syncproto.Catalog{}, fmt.Errorf("catalog request returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return syncproto.Catalog{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	return syncproto.DecodeCatalog(body)
}

func (c *Client) syncURL() string {
	u := c.base.JoinPath(SyncPath)
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	return u.String()
}

// follow runs one connection and reports whether any message arrived. A
// nil error means the server closed the channel normally.
func (c *Client) follow(ctx context.Context) (bool, error) {
	header := http.Header{"User-Agent": []string{version.UserAgent()}}
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.syncURL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("sync dial failed: %w", err)
	}

	connected := false
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		defer func() { _ = conn.Close() }()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return errSessionEnded
				}
				return fmt.Errorf("sync read failed: %w", err)
			}
			if !connected {
				connected = true
				c.setStatus(StatusConnected, nil)
			}
			c.handle(b)
		}
	})

	err = g.Wait()
	if errors.Is(err, errSessionEnded) {
		return connected, nil
	}
	return connected, err
}

var errSessionEnded = errors.New("session ended")

// handle decodes one frame and fans clock ticks out to tiles.
func (c *Client) handle(b []byte) {
	msg, err := syncproto.Decode(b)
	if err != nil {
		c.logger.Warn("Skipping bad sync message", "error", err)
		return
	}

	switch m := msg.(type) {
	case syncproto.ServerInfo:
		c.mu.Lock()
		if c.info.ServerStart != m.ServerStart {
			c.logger.Info("Server epoch updated", "server_start", m.ServerStart)
		}
		c.info.ServerStart = m.ServerStart
		c.mu.Unlock()

	case syncproto.ClockTick:
		c.mu.Lock()
		c.lastNow = m.Now
		tick := drift.Tick{ServerNow: m.Now, Info: c.info}
		tiles := slices.Clone(c.tiles)
		c.mu.Unlock()

		for _, t := range tiles {
			t.Offer(tick)
		}
	}
}
