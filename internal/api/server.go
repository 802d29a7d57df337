package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camsync/internal/api/models"
	"github.com/smazurov/camsync/internal/broadcast"
	"github.com/smazurov/camsync/internal/catalog"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/supervisor"
	"github.com/smazurov/camsync/internal/version"
)

// SlotController is the part of the supervisor the API drives.
type SlotController interface {
	Statuses() []supervisor.Status
	Status(id int) (supervisor.Status, error)
	Restart(id int) error
}

// Options wires the API to the rest of the server.
type Options struct {
	Slots             SlotController
	Catalog           *catalog.Catalog
	Broadcast         *broadcast.Service
	EventBus          *events.Bus
	HLSRoot           string
	PrometheusHandler http.Handler // optional
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	slots      SlotController
	catalog    *catalog.Catalog
	broadcast  *broadcast.Service
	eventBus   *events.Bus
	hlsRoot    string
	logger     *slog.Logger
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camsync API", version.String())
	config.Info.Description = "Live HLS transcoding with a shared playback clock"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	server := &Server{
		api:       api,
		mux:       mux,
		slots:     opts.Slots,
		catalog:   opts.Catalog,
		broadcast: opts.Broadcast,
		eventBus:  opts.EventBus,
		hlsRoot:   opts.HLSRoot,
		logger:    logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	// No bundled frontend; the root points at the OpenAPI docs
	mux.Handle("GET /{$}", http.RedirectHandler("/docs", http.StatusFound))

	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop. It returns http.ErrServerClosed after
// a clean stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting camsync API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+displayAddr(addr)+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes open sync sessions and shuts the server down, waiting up to
// timeout for in-flight requests.
func (s *Server) Stop(timeout time.Duration) error {
	s.logger.Info("Stopping API server")

	// Hijacked WebSocket connections are not tracked by http.Server
	if s.broadcast != nil {
		s.broadcast.Shutdown()
	}
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		// SSE streams stay open until their clients leave
		return s.httpServer.Close()
	}
	return nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// registerRoutes sets up all endpoints.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Report how many slots have a live transcoder",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		statuses := s.slots.Statuses()
		running := 0
		for _, st := range statuses {
			if st.State == supervisor.StateRunning {
				running++
			}
		}

		status := "ok"
		if running < len(statuses) {
			status = "degraded"
		}
		sessions := 0
		if s.broadcast != nil {
			sessions = s.broadcast.Sessions()
		}

		return &models.HealthResponse{
			Body: models.HealthData{
				Status:       status,
				Message:      fmt.Sprintf("%d of %d slots running", running, len(statuses)),
				Slots:        len(statuses),
				Running:      running,
				SyncSessions: sessions,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				BuildID:   versionInfo.BuildID,
				GoVersion: versionInfo.GoVersion,
				Compiler:  versionInfo.Compiler,
				Platform:  versionInfo.Platform,
			},
		}, nil
	})

	// Catalog, sync channels and static HLS
	s.registerSyncRoutes()
	s.registerHLSRoutes()

	// Slot status and control
	s.registerSlotRoutes()

	// SSE endpoints
	s.registerSSERoutes()
	s.registerMetricsRoutes()
	s.registerLogRoutes()
}
