package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camsync/internal/api/models"
	"github.com/smazurov/camsync/internal/broadcast"
	"github.com/smazurov/camsync/internal/syncproto"
)

// registerSyncRoutes registers the catalog and both sync channel transports.
func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-catalog",
		Method:      http.MethodGet,
		Path:        "/streams",
		Summary:     "Stream Catalog",
		Description: "List stream playlists and the server launch epoch",
		Tags:        []string{"sync"},
	}, func(_ context.Context, _ *struct{}) (*models.CatalogResponse, error) {
		return &models.CatalogResponse{
			CacheControl: "no-store",
			Body:         s.catalog.Snapshot(),
		}, nil
	})

	if s.broadcast == nil {
		return
	}

	// WebSocket transport, outside Huma since it hijacks the connection
	s.mux.HandleFunc("GET /sync", s.broadcast.ServeWebSocket)

	sse.Register(s.api, huma.Operation{
		OperationID: "sync-stream",
		Method:      http.MethodGet,
		Path:        "/api/sync",
		Summary:     "Sync Clock Stream",
		Description: "Sends server-info once, then a clock event every interval",
		Tags:        []string{"sync"},
	}, map[string]any{
		syncproto.EventServerInfo: syncproto.ServerInfo{},
		syncproto.EventClock:      syncproto.ClockTick{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		sess, err := s.broadcast.Open(ctx, broadcast.TransportSSE, func(msg syncproto.Message) error {
			return send.Data(msg)
		})
		if err != nil {
			return
		}
		<-sess.Done()
	})
}
