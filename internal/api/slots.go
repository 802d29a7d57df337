package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camsync/internal/api/models"
	"github.com/smazurov/camsync/internal/ffmpeg"
	"github.com/smazurov/camsync/internal/hls"
	"github.com/smazurov/camsync/internal/metrics"
	"github.com/smazurov/camsync/internal/supervisor"
)

// registerSlotRoutes registers slot status and control endpoints.
func (s *Server) registerSlotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-slots",
		Method:      http.MethodGet,
		Path:        "/api/slots",
		Summary:     "List Slots",
		Description: "State, PID and restart counts of every transcoding slot",
		Tags:        []string{"slots"},
	}, func(_ context.Context, _ *struct{}) (*models.SlotListResponse, error) {
		statuses := s.slots.Statuses()
		slots := make([]models.SlotData, len(statuses))
		for i, st := range statuses {
			slots[i] = s.slotData(st)
		}
		return &models.SlotListResponse{
			Body: models.SlotListData{Slots: slots, Count: len(slots)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-slot",
		Method:      http.MethodGet,
		Path:        "/api/slots/{id}",
		Summary:     "Get Slot",
		Description: "State of one transcoding slot",
		Tags:        []string{"slots"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.SlotRequest) (*models.SlotResponse, error) {
		st, err := s.slots.Status(input.ID)
		if err != nil {
			return nil, mapSlotError(err)
		}
		return &models.SlotResponse{Body: s.slotData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "restart-slot",
		Method:        http.MethodPost,
		Path:          "/api/slots/{id}/restart",
		Summary:       "Restart Slot",
		Description:   "Relaunch a slot's transcoder now, skipping any backoff delay",
		Tags:          []string{"slots"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{404, 503},
	}, func(_ context.Context, input *models.SlotRequest) (*models.RestartResponse, error) {
		if err := s.slots.Restart(input.ID); err != nil {
			return nil, mapSlotError(err)
		}
		s.logger.Info("Slot restart requested via API", "slot", input.ID)
		return &models.RestartResponse{
			Body: models.RestartData{ID: input.ID, Message: "restart requested"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-slot-playlist",
		Method:      http.MethodGet,
		Path:        "/api/slots/{id}/playlist",
		Summary:     "Slot Playlist",
		Description: "Parsed window of the slot's rolling playlist",
		Tags:        []string{"slots"},
		Errors:      []int{404, 500},
	}, func(_ context.Context, input *models.SlotRequest) (*models.PlaylistResponse, error) {
		st, err := s.slots.Status(input.ID)
		if err != nil {
			return nil, mapSlotError(err)
		}

		info, err := hls.Inspect(filepath.Join(st.OutputDir, ffmpeg.PlaylistName), time.Now())
		if errors.Is(err, os.ErrNotExist) {
			return nil, huma.Error404NotFound("Playlist not written yet")
		}
		if err != nil {
			s.logger.Warn("Failed to inspect playlist", "slot", input.ID, "error", err)
			return nil, huma.Error500InternalServerError("Failed to parse playlist", err)
		}

		return &models.PlaylistResponse{
			Body: models.PlaylistData{ID: input.ID, PlaylistInfo: info, Stale: info.Stale()},
		}, nil
	})
}

func (s *Server) slotData(st supervisor.Status) models.SlotData {
	data := models.SlotData{Status: st, Playlist: s.catalog.PlaylistURL(st.ID)}
	if m := metrics.GetSlotMetrics(st.ID); m != nil {
		data.Progress = &models.SlotMetrics{FPS: m.FPS, Speed: m.Speed, Frames: m.Frames, Dropped: m.Dropped}
	}
	return data
}

func mapSlotError(err error) error {
	switch {
	case errors.Is(err, supervisor.ErrUnknownSlot):
		return huma.Error404NotFound("Slot not found", err)
	case errors.Is(err, supervisor.ErrNotRunning):
		return huma.Error503ServiceUnavailable("Supervisor not running", err)
	default:
		return huma.Error500InternalServerError("Slot operation failed", err)
	}
}
