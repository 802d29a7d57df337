// Package models holds the request and response shapes of the HTTP API.
package models

import (
	"github.com/smazurov/camsync/internal/hls"
	"github.com/smazurov/camsync/internal/supervisor"
	"github.com/smazurov/camsync/internal/syncproto"
)

// HealthData is the /api/health body.
type HealthData struct {
	Status       string `json:"status" example:"ok" doc:"ok when every slot is running, degraded otherwise"`
	Message      string `json:"message" example:"6 of 6 slots running"`
	Slots        int    `json:"slots" example:"6" doc:"Configured slots"`
	Running      int    `json:"running" example:"6" doc:"Slots with a live process"`
	SyncSessions int    `json:"sync_sessions" example:"3" doc:"Open sync channel connections"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionData is the /api/version body.
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Operating system and architecture"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// CatalogResponse is the /streams response.
type CatalogResponse struct {
	CacheControl string `header:"Cache-Control"`
	Body         syncproto.Catalog
}

// SlotData is one slot with its latest transcode progress.
type SlotData struct {
	supervisor.Status
	Playlist string       `json:"playlist" example:"/hls/stream1/index.m3u8" doc:"Playlist URL"`
	Progress *SlotMetrics `json:"progress,omitempty" doc:"Latest ffmpeg progress while running"`
}

// SlotMetrics is the parsed ffmpeg progress of a slot.
type SlotMetrics struct {
	FPS     float64 `json:"fps" example:"25"`
	Speed   float64 `json:"speed" example:"1.0"`
	Frames  float64 `json:"frames" example:"1500"`
	Dropped float64 `json:"dropped" example:"0"`
}

// SlotListData is the /api/slots body.
type SlotListData struct {
	Slots []SlotData `json:"slots"`
	Count int        `json:"count" example:"6"`
}

// SlotListResponse wraps SlotListData.
type SlotListResponse struct {
	Body SlotListData
}

// SlotResponse wraps one slot.
type SlotResponse struct {
	Body SlotData
}

// SlotRequest addresses one slot.
type SlotRequest struct {
	ID int `path:"id" minimum:"1" example:"2" doc:"Slot identifier"`
}

// RestartData confirms a restart request.
type RestartData struct {
	ID      int    `json:"id" example:"2"`
	Message string `json:"message" example:"restart requested"`
}

// RestartResponse wraps RestartData.
type RestartResponse struct {
	Body RestartData
}

// PlaylistData is the parsed playlist of a slot.
type PlaylistData struct {
	ID int `json:"id" example:"2"`
	hls.PlaylistInfo
	Stale bool `json:"stale" doc:"Playlist has not been rewritten for several target durations"`
}

// PlaylistResponse wraps PlaylistData.
type PlaylistResponse struct {
	Body PlaylistData
}
