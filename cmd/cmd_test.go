package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/camsync/internal/broadcast"
	"github.com/smazurov/camsync/internal/catalog"
	"github.com/smazurov/camsync/internal/ffmpeg"
)

func TestPipelineParams(t *testing.T) {
	def := ffmpeg.DefaultParams("", "")

	tests := []struct {
		name  string
		opts  PipelineOptions
		check func(t *testing.T, p ffmpeg.Params)
	}{
		{"zero keeps defaults except width", PipelineOptions{}, func(t *testing.T, p ffmpeg.Params) {
			if p.FrameRate != def.FrameRate || p.Bitrate != def.Bitrate || p.PlaylistSize != def.PlaylistSize {
				t.Errorf("got %+v", p)
			}
			if p.Width != 0 {
				t.Errorf("Width = %d, want 0 (source size)", p.Width)
			}
		}},
		{"negative width keeps default", PipelineOptions{Width: -1}, func(t *testing.T, p ffmpeg.Params) {
			if p.Width != def.Width {
				t.Errorf("Width = %d, want %d", p.Width, def.Width)
			}
		}},
		{"bitrate scales maxrate and buffer", PipelineOptions{Bitrate: 2000, Width: -1}, func(t *testing.T, p ffmpeg.Params) {
			if p.Bitrate != 2000 || p.MaxRate != 2400 || p.BufferSize != 4000 {
				t.Errorf("rates = %d/%d/%d", p.Bitrate, p.MaxRate, p.BufferSize)
			}
		}},
		{"timing", PipelineOptions{FrameRate: 30, SegmentSeconds: 2, PlaylistSize: 4, Width: -1}, func(t *testing.T, p ffmpeg.Params) {
			if p.GOP() != 60 || p.PlaylistSize != 4 {
				t.Errorf("gop %d, window %d", p.GOP(), p.PlaylistSize)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, PipelineParams(tt.opts))
		})
	}
}

func TestArgsCmdUsesSourcesFile(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "streams.toml")
	body := "[[streams]]\nid = 2\nsource = \"rtsp://cam2/live\"\n"
	if err := os.WriteFile(sources, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	run := func(slot string) string {
		t.Helper()
		var out bytes.Buffer
		c := CreateArgsCmd()
		c.SetOut(&out)
		c.SetArgs([]string{slot,
			"--config", filepath.Join(dir, "missing.toml"),
			"--sources-file", sources,
			"--media-root", filepath.Join(dir, "hls"),
			"--default-source", "rtsp://fallback/live",
		})
		if err := c.Execute(); err != nil {
			t.Fatalf("args %s: %v", slot, err)
		}
		return out.String()
	}

	if got := run("2"); !strings.Contains(got, "rtsp://cam2/live") || !strings.Contains(got, "stream2") {
		t.Errorf("slot 2 command = %q", got)
	}
	if got := run("3"); !strings.Contains(got, "rtsp://fallback/live") || !strings.Contains(got, "stream3") {
		t.Errorf("slot 3 command = %q", got)
	}
}

func TestArgsCmdRejectsBadSlot(t *testing.T) {
	c := CreateArgsCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"zero"})
	if err := c.Execute(); err == nil {
		t.Error("expected error for non-numeric slot")
	}
}

func TestInspectCmdResolvesSlot(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "stream1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:1\n#EXT-X-MEDIA-SEQUENCE:7\n" +
		"#EXTINF:1.000000,\nseg_007.ts\n#EXTINF:1.000000,\nseg_008.ts\n"
	if err := os.WriteFile(filepath.Join(dir, ffmpeg.PlaylistName), []byte(playlist), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	c := CreateInspectCmd()
	c.SetOut(&out)
	c.SetArgs([]string{"1", "--media-root", root})
	if err := c.Execute(); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"media sequence:  7", "segments:        2", "seg_008.ts", "live"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestFollowCmdSizesTilesAfterCatalogRetry(t *testing.T) {
	epoch := time.Now().Add(-time.Minute)
	svc := broadcast.New(epoch, broadcast.WithInterval(20*time.Millisecond))
	cat := catalog.New(epoch, 3)

	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /streams", func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cat.Snapshot())
	})
	mux.HandleFunc("GET /sync", svc.ServeWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer svc.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	c := CreateFollowCmd()
	c.SetOut(&out)
	c.SetArgs([]string{"--server", srv.URL})
	if err := c.ExecuteContext(ctx); err != nil {
		t.Fatalf("follow: %v", err)
	}

	if got := requests.Load(); got != 2 {
		t.Errorf("catalog requests = %d, want 2", got)
	}
	for _, want := range []string{"tile 1 ", "tile 2 ", "tile 3 "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
