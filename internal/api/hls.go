package api

import (
	"net/http"
	"path"
	"strings"
)

// registerHLSRoutes serves playlists and segments from the HLS root.
func (s *Server) registerHLSRoutes() {
	if s.hlsRoot == "" {
		return
	}
	files := http.StripPrefix("/hls/", http.FileServer(http.Dir(s.hlsRoot)))
	s.mux.Handle("GET /hls/", WithCORS(DefaultCORSConfig(), hlsHeaders(files)))
}

// hlsHeaders sets HLS content types and keeps playlists out of caches.
// Directory listings are not served.
func hlsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		switch path.Ext(r.URL.Path) {
		case ".m3u8":
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Header().Set("Cache-Control", "no-cache, no-store")
		case ".ts":
			w.Header().Set("Content-Type", "video/mp2t")
			w.Header().Set("Cache-Control", "max-age=60")
		}
		next.ServeHTTP(w, r)
	})
}
