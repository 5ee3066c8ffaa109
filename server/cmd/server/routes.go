package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bizpulse/bizpulse/server/internal/auth"
	"github.com/bizpulse/bizpulse/server/internal/config"
)

// openPaths are reachable without an API key.
var openPaths = []string{"/api/v1/health", "/metrics"}

// newMux mounts the REST API, the metrics endpoint and the WebSocket hub
// behind the API key middleware, plus the optional static UI.
func newMux(authCfg config.AuthConfig, apiHandler, hub http.Handler, uiDir string) *http.ServeMux {
	requireKey := auth.APIKeyMiddleware(
		authCfg.Mode,
		authCfg.EffectiveHeader(),
		authCfg.Key(),
		openPaths...,
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", requireKey(apiHandler))
	mux.Handle("/metrics", requireKey(apiHandler))
	mux.Handle("/ws/stream", requireKey(hub))

	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if uiDir != "" {
		fs := http.FileServer(http.Dir(uiDir))
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := filepath.Join(uiDir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(uiDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", uiDir)
	}
	return mux
}
