// Package web serves the embedded app shell and the package download
// directory. The shell paths registered here are the same fixed manifest the
// offline gateway primes at install.
package web

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// RegisterRoutes mounts the shell assets and, when downloadsDir is set, the
// /downloads/ file tree hosting the package binary.
func RegisterRoutes(mux *http.ServeMux, downloadsDir string, logger *slog.Logger) {
	static, err := fs.Sub(StaticFS, "static")
	if err != nil {
		// The embed is part of the binary; a bad sub path is a build defect.
		panic(err)
	}

	serveIndex := func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	}

	mux.HandleFunc("GET /{$}", serveIndex)
	mux.HandleFunc("GET /index.html", serveIndex)
	mux.HandleFunc("GET /manifest.webmanifest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/manifest+json")
		http.ServeFileFS(w, r, static, "manifest.webmanifest")
	})

	if downloadsDir == "" {
		return
	}

	abs, err := filepath.Abs(downloadsDir)
	if err != nil {
		logger.Warn("downloads dir not mounted", "dir", downloadsDir, "error", err)
		return
	}
	if _, err := os.Stat(abs); err != nil {
		logger.Warn("downloads dir not mounted", "dir", abs, "error", err)
		return
	}

	mux.Handle("GET /downloads/", http.StripPrefix("/downloads/", http.FileServer(http.Dir(abs))))
	logger.Info("downloads dir mounted", "dir", abs)
}
