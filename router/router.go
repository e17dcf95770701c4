// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/classpulse/cliparse"
	"github.com/danielhkuo/classpulse/db"
	"github.com/danielhkuo/classpulse/handlers"
	"github.com/danielhkuo/classpulse/middleware"
	"github.com/danielhkuo/classpulse/ws"
)

func NewRouter(store *db.Store, hub *ws.Hub, cfg cliparse.Config) http.Handler {
	mux := http.NewServeMux()

	// Initialize handlers
	archiveHandler := handlers.NewArchiveHandler(store, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Live session transport
	mux.HandleFunc("GET /ws", hub.ServeWS)

	// Poll archive (read-only)
	mux.HandleFunc("GET /polls", middleware.WithLogging(archiveHandler.ListPolls))
	mux.HandleFunc("GET /polls/{id}", middleware.WithLogging(archiveHandler.GetPoll))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("classpulse API v1"))
	})

	return middleware.CORS(cfg, mux)
}
