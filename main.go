// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/classpulse/cliparse"
	"github.com/danielhkuo/classpulse/db"
	"github.com/danielhkuo/classpulse/router"
	"github.com/danielhkuo/classpulse/session"
	"github.com/danielhkuo/classpulse/ws"
)

func main() {
	// Load .env if present; real env always wins
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env")
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the database. A dead database degrades the archive,
	// not the live session.
	store, recordStore := openStore(cfg)

	// Wire the live session core
	registry := session.NewRegistry()
	ledger := session.NewLedger()
	hub := ws.NewHub(cfg)
	coordinator := session.NewCoordinator(registry, ledger, recordStore, hub)
	hub.Bind(coordinator)

	// Create router
	handler := router.NewRouter(store, hub, cfg)

	// Create server
	server := http.Server{
		Handler: handler,
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

// openStore opens the configured database and builds the poll store.
// Both returns are nil when the database is unreachable.
func openStore(cfg cliparse.Config) (*db.Store, session.RecordStore) {
	driver := "sqlite"
	if cfg.DatabaseType == "postgres" {
		driver = "postgres"
	}

	dbConn, err := sql.Open(driver, cfg.DatabaseURL)
	if err == nil {
		err = dbConn.Ping()
	}
	if err == nil {
		err = db.CreateSchema(dbConn)
	}
	if err != nil {
		slog.Error("database unavailable, running without archive", "error", err)
		return nil, nil
	}

	slog.Info("Database schema ready", "type", cfg.DatabaseType)
	store := db.NewStore(dbConn)
	return store, store
}
