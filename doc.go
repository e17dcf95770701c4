// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the ClassPulse server.

ClassPulse is a real-time classroom polling service: a teacher starts a
timed multiple-choice poll, connected students answer once each, and
everyone watches the tallies move live. Polls close on timeout, when
every student has answered, or when the teacher ends them.

# Starting the Server

The server requires environment variables or CLI flags for
configuration:

	DATABASE_URL=polls.db go run main.go

Or with flags:

	go run main.go -p 3318 -d polls.db -t sqlite

A .env file in the working directory is loaded if present.

# Configuration

  - DATABASE_URL (-d): sqlite path or postgres connection string, required
  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"
  - PORT (-p): server port (default: 3318)
  - CLIENT_ORIGIN (-origin): comma-separated allowed origins (default: *)
  - RECENT_POLL_LIMIT (-recent): archive listing size (default: 20)

# Architecture

  - session: the live poll state machine (registry, ledger, coordinator)
  - ws: gorilla/websocket transport, hub, chat relay
  - db: durable poll archive (schema + store)
  - handlers: HTTP read surface for the archive
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: domain and wire types
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
