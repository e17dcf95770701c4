// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP routes for the ClassPulse server.

Routes use Go 1.22+ method patterns:

	GET /health     → liveness probe
	GET /ws         → websocket upgrade for the live session
	GET /polls      → recent poll archive
	GET /polls/{id} → one archived poll
	GET /           → API banner

The whole mux is wrapped in the CORS middleware so browser clients on
the configured origins can reach both the archive and the websocket
handshake.
*/
package router
