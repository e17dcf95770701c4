// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP handlers for the poll archive.

Live polling happens over the websocket; HTTP only exposes history:

	GET /polls      → ListPolls (most recent, newest first)
	GET /polls/{id} → GetPoll (full record with responses)

Handlers degrade to 503 when the server started without a database.
*/
package handlers
