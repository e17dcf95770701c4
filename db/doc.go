// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db owns the durable poll archive.

# Schema

Three tables: poll, poll_option (ordered by idx), poll_response (one row
per participant per poll). CreateSchema is idempotent and the DDL is
portable between the sqlite and postgres drivers.

# Store

Store wraps *sql.DB with the operations the live session needs:

	store := db.NewStore(conn)
	store.InsertPoll(poll)              // at poll start
	store.AppendResponse(id, resp, n)   // per accepted submission
	store.FinalizePoll(poll)            // at poll close

and the read surface used by the HTTP handlers:

	store.ListRecent(20)
	store.GetPoll(id)

Durability is best-effort relative to the live session: the coordinator
logs store errors and keeps going.
*/
package db
