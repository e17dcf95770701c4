// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ws is the live transport for ClassPulse.

The Hub upgrades connections at GET /ws (gorilla/websocket), runs one
read and one write pump per client, and fans events out as the
session.Broadcaster. Outbound sends are non-blocking: a lagging client
drops events and catches up on the next broadcast.

Inbound messages use the models.Envelope framing and are routed to the
CommandHandler (the session coordinator). The chat relay and the
kick grace-period disconnect live here because they are transport
concerns, not poll state.
*/
package ws
