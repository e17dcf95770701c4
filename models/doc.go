// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the shared types for the ClassPulse server.

# Domain Types

  - Participant: a connected identity (display name + role)
  - Poll: one question with ordered options, tallies, and responses
  - PollOption / Response: poll internals

# Wire Types

Every websocket message is wrapped in an Envelope:

	{"type": "submit-answer", "data": {"option_index": 1}}

Inbound command payloads end in Request; outbound event payloads end in
Event. Event kinds are the Event* constants, command kinds the Cmd*
constants.

# Close Reasons

A poll ends for exactly one of three reasons:

  - timeout: the countdown armed at creation expired
  - all-answered: every expected student responded
  - manual: the teacher ended it early
*/
package models
