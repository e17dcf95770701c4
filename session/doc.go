// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session implements the live poll session core.

# Components

  - Registry: connected participants (display name + role) keyed by
    connection ID, insertion-ordered
  - Ledger: per-poll responded set and option tallies with
    exactly-once counting per connection
  - Coordinator: the Idle -> Active -> Closing -> Idle state machine

# State Machine

At most one poll is active process-wide. A poll closes for exactly one
of three triggers:

  - the countdown armed at creation expires (timeout)
  - every student counted at creation has answered (all-answered)
  - the teacher ends it (manual)

All three funnel through one guarded closure path under the
coordinator's mutex, so exactly one poll-ended event goes out per poll
even when triggers race.

# Collaborators

The coordinator broadcasts through the Broadcaster interface and
persists through the RecordStore interface. Both are injected, which
keeps the state machine testable with in-memory fakes. Store writes
happen after in-memory state has advanced and are best-effort: a dead
archive degrades durability, never the live session.

# Known Quirk

Expected respondents are snapshotted when the poll starts. A student
who registers mid-poll may still answer (counts and responded move) but
is not added to the quorum denominator, and a student who disconnects
mid-poll is not removed from it. This matches the product behavior and
is deliberate.
*/
package session
