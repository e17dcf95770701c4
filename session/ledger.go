// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"time"

	"github.com/danielhkuo/classpulse/models"
)

// Ledger tracks who has answered the current poll and the per-option
// tallies. It is scoped to exactly one active poll at a time and is
// mutated only by the coordinator, under the coordinator's lock.
type Ledger struct {
	responded map[string]struct{}
	counts    []int
	responses []models.Response
	expected  int
}

func NewLedger() *Ledger {
	return &Ledger{responded: make(map[string]struct{})}
}

// Reset clears all submission state for a new poll. Called exactly once
// per poll start.
func (l *Ledger) Reset(optionCount, expected int) {
	l.responded = make(map[string]struct{})
	l.counts = make([]int, optionCount)
	l.responses = nil
	l.expected = expected
}

// Record applies one submission. It returns false without side effects
// when the connection has already answered or the option index is out
// of range. Each connection counts at most once per poll.
func (l *Ledger) Record(connID, displayName string, optionIndex int, at time.Time) bool {
	if optionIndex < 0 || optionIndex >= len(l.counts) {
		return false
	}
	if _, dup := l.responded[connID]; dup {
		return false
	}

	l.responded[connID] = struct{}{}
	l.counts[optionIndex]++
	l.responses = append(l.responses, models.Response{
		ParticipantID: connID,
		DisplayName:   displayName,
		OptionIndex:   optionIndex,
		SubmittedAt:   at,
	})
	return true
}

// Snapshot is the per-broadcast view of the ledger.
type Snapshot struct {
	Counts    []int
	Responded int
	Expected  int
}

// Snapshot returns a copy of the current tallies.
func (l *Ledger) Snapshot() Snapshot {
	counts := make([]int, len(l.counts))
	copy(counts, l.counts)
	return Snapshot{
		Counts:    counts,
		Responded: len(l.responded),
		Expected:  l.expected,
	}
}

// Responses returns the accepted submissions in arrival order.
func (l *Ledger) Responses() []models.Response {
	out := make([]models.Response, len(l.responses))
	copy(out, l.responses)
	return out
}

// Quorum reports whether every expected student has answered. A poll
// created with zero students never reaches quorum.
func (l *Ledger) Quorum() bool {
	return l.expected > 0 && len(l.responded) >= l.expected
}
