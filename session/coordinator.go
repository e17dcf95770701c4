// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danielhkuo/classpulse/models"
)

// Broadcaster fans coordinator events out to connected viewers. The
// coordinator calls it synchronously inside each state transition, so
// every connection observes a poll's events in started, updated*,
// ended order.
type Broadcaster interface {
	AnnounceAll(kind string, payload interface{})
	AnnounceOne(connID string, kind string, payload interface{})
}

// RecordStore is the durable archive the coordinator writes through
// to. All writes are best-effort: in-memory state has already advanced
// when a store call fails.
type RecordStore interface {
	InsertPoll(p *models.Poll) error
	AppendResponse(pollID string, resp models.Response, newCount int) error
	FinalizePoll(p *models.Poll) error
}

// DefaultPollDuration applies when a create request carries no
// positive duration.
const DefaultPollDuration = 60 * time.Second

type state int

const (
	stateIdle state = iota
	stateActive
	stateClosing
)

// Coordinator owns the single active-poll state machine. One mutex
// serializes every transition - register, disconnect, create, submit,
// manual end, and the countdown firing - so no two transitions ever
// interleave and closure runs at most once per poll.
type Coordinator struct {
	mu       sync.Mutex
	registry *Registry
	ledger   *Ledger
	store    RecordStore // nil when the archive is unavailable
	bc       Broadcaster

	state  state
	active *models.Poll
	timer  *time.Timer

	now func() time.Time
}

func NewCoordinator(registry *Registry, ledger *Ledger, store RecordStore, bc Broadcaster) *Coordinator {
	return &Coordinator{
		registry: registry,
		ledger:   ledger,
		store:    store,
		bc:       bc,
		state:    stateIdle,
		now:      time.Now,
	}
}

// Register upserts a participant and, when a poll is running, replays
// the current poll privately to the new connection so it sees the poll
// already in progress without affecting anyone else.
func (c *Coordinator) Register(connID, displayName, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.registry.Register(connID, displayName, role)
	slog.Info("participant registered", "conn_id", connID, "name", p.DisplayName, "role", p.Role)

	c.broadcastRoster()

	if c.state == stateActive {
		snap := c.ledger.Snapshot()
		c.bc.AnnounceOne(connID, models.EventPollStarted, models.PollStartedEvent{
			PollID:    c.active.ID,
			Question:  c.active.Question,
			Options:   c.active.OptionTexts(),
			ExpiresAt: c.active.ExpiresAt.Unix(),
			Expected:  snap.Expected,
		})
		c.bc.AnnounceOne(connID, models.EventPollUpdated, models.PollUpdatedEvent{
			PollID:    c.active.ID,
			Counts:    snap.Counts,
			Responded: snap.Responded,
			Expected:  snap.Expected,
		})
	}
}

// Disconnect removes a participant from the roster. An active poll is
// unaffected: expected respondents stay snapshotted at poll start and
// any recorded answer keeps its slot.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.registry.Get(connID); !ok {
		return
	}
	c.registry.Remove(connID)
	slog.Info("participant disconnected", "conn_id", connID)
	c.broadcastRoster()
}

// CreatePoll starts a new poll. Teacher-only; valid only while no poll
// is active. Validation failures surface privately to the requester
// and never broadcast.
func (c *Coordinator) CreatePoll(connID, question string, options []string, durationSec int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sender, ok := c.registry.Get(connID)
	if !ok || sender.Role != models.RoleTeacher {
		return // protocol misuse, not a reportable error
	}

	if c.state != stateIdle {
		c.bc.AnnounceOne(connID, models.EventValidationError, models.ValidationErrorEvent{
			Message: "A poll is already active.",
		})
		return
	}

	question = strings.TrimSpace(question)
	cleaned := []string{}
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if question == "" || len(cleaned) < 2 {
		c.bc.AnnounceOne(connID, models.EventValidationError, models.ValidationErrorEvent{
			Message: "Question and at least 2 options are required.",
		})
		return
	}

	duration := time.Duration(durationSec) * time.Second
	if duration <= 0 {
		duration = DefaultPollDuration
	}

	now := c.now()
	poll := &models.Poll{
		ID:        uuid.NewString(),
		Question:  question,
		IsActive:  true,
		ExpiresAt: now.Add(duration),
		CreatedBy: sender.DisplayName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, text := range cleaned {
		poll.Options = append(poll.Options, models.PollOption{Text: text})
	}

	// In-memory state first; the store write is best-effort.
	expected := c.registry.CountStudents()
	c.active = poll
	c.ledger.Reset(len(poll.Options), expected)
	c.state = stateActive

	if c.store != nil {
		if err := c.store.InsertPoll(poll); err != nil {
			slog.Error("failed to persist poll", "error", err, "poll_id", poll.ID)
		}
	}

	slog.Info("poll started", "poll_id", poll.ID, "question", question,
		"expected", expected, "duration", duration.String())

	c.bc.AnnounceAll(models.EventPollStarted, models.PollStartedEvent{
		PollID:    poll.ID,
		Question:  poll.Question,
		Options:   poll.OptionTexts(),
		ExpiresAt: poll.ExpiresAt.Unix(),
		Expected:  expected,
	})
	c.broadcastUpdate()

	pollID := poll.ID
	c.timer = time.AfterFunc(duration, func() {
		c.timeoutFired(pollID)
	})
}

// SubmitAnswer applies one student submission. Rejections - no active
// poll, non-student, duplicate, out-of-range index - are silent
// no-ops.
func (c *Coordinator) SubmitAnswer(connID string, optionIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateActive {
		return
	}
	sender, ok := c.registry.Get(connID)
	if !ok || sender.Role != models.RoleStudent {
		return
	}

	now := c.now()
	if !c.ledger.Record(connID, sender.DisplayName, optionIndex, now) {
		return
	}

	c.active.Options[optionIndex].Count++
	c.active.UpdatedAt = now

	if c.store != nil {
		resp := models.Response{
			ParticipantID: connID,
			DisplayName:   sender.DisplayName,
			OptionIndex:   optionIndex,
			SubmittedAt:   now,
		}
		if err := c.store.AppendResponse(c.active.ID, resp, c.active.Options[optionIndex].Count); err != nil {
			slog.Error("failed to persist response", "error", err, "poll_id", c.active.ID)
		}
	}

	c.broadcastUpdate()

	if c.ledger.Quorum() {
		c.closeLocked(models.ReasonAllAnswered)
	}
}

// EndPoll closes the active poll at the teacher's request.
func (c *Coordinator) EndPoll(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sender, ok := c.registry.Get(connID)
	if !ok || sender.Role != models.RoleTeacher {
		return
	}
	if c.state != stateActive {
		return
	}
	c.closeLocked(models.ReasonManual)
}

// Kick removes a participant by display name at the teacher's request.
// The target gets a private kicked notice before removal; the caller
// receives the target's connection ID so the transport can drop it.
// Duplicate names resolve first-match-wins.
func (c *Coordinator) Kick(connID, targetName string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sender, ok := c.registry.Get(connID)
	if !ok || sender.Role != models.RoleTeacher {
		return "", false
	}

	target, ok := c.registry.FindByName(targetName)
	if !ok {
		return "", false
	}

	c.bc.AnnounceOne(target.ConnID, models.EventKicked, struct{}{})
	c.registry.Remove(target.ConnID)
	slog.Info("participant kicked", "name", targetName, "conn_id", target.ConnID)
	c.broadcastRoster()

	return target.ConnID, true
}

// timeoutFired is the countdown callback. The poll ID guards against a
// stale timer closing a later poll.
func (c *Coordinator) timeoutFired(pollID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateActive || c.active == nil || c.active.ID != pollID {
		return
	}
	c.closeLocked(models.ReasonTimeout)
}

// closeLocked finalizes the active poll. Callers hold c.mu and have
// verified the Active state, so closure runs at most once per poll no
// matter how many of timeout, quorum, and manual fire together.
func (c *Coordinator) closeLocked(reason string) {
	c.state = stateClosing

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	poll := c.active
	snap := c.ledger.Snapshot()

	poll.IsActive = false
	poll.Responses = c.ledger.Responses()
	poll.UpdatedAt = c.now()

	if c.store != nil {
		if err := c.store.FinalizePoll(poll); err != nil {
			slog.Error("failed to finalize poll", "error", err, "poll_id", poll.ID)
		}
	}

	slog.Info("poll ended", "poll_id", poll.ID, "reason", reason,
		"responses", snap.Responded, "expected", snap.Expected,
		"ran_for", humanize.RelTime(poll.CreatedAt, poll.UpdatedAt, "", ""))

	c.bc.AnnounceAll(models.EventPollEnded, models.PollEndedEvent{
		PollID:         poll.ID,
		Question:       poll.Question,
		Options:        poll.OptionTexts(),
		Counts:         poll.OptionCounts(),
		TotalResponses: snap.Responded,
		Expected:       snap.Expected,
		Reason:         reason,
	})

	c.active = nil
	c.ledger.Reset(0, 0)
	c.state = stateIdle
}

func (c *Coordinator) broadcastUpdate() {
	snap := c.ledger.Snapshot()
	c.bc.AnnounceAll(models.EventPollUpdated, models.PollUpdatedEvent{
		PollID:    c.active.ID,
		Counts:    snap.Counts,
		Responded: snap.Responded,
		Expected:  snap.Expected,
	})
}

// broadcastRoster announces the current student names. Teachers are
// excluded from the list.
func (c *Coordinator) broadcastRoster() {
	students := c.registry.Students()
	names := make([]string, len(students))
	for i, s := range students {
		names[i] = s.DisplayName
	}
	c.bc.AnnounceAll(models.EventRosterChanged, models.RosterChangedEvent{Participants: names})
}
