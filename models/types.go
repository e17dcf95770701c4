// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"time"
)

// Participant roles
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Poll close reasons
const (
	ReasonTimeout     = "timeout"
	ReasonAllAnswered = "all-answered"
	ReasonManual      = "manual"
)

// Event kinds pushed over the live connection
const (
	EventPollStarted     = "poll-started"
	EventPollUpdated     = "poll-updated"
	EventPollEnded       = "poll-ended"
	EventRosterChanged   = "roster-changed"
	EventValidationError = "validation-error"
	EventChatMessage     = "chat-message"
	EventKicked          = "kicked"
)

// Command kinds accepted from the live connection
const (
	CmdRegister   = "register"
	CmdCreatePoll = "create-poll"
	CmdSubmit     = "submit-answer"
	CmdEndPoll    = "end-poll"
	CmdChat       = "chat-message"
	CmdKick       = "kick"
)

// Envelope is the framing for every websocket message, both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command payloads

type RegisterRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type CreatePollRequest struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	DurationSec int      `json:"duration_sec"`
}

type SubmitAnswerRequest struct {
	OptionIndex int `json:"option_index"`
}

type ChatRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Role    string `json:"role"`
}

type KickRequest struct {
	Name string `json:"name"`
}

// Event payloads

type PollStartedEvent struct {
	PollID    string   `json:"poll_id"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	ExpiresAt int64    `json:"expires_at"` // epoch seconds
	Expected  int      `json:"expected"`
}

type PollUpdatedEvent struct {
	PollID    string `json:"poll_id"`
	Counts    []int  `json:"counts"`
	Responded int    `json:"responded"`
	Expected  int    `json:"expected"`
}

type PollEndedEvent struct {
	PollID         string   `json:"poll_id"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	Counts         []int    `json:"counts"`
	TotalResponses int      `json:"total_responses"`
	Expected       int      `json:"expected"`
	Reason         string   `json:"reason"`
}

type RosterChangedEvent struct {
	Participants []string `json:"participants"`
}

type ValidationErrorEvent struct {
	Message string `json:"message"`
}

type ChatMessageEvent struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Role    string `json:"role"`
	At      int64  `json:"at"` // epoch milliseconds
}

// Domain types

type Participant struct {
	ConnID      string `json:"-"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type PollOption struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

type Response struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	OptionIndex   int       `json:"option_index"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type Poll struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	IsActive  bool         `json:"is_active"`
	ExpiresAt time.Time    `json:"expires_at"`
	CreatedBy string       `json:"created_by"`
	Responses []Response   `json:"responses"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// OptionTexts returns the option labels in display order.
func (p *Poll) OptionTexts() []string {
	texts := make([]string, len(p.Options))
	for i, o := range p.Options {
		texts[i] = o.Text
	}
	return texts
}

// OptionCounts returns the tallies aligned to OptionTexts order.
func (p *Poll) OptionCounts() []int {
	counts := make([]int, len(p.Options))
	for i, o := range p.Options {
		counts[i] = o.Count
	}
	return counts
}

// ErrorResponse is the JSON error body for the HTTP read surface.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
