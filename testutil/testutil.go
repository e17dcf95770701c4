// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/classpulse/cliparse"
	"github.com/danielhkuo/classpulse/db"
	"github.com/danielhkuo/classpulse/models"
)

// SetupTestDB creates a fresh in-memory sqlite database with the full
// schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// One connection so the in-memory database is shared
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            3318,
		DatabaseURL:     ":memory:",
		DatabaseType:    "sqlite",
		ClientOrigins:   []string{"*"},
		RecentPollLimit: 20,
	}
}

// MakeTestPoll builds an active poll with the given option texts.
func MakeTestPoll(question string, options ...string) *models.Poll {
	now := time.Now()
	p := &models.Poll{
		ID:        uuid.NewString(),
		Question:  question,
		IsActive:  true,
		ExpiresAt: now.Add(60 * time.Second),
		CreatedBy: "TestTeacher",
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, text := range options {
		p.Options = append(p.Options, models.PollOption{Text: text})
	}
	return p
}

// Announcement is one event captured by RecordingBroadcaster. ConnID is
// empty for announce-to-all events.
type Announcement struct {
	ConnID  string
	Kind    string
	Payload interface{}
}

// RecordingBroadcaster implements session.Broadcaster and records every
// announcement for assertions.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []Announcement
}

func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{}
}

func (b *RecordingBroadcaster) AnnounceAll(kind string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Announcement{Kind: kind, Payload: payload})
}

func (b *RecordingBroadcaster) AnnounceOne(connID string, kind string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Announcement{ConnID: connID, Kind: kind, Payload: payload})
}

// Events returns a copy of everything announced so far.
func (b *RecordingBroadcaster) Events() []Announcement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Announcement, len(b.events))
	copy(out, b.events)
	return out
}

// OfKind returns the announcements with the given kind, any target.
func (b *RecordingBroadcaster) OfKind(kind string) []Announcement {
	var out []Announcement
	for _, e := range b.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// BroadcastsOfKind returns only the announce-to-all events of a kind.
func (b *RecordingBroadcaster) BroadcastsOfKind(kind string) []Announcement {
	var out []Announcement
	for _, e := range b.Events() {
		if e.Kind == kind && e.ConnID == "" {
			out = append(out, e)
		}
	}
	return out
}

// For returns the private announcements sent to one connection.
func (b *RecordingBroadcaster) For(connID string) []Announcement {
	var out []Announcement
	for _, e := range b.Events() {
		if e.ConnID == connID {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops everything recorded so far.
func (b *RecordingBroadcaster) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
