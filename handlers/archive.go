// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/classpulse/cliparse"
	"github.com/danielhkuo/classpulse/db"
	"github.com/danielhkuo/classpulse/middleware"
	"github.com/danielhkuo/classpulse/models"
)

// ArchiveHandler serves the poll history read surface.
type ArchiveHandler struct {
	store *db.Store
	cfg   cliparse.Config
}

func NewArchiveHandler(store *db.Store, cfg cliparse.Config) *ArchiveHandler {
	return &ArchiveHandler{store: store, cfg: cfg}
}

// pollSummary is a listing row: the poll plus a humanized age.
type pollSummary struct {
	models.Poll
	Age string `json:"age"`
}

// ListPolls handles GET /polls
// Returns the most recent polls, newest first. An optional ?limit
// caps the page below the configured maximum.
func (h *ArchiveHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Poll archive is unavailable")
		return
	}

	limit := h.cfg.RecentPollLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	polls, err := h.store.ListRecent(limit)
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	now := time.Now()
	summaries := make([]pollSummary, len(polls))
	for i, p := range polls {
		summaries[i] = pollSummary{Poll: p, Age: humanize.RelTime(p.CreatedAt, now, "ago", "from now")}
	}

	middleware.JSONResponse(w, http.StatusOK, summaries)
}

// GetPoll handles GET /polls/{id}
// Returns one archived poll with options and responses.
func (h *ArchiveHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Poll archive is unavailable")
		return
	}

	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll id is required")
		return
	}

	poll, err := h.store.GetPoll(pollID)
	if errors.Is(err, db.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, poll)
}
