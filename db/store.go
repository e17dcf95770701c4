// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/classpulse/models"
)

var ErrNotFound = errors.New("poll not found")

// Store persists poll records. It is the durable side of the live
// session; the coordinator treats it as best-effort.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertPoll writes a freshly created poll and its zero-counted options.
func (s *Store) InsertPoll(p *models.Poll) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO poll (id, question, is_active, expires_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Question, p.IsActive, p.ExpiresAt, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}

	for i, opt := range p.Options {
		_, err = tx.Exec(`
			INSERT INTO poll_option (poll_id, idx, text, count)
			VALUES ($1, $2, $3, $4)
		`, p.ID, i, opt.Text, opt.Count)
		if err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
	}

	return tx.Commit()
}

// AppendResponse records one accepted submission and the updated tally
// for the chosen option.
func (s *Store) AppendResponse(pollID string, resp models.Response, newCount int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO poll_response (poll_id, participant_id, display_name, option_index, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, pollID, resp.ParticipantID, resp.DisplayName, resp.OptionIndex, resp.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE poll_option SET count = $1 WHERE poll_id = $2 AND idx = $3
	`, newCount, pollID, resp.OptionIndex)
	if err != nil {
		return fmt.Errorf("failed to update option count: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE poll SET updated_at = $1 WHERE id = $2
	`, resp.SubmittedAt, pollID)
	if err != nil {
		return fmt.Errorf("failed to touch poll: %w", err)
	}

	return tx.Commit()
}

// FinalizePoll marks a poll closed and writes its final tallies.
func (s *Store) FinalizePoll(p *models.Poll) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE poll SET is_active = $1, updated_at = $2 WHERE id = $3
	`, false, time.Now(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize poll: %w", err)
	}

	for i, opt := range p.Options {
		_, err = tx.Exec(`
			UPDATE poll_option SET count = $1 WHERE poll_id = $2 AND idx = $3
		`, opt.Count, p.ID, i)
		if err != nil {
			return fmt.Errorf("failed to update option count: %w", err)
		}
	}

	return tx.Commit()
}

// ListRecent returns the most recent polls, newest first, with options
// but without individual responses.
func (s *Store) ListRecent(limit int) ([]models.Poll, error) {
	rows, err := s.db.Query(`
		SELECT id, question, is_active, expires_at, created_by, created_at, updated_at
		FROM poll
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}
	defer rows.Close()

	polls := []models.Poll{}
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.Question, &p.IsActive, &p.ExpiresAt,
			&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate polls: %w", err)
	}

	for i := range polls {
		options, err := s.loadOptions(polls[i].ID)
		if err != nil {
			return nil, err
		}
		polls[i].Options = options
	}

	return polls, nil
}

// GetPoll returns one poll by ID with options and responses.
// Returns ErrNotFound if no such poll exists.
func (s *Store) GetPoll(id string) (*models.Poll, error) {
	var p models.Poll
	err := s.db.QueryRow(`
		SELECT id, question, is_active, expires_at, created_by, created_at, updated_at
		FROM poll
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Question, &p.IsActive, &p.ExpiresAt,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query poll: %w", err)
	}

	if p.Options, err = s.loadOptions(p.ID); err != nil {
		return nil, err
	}
	if p.Responses, err = s.loadResponses(p.ID); err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *Store) loadOptions(pollID string) ([]models.PollOption, error) {
	rows, err := s.db.Query(`
		SELECT text, count FROM poll_option
		WHERE poll_id = $1
		ORDER BY idx
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	options := []models.PollOption{}
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.Text, &o.Count); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

func (s *Store) loadResponses(pollID string) ([]models.Response, error) {
	rows, err := s.db.Query(`
		SELECT participant_id, display_name, option_index, submitted_at
		FROM poll_response
		WHERE poll_id = $1
		ORDER BY submitted_at
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	responses := []models.Response{}
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.ParticipantID, &r.DisplayName, &r.OptionIndex, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
