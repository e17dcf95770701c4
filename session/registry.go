// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"strings"
	"sync"

	"github.com/danielhkuo/classpulse/models"
)

// Registry tracks the connected participants for the single classroom
// session. It is the only component that mutates the roster.
type Registry struct {
	mu           sync.Mutex
	participants map[string]models.Participant
	order        []string // connection IDs in registration order
}

func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]models.Participant),
	}
}

// Register upserts the participant for a connection. A blank display
// name becomes "Guest"; a blank or unknown role becomes student.
func (r *Registry) Register(connID, displayName, role string) models.Participant {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "Guest"
	}
	if role != models.RoleTeacher && role != models.RoleStudent {
		role = models.RoleStudent
	}

	p := models.Participant{ConnID: connID, DisplayName: name, Role: role}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.participants[connID] = p

	return p
}

// Remove drops a participant. Idempotent.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[connID]; !exists {
		return
	}
	delete(r.participants, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the participant for a connection, if registered.
func (r *Registry) Get(connID string) (models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	return p, ok
}

// Students returns student participants in registration order.
func (r *Registry) Students() []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	students := []models.Participant{}
	for _, id := range r.order {
		if p := r.participants[id]; p.Role == models.RoleStudent {
			students = append(students, p)
		}
	}
	return students
}

// CountStudents returns the number of student connections.
func (r *Registry) CountStudents() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.participants {
		if p.Role == models.RoleStudent {
			n++
		}
	}
	return n
}

// FindByName returns the first participant registered with the given
// display name. Duplicate names resolve first-match-wins in
// registration order.
func (r *Registry) FindByName(displayName string) (models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		if p := r.participants[id]; p.DisplayName == displayName {
			return p, true
		}
	}
	return models.Participant{}, false
}
