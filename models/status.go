package models

import (
	"fmt"
	"strings"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusActive    ProjectStatus = "ACTIVE"
	StatusSuspended ProjectStatus = "SUSPENDED"
	StatusDeleted   ProjectStatus = "DELETED"
)

// Statuses lists every status value.
var Statuses = []ProjectStatus{StatusActive, StatusSuspended, StatusDeleted}

var transitions = map[ProjectStatus][]ProjectStatus{
	StatusActive:    {StatusSuspended, StatusDeleted},
	StatusSuspended: {StatusActive, StatusDeleted},
	StatusDeleted:   {},
}

// ParseProjectStatus accepts any casing and surrounding whitespace.
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	normalized := ProjectStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !normalized.Valid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return normalized, nil
}

// Valid reports whether s is a member of the closed status set.
func (s ProjectStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s ProjectStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether s may move to next.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StatusNames returns the status values joined for messages.
func StatusNames() string {
	names := make([]string, len(Statuses))
	for i, status := range Statuses {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}
