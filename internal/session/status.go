package session

import (
	"errors"
	"time"
)

// Status is the coarse activity state shown for a session.
type Status string

const (
	StatusWorking    Status = "working"
	StatusNeedsInput Status = "needs_input"
)

// UnknownCwd is recorded for sessions first seen without a working directory.
const UnknownCwd = "unknown"

var (
	// ErrSessionNotFound is returned when an id is not in the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoProcess is returned by Focus when the session never reported a pid.
	ErrNoProcess = errors.New("session has no known process")
	// ErrEngineStopped is returned when the engine loop is no longer running.
	ErrEngineStopped = errors.New("session engine stopped")
)

// Session is one tracked assistant session. NeedsInputSince is zero unless
// Status is StatusNeedsInput. PID is zero when unknown.
type Session struct {
	ID              string    `json:"id"`
	Cwd             string    `json:"cwd"`
	Status          Status    `json:"status"`
	LastEventTime   time.Time `json:"last_event_time"`
	NeedsInputSince time.Time `json:"needs_input_since,omitzero"`
	PID             int       `json:"pid,omitempty"`
}

// NeedsInput reports whether the session is blocked on the user.
func (s Session) NeedsInput() bool { return s.Status == StatusNeedsInput }
