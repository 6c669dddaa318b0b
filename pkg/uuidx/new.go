// Package uuidx generates time-ordered (version 7) UUIDs for run, turn
// and session identifiers.
package uuidx

import "github.com/google/uuid"

// New returns a new v7 UUID. It panics if the underlying source fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a new v7 UUID rendered as a string.
func NewString() string {
	return New().String()
}
