package core

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for contacts, campaigns, sessions
// and events.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

// Clock abstracts wall-clock time so schedulers and retry policies can be
// tested against a controlled clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
