// Package session tracks the identity and timing of a single scan run.
//
// A session is created when a scan starts and finished when its results
// are in. The ID ties together log lines, stored scan documents and API
// responses that belong to the same run.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one scan run.
type Session struct {
	ID        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`

	// Lockfiles lists the manifest paths this run scanned.
	Lockfiles []string `json:"lockfiles,omitempty"`
}

// New starts a session for the given lockfiles.
func New(lockfiles ...string) *Session {
	return &Session{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Lockfiles: lockfiles,
	}
}

// Finish records the end time. Calling it twice keeps the first end time.
func (s *Session) Finish() {
	if s.EndedAt.IsZero() {
		s.EndedAt = time.Now().UTC()
	}
}

// Duration returns the elapsed scan time. For an unfinished session it is
// the time since the start.
func (s *Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}
