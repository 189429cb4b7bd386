package session

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	s := New("yarn.lock", "poetry.lock")

	if s.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ID not generated")
	}
	if s.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
	if len(s.Lockfiles) != 2 {
		t.Errorf("lockfiles = %v", s.Lockfiles)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	s := New()
	s.Finish()
	first := s.EndedAt

	time.Sleep(time.Millisecond)
	s.Finish()

	if !s.EndedAt.Equal(first) {
		t.Error("second Finish moved the end time")
	}
}

func TestDuration(t *testing.T) {
	s := New()
	s.Finish()
	if s.Duration() < 0 {
		t.Errorf("duration = %v", s.Duration())
	}

	unfinished := New()
	if unfinished.Duration() < 0 {
		t.Errorf("running duration = %v", unfinished.Duration())
	}
}
