package session

import (
	"slices"
	"time"
)

// Status is the turn clock state of a session
type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	default:
		return "not_started"
	}
}

// Session is the state of one standup instance.
// It is only read or written from the hub goroutine.
type Session struct {
	ID        string
	Members   []string
	StartedAt *time.Time
	Duration  *int // seconds per turn
	IsPaused  bool
	PausedAt  *time.Time
	CreatedAt time.Time

	conns *ConnectionSet
}

func newSession(id string, now time.Time, onEmpty func()) *Session {
	return &Session{
		ID:        id,
		Members:   []string{},
		CreatedAt: now,
		conns:     newConnectionSet(onEmpty),
	}
}

// Connections returns the live peers attached to the session
func (s *Session) Connections() *ConnectionSet {
	return s.conns
}

// Status derives the turn clock state from the timestamps
func (s *Session) Status() Status {
	switch {
	case s.StartedAt == nil:
		return StatusNotStarted
	case s.IsPaused:
		return StatusPaused
	default:
		return StatusRunning
	}
}

// HasMember reports whether userID is in the speaking order
func (s *Session) HasMember(userID string) bool {
	return slices.Contains(s.Members, userID)
}

func (s *Session) addMember(userID string) bool {
	if s.HasMember(userID) {
		return false
	}
	s.Members = append(s.Members, userID)
	return true
}

func (s *Session) removeMember(userID string) bool {
	i := slices.Index(s.Members, userID)
	if i < 0 {
		return false
	}
	s.Members = slices.Delete(s.Members, i, i+1)
	return true
}
