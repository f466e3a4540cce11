package session

import (
	"math/rand/v2"
	"time"

	"github.com/mcdev12/standup/go/internal/standup/events"
)

const (
	// DefaultLeadIn is the countdown between start and the first turn
	DefaultLeadIn = 5 * time.Second
	// DefaultTurnDuration is the per-speaker duration in seconds
	DefaultTurnDuration = 30
	// MaxTurnDuration caps the per-speaker duration in seconds
	MaxTurnDuration = events.MaxDuration
)

// TurnClock applies timer transitions to a session. Every method is a pure
// function of the session state and the supplied instant.
type TurnClock struct {
	LeadIn          time.Duration
	DefaultDuration int
	// Shuffle permutes n elements uniformly; rand.Shuffle when nil
	Shuffle func(n int, swap func(i, j int))
}

// NewTurnClock returns a clock with the standard lead-in and turn length
func NewTurnClock() TurnClock {
	return TurnClock{
		LeadIn:          DefaultLeadIn,
		DefaultDuration: DefaultTurnDuration,
		Shuffle:         rand.Shuffle,
	}
}

// Start draws the speaking order and schedules the first turn after the lead-in.
// Missing or out of range durations fall back to the default.
func (c TurnClock) Start(s *Session, now time.Time, duration *int) bool {
	if s.StartedAt != nil || len(s.Members) == 0 {
		return false
	}

	seconds := c.DefaultDuration
	if validDuration(duration) {
		seconds = *duration
	}
	if !validDuration(&seconds) {
		seconds = DefaultTurnDuration
	}

	shuffle := c.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(s.Members), func(i, j int) {
		s.Members[i], s.Members[j] = s.Members[j], s.Members[i]
	})

	startedAt := now.Add(c.LeadIn)
	s.StartedAt = &startedAt
	s.Duration = &seconds
	s.IsPaused = false
	s.PausedAt = nil
	return true
}

// Pause freezes the clock at now
func (c TurnClock) Pause(s *Session, now time.Time) bool {
	if s.Status() != StatusRunning {
		return false
	}
	pausedAt := now
	s.IsPaused = true
	s.PausedAt = &pausedAt
	return true
}

// Resume shifts the start forward by the paused interval so elapsed time is unchanged
func (c TurnClock) Resume(s *Session, now time.Time) bool {
	if s.Status() != StatusPaused || s.PausedAt == nil {
		return false
	}
	paused := now.Sub(*s.PausedAt)
	startedAt := s.StartedAt.Add(paused)
	s.StartedAt = &startedAt
	s.IsPaused = false
	s.PausedAt = nil
	return true
}

// Skip moves to the start of the next speaker's turn. While paused the frozen
// instant is used. The lead-in counts as the first turn, so a skip during the
// countdown lands on the second speaker. It is a no-op on the last member.
func (c TurnClock) Skip(s *Session, now time.Time) bool {
	if s.StartedAt == nil || !validDuration(s.Duration) {
		return false
	}

	ref := s.reference(now)
	turn := time.Duration(*s.Duration) * time.Second
	index := floorDiv(max(ref.Sub(*s.StartedAt), 0), turn)
	if index+1 >= int64(len(s.Members)) {
		return false
	}

	startedAt := ref.Add(-time.Duration(index+1) * turn)
	s.StartedAt = &startedAt
	return true
}

// Reset returns the session to NotStarted, keeping members and connections
func (c TurnClock) Reset(s *Session) {
	s.StartedAt = nil
	s.Duration = nil
	s.IsPaused = false
	s.PausedAt = nil
}

// reference is the instant elapsed time is measured at
func (s *Session) reference(now time.Time) time.Time {
	if s.IsPaused && s.PausedAt != nil {
		return *s.PausedAt
	}
	return now
}

// Offset is the time since the logical start; negative during the lead-in
func (s *Session) Offset(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	return s.reference(now).Sub(*s.StartedAt)
}

// CurrentIndex returns the index of the active speaker, or -1 before start.
// The lead-in counts as the first member's turn. The result may be past the
// last member once every turn has elapsed.
func (s *Session) CurrentIndex(now time.Time) int {
	if s.StartedAt == nil || !validDuration(s.Duration) {
		return -1
	}
	offset := s.Offset(now)
	if offset < 0 {
		offset = 0
	}
	return int(offset / (time.Duration(*s.Duration) * time.Second))
}

// CurrentSpeaker returns the active member, if any
func (s *Session) CurrentSpeaker(now time.Time) (string, bool) {
	i := s.CurrentIndex(now)
	if i < 0 || i >= len(s.Members) {
		return "", false
	}
	return s.Members[i], true
}

// validDuration keeps turn arithmetic inside time.Duration
func validDuration(seconds *int) bool {
	return seconds != nil && *seconds > 0 && *seconds <= MaxTurnDuration
}

func floorDiv(a, b time.Duration) int64 {
	q := int64(a / b)
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
