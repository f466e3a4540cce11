package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Inbound and outbound envelope types shared between the session and gateway packages

// Type identifies an inbound or outbound message
type Type string

const (
	TypeJoin    Type = "join"
	TypeLeave   Type = "leave"
	TypeStart   Type = "start"
	TypePause   Type = "pause"
	TypeResume  Type = "resume"
	TypeSkip    Type = "skip"
	TypeReset   Type = "reset"
	TypePopcorn Type = "popcorn"
	TypeEcho    Type = "echo"

	TypeState Type = "state"
)

// MaxDuration is the longest per-speaker turn a client may request, in seconds
const MaxDuration = 24 * 60 * 60

var (
	ErrMissingType  = errors.New("message type is required")
	ErrMissingField = errors.New("required field missing")
	ErrInvalidField = errors.New("field out of range")
)

// Inbound is a decoded client message. Raw keeps the original bytes for echo.
type Inbound struct {
	Type     Type     `json:"type"`
	UserID   *string  `json:"userId,omitempty"`
	Duration *int     `json:"duration,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Decode parses a client message and checks the fields its type requires.
// Unknown types decode fine; the processor ignores them.
func Decode(data []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}

	switch msg.Type {
	case TypeJoin, TypeLeave:
		if msg.UserID == nil || *msg.UserID == "" {
			return nil, fmt.Errorf("%s: userId: %w", msg.Type, ErrMissingField)
		}
	case TypeStart:
		if msg.Duration != nil && *msg.Duration > MaxDuration {
			return nil, fmt.Errorf("%s: duration above %d: %w", msg.Type, MaxDuration, ErrInvalidField)
		}
	case TypePopcorn:
		if msg.X == nil || msg.Y == nil {
			return nil, fmt.Errorf("%s: x/y: %w", msg.Type, ErrMissingField)
		}
	}

	msg.Raw = append(json.RawMessage(nil), data...)
	return &msg, nil
}

// StateMessage carries the full observable view of a session
type StateMessage struct {
	Type  Type      `json:"type"`
	State StateView `json:"state"`
}

// StateView is the read-only snapshot sent to every connection
type StateView struct {
	Members       []string   `json:"members"`
	StartedAt     *time.Time `json:"startedAt"`
	Duration      *int       `json:"duration"`
	IsPaused      bool       `json:"isPaused"`
	PausedAt      *time.Time `json:"pausedAt"`
	CurrentOffset int64      `json:"currentOffset"`
}

// PopcornMessage is a transient pointer event
type PopcornMessage struct {
	Type Type    `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// EchoMessage returns the original inbound envelope to its sender
type EchoMessage struct {
	Type    Type            `json:"type"`
	Message json.RawMessage `json:"message"`
}
