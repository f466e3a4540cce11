package events

import "time"

// FeedType names a session lifecycle event published to the feed
type FeedType string

const (
	FeedSessionCreated FeedType = "session.created"
	FeedSessionEnded   FeedType = "session.ended"
	FeedMemberJoined   FeedType = "member.joined"
	FeedMemberLeft     FeedType = "member.left"
	FeedStarted        FeedType = "standup.started"
	FeedPaused         FeedType = "standup.paused"
	FeedResumed        FeedType = "standup.resumed"
	FeedSkipped        FeedType = "standup.skipped"
	FeedReset          FeedType = "standup.reset"
)

// FeedEvent is a lifecycle notification for external consumers
type FeedEvent struct {
	Type       FeedType   `json:"type"`
	InstanceID string     `json:"instance_id"`
	UserID     string     `json:"user_id,omitempty"`
	Members    []string   `json:"members,omitempty"`
	Duration   int        `json:"duration,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
