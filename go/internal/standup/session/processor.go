package session

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/internal/standup/events"
)

// Notifier receives lifecycle events. Notify must not block.
type Notifier interface {
	Notify(event events.FeedEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(events.FeedEvent) {}

// Processor is the session state machine. It is not safe for concurrent use;
// the gateway hub calls it from a single goroutine so each event is atomic.
type Processor struct {
	registry *Registry
	clock    clockwork.Clock
	turns    TurnClock
	notifier Notifier
}

// NewProcessor wires the registry, clock and turn rules together.
// A nil notifier discards lifecycle events.
func NewProcessor(registry *Registry, clock clockwork.Clock, turns TurnClock, notifier Notifier) *Processor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Processor{
		registry: registry,
		clock:    clock,
		turns:    turns,
		notifier: notifier,
	}
}

// Attach registers a validated peer with the session for instanceID, creating
// the session if needed, and sends the peer the current view.
func (p *Processor) Attach(instanceID string, peer Peer) *Session {
	now := p.clock.Now()
	s, created := p.registry.GetOrCreate(instanceID, now)
	s.conns.Add(peer)

	if created {
		log.Info().Str("instance_id", instanceID).Msg("session created")
		p.notify(s, events.FeedSessionCreated, "")
	}

	log.Debug().
		Str("instance_id", instanceID).
		Str("connection_id", peer.ID()).
		Int("connections", s.conns.Len()).
		Msg("peer attached")

	p.unicastState(s, peer)
	return s
}

// Handle decodes one inbound message from peer and applies it. Malformed
// messages are dropped; failed preconditions are silent no-ops.
func (p *Processor) Handle(instanceID string, peer Peer, data []byte) {
	s, ok := p.registry.Get(instanceID)
	if !ok || !s.conns.Contains(peer) {
		return
	}

	msg, err := events.Decode(data)
	if err != nil {
		log.Warn().
			Err(err).
			Str("instance_id", instanceID).
			Str("connection_id", peer.ID()).
			Msg("dropping malformed message")
		return
	}

	log.Debug().
		Str("instance_id", instanceID).
		Str("connection_id", peer.ID()).
		Str("event_type", string(msg.Type)).
		Msg("message received")

	now := p.clock.Now()
	switch msg.Type {
	case events.TypeJoin:
		p.join(s, peer, *msg.UserID)
	case events.TypeLeave:
		p.leave(s, *msg.UserID)
	case events.TypeStart:
		if p.turns.Start(s, now, msg.Duration) {
			p.notify(s, events.FeedStarted, "")
			p.broadcastState(s)
		}
	case events.TypePause:
		if p.turns.Pause(s, now) {
			p.notify(s, events.FeedPaused, "")
			p.broadcastState(s)
		}
	case events.TypeResume:
		if p.turns.Resume(s, now) {
			p.notify(s, events.FeedResumed, "")
			p.broadcastState(s)
		}
	case events.TypeSkip:
		if p.turns.Skip(s, now) {
			p.notify(s, events.FeedSkipped, "")
			p.broadcastState(s)
		}
	case events.TypeReset:
		p.turns.Reset(s)
		p.notify(s, events.FeedReset, "")
		p.broadcastState(s)
	case events.TypePopcorn:
		p.broadcast(s, events.PopcornMessage{Type: events.TypePopcorn, X: *msg.X, Y: *msg.Y})
	case events.TypeEcho:
		p.unicast(s, peer, events.EchoMessage{Type: events.TypeEcho, Message: msg.Raw})
	default:
		log.Debug().
			Str("instance_id", instanceID).
			Str("event_type", string(msg.Type)).
			Msg("ignoring unknown message type")
	}
}

func (p *Processor) join(s *Session, peer Peer, userID string) {
	if tag := s.conns.TagOf(peer); tag != "" && tag != userID {
		log.Warn().
			Str("instance_id", s.ID).
			Str("connection_id", peer.ID()).
			Str("user_id", userID).
			Str("tagged_user_id", tag).
			Msg("ignoring join with a different participant")
		return
	}
	if s.HasMember(userID) {
		return
	}
	if err := s.conns.Tag(peer, userID); err != nil {
		return
	}
	s.addMember(userID)
	p.notify(s, events.FeedMemberJoined, userID)
	p.broadcastState(s)
}

func (p *Processor) leave(s *Session, userID string) {
	if s.Status() != StatusNotStarted || !s.removeMember(userID) {
		return
	}
	p.notify(s, events.FeedMemberLeft, userID)
	p.broadcastState(s)
}

// Detach removes peer from its session. Before the draw its participant is
// dropped from the order; afterwards it keeps its slot so indices stay stable.
func (p *Processor) Detach(instanceID string, peer Peer) {
	s, ok := p.registry.Get(instanceID)
	if !ok {
		return
	}

	userID, ok := s.conns.Remove(peer)
	if !ok {
		return
	}

	log.Debug().
		Str("instance_id", instanceID).
		Str("connection_id", peer.ID()).
		Str("user_id", userID).
		Int("connections", s.conns.Len()).
		Msg("peer detached")

	if userID != "" && s.Status() == StatusNotStarted && s.removeMember(userID) {
		p.notify(s, events.FeedMemberLeft, userID)
	}

	if s.conns.Len() == 0 {
		// the connection set already dropped the record from the registry
		log.Info().Str("instance_id", instanceID).Msg("session ended")
		p.notify(s, events.FeedSessionEnded, "")
		return
	}

	p.broadcastState(s)
}

// Snapshot returns the current view of instanceID
func (p *Processor) Snapshot(instanceID string) (events.StateView, bool) {
	s, ok := p.registry.Get(instanceID)
	if !ok {
		return events.StateView{}, false
	}
	return p.view(s), true
}

func (p *Processor) notify(s *Session, typ events.FeedType, userID string) {
	ev := events.FeedEvent{
		Type:       typ,
		InstanceID: s.ID,
		UserID:     userID,
		OccurredAt: p.clock.Now(),
	}
	if typ == events.FeedStarted {
		ev.Members = append([]string(nil), s.Members...)
		ev.StartedAt = s.StartedAt
		if s.Duration != nil {
			ev.Duration = *s.Duration
		}
	}
	p.notifier.Notify(ev)
}
