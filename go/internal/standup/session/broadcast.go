package session

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/internal/standup/events"
)

// view builds the observable snapshot of s at the current instant
func (p *Processor) view(s *Session) events.StateView {
	now := p.clock.Now()

	v := events.StateView{
		Members:       append([]string{}, s.Members...),
		IsPaused:      s.IsPaused,
		CurrentOffset: s.Offset(now).Milliseconds(),
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		v.StartedAt = &t
	}
	if s.Duration != nil {
		d := *s.Duration
		v.Duration = &d
	}
	if s.PausedAt != nil {
		t := *s.PausedAt
		v.PausedAt = &t
	}
	return v
}

func (p *Processor) stateMessage(s *Session) events.StateMessage {
	return events.StateMessage{Type: events.TypeState, State: p.view(s)}
}

func (p *Processor) broadcastState(s *Session) {
	p.broadcast(s, p.stateMessage(s))
}

func (p *Processor) unicastState(s *Session, peer Peer) {
	p.unicast(s, peer, p.stateMessage(s))
}

// broadcast marshals msg once and sends the same bytes to every peer.
// A failed send is logged and never stops delivery to the rest.
func (p *Processor) broadcast(s *Session, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("instance_id", s.ID).Msg("failed to marshal broadcast")
		return
	}

	s.conns.ForEach(func(peer Peer) {
		deliver(s, peer, data)
	})

	log.Debug().
		Str("instance_id", s.ID).
		Int("connections", s.conns.Len()).
		Msg("broadcast sent")
}

func (p *Processor) unicast(s *Session, peer Peer, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("instance_id", s.ID).Msg("failed to marshal message")
		return
	}
	deliver(s, peer, data)
}

func deliver(s *Session, peer Peer, data []byte) {
	if err := peer.Send(data); err != nil {
		log.Warn().
			Err(err).
			Str("instance_id", s.ID).
			Str("connection_id", peer.ID()).
			Msg("failed to deliver message")
	}
}
