package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/internal/standup/auth"
	"github.com/mcdev12/standup/go/internal/standup/events"
	"github.com/mcdev12/standup/go/internal/standup/session"
)

// Service is the standup gateway: it owns the session hub and serves the
// WebSocket and state routes.
type Service struct {
	hub          *Hub
	wsHandler    *WebSocketHandler
	stateHandler *StateHandler
}

// Config holds configuration for the standup gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	LeadIn           time.Duration
	DefaultDuration  int
	HubBufferSize    int
}

// DefaultConfig returns default configuration for the standup gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		LeadIn:           session.DefaultLeadIn,
		DefaultDuration:  session.DefaultTurnDuration,
		HubBufferSize:    1000,
	}
}

// NewService creates a new standup gateway service. A negative lead-in or a
// non-positive default duration keeps the standard value. A nil clock uses
// real time and a nil notifier discards lifecycle events.
func NewService(config Config, validator auth.InstanceValidator, notifier session.Notifier, clock clockwork.Clock) *Service {
	turns := session.NewTurnClock()
	if config.LeadIn >= 0 {
		turns.LeadIn = config.LeadIn
	}
	if config.DefaultDuration > 0 {
		turns.DefaultDuration = config.DefaultDuration
	}

	registry := session.NewRegistry()
	processor := session.NewProcessor(registry, clock, turns, notifier)
	hub := NewHub(processor, registry, config.HubBufferSize)

	return &Service{
		hub:          hub,
		wsHandler:    NewWebSocketHandler(hub, validator, config.ConnectionConfig),
		stateHandler: NewStateHandler(hub),
	}
}

// Start runs the session hub until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting standup gateway service")
	s.hub.Run(ctx)
	log.Info().Msg("standup gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("standup gateway routes registered")
}

// Snapshot returns the current view of a session
func (s *Service) Snapshot(ctx context.Context, instanceID string) (events.StateView, bool, error) {
	return s.hub.Snapshot(ctx, instanceID)
}

// Stats returns statistics about the gateway service
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.hub.Stats(ctx)
}
