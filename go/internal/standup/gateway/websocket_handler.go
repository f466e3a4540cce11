package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/internal/standup/auth"
)

// ErrInvalidInstance is returned when the activity instance fails validation
var ErrInvalidInstance = errors.New("invalid instance")

// WebSocketHandler handles WebSocket upgrade requests for standup sessions
type WebSocketHandler struct {
	hub       *Hub
	validator auth.InstanceValidator
	config    ConnectionConfig
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub, validator auth.InstanceValidator, config ConnectionConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
		config:    config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}
}

// HandleSessionConnection handles GET /api/ws/{instanceId}
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceId")
	if instanceID == "" {
		http.Error(w, "instance id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an error response
		log.Error().
			Err(err).
			Str("instance_id", instanceID).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	// the socket is neither attached nor read from until the instance checks out
	if err := h.validate(r.Context(), instanceID); err != nil {
		log.Warn().
			Err(err).
			Str("instance_id", instanceID).
			Msg("rejecting WebSocket connection")
		deadline := time.Now().Add(h.config.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrInvalidInstance.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Close()
		return
	}

	c := newConnection(conn, instanceID, h.hub, h.config)
	go c.writePump()

	if err := h.hub.Attach(r.Context(), c); err != nil {
		log.Error().
			Err(err).
			Str("instance_id", instanceID).
			Str("connection_id", c.ID()).
			Msg("failed to attach connection")
		// the attach may still be queued, so queue its removal behind it
		h.hub.Detach(c)
		conn.Close()
		return
	}

	log.Info().
		Str("instance_id", instanceID).
		Str("connection_id", c.ID()).
		Msg("WebSocket connection attached")

	go c.readPump()
}

func (h *WebSocketHandler) validate(ctx context.Context, instanceID string) error {
	timeout := h.config.ValidateTimeout
	if timeout <= 0 {
		timeout = DefaultConnectionConfig().ValidateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	valid, err := h.validator.ValidateInstance(ctx, instanceID)
	if err != nil {
		return errors.Join(ErrInvalidInstance, err)
	}
	if !valid {
		return ErrInvalidInstance
	}
	return nil
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.hub.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to collect connection stats")
		http.Error(w, "Failed to get connection stats", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ws/{instanceId}", h.HandleSessionConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
