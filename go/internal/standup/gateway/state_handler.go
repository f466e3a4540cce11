package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/internal/standup/events"
)

// SessionStateResponse is the read-only view of one session
type SessionStateResponse struct {
	InstanceID string           `json:"instance_id"`
	State      events.StateView `json:"state"`
}

// StateHandler handles HTTP requests for session state
type StateHandler struct {
	hub *Hub
}

// NewStateHandler creates a new state handler
func NewStateHandler(hub *Hub) *StateHandler {
	return &StateHandler{
		hub: hub,
	}
}

// HandleGetSessionState handles GET /api/sessions/{instanceId}/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceId")
	if instanceID == "" {
		http.Error(w, "Instance ID is required", http.StatusBadRequest)
		return
	}

	view, ok, err := h.hub.Snapshot(r.Context(), instanceID)
	if err != nil {
		log.Error().Err(err).Str("instance_id", instanceID).Msg("failed to get session state")
		http.Error(w, "Failed to get session state", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SessionStateResponse{InstanceID: instanceID, State: view}); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/{instanceId}/state", h.HandleGetSessionState)
}
