package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/mcdev12/songduel/go/internal/session"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves the match WebSocket and its companion endpoints
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	dispatcher        *Dispatcher
	registry          *session.Registry
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, registry *session.Registry) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		dispatcher:        NewDispatcher(registry, cm),
		registry:          registry,
	}
}

// HandleMatchConnection upgrades the request. Players create or join a
// session over the socket itself.
func (h *WebSocketHandler) HandleMatchConnection(w http.ResponseWriter, r *http.Request) {
	if _, err := h.connectionManager.UpgradeConnection(w, r, h.dispatcher); err != nil {
		// The upgrader has already written an HTTP error
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
	}
}

type statsResponse struct {
	ConnectionStats
	ActiveSessions int `json:"active_sessions"`
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := statsResponse{
		ConnectionStats: h.connectionManager.GetConnectionStats(),
		ActiveSessions:  h.registry.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/match", h.HandleMatchConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
