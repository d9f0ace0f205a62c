package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// High-water mark of unacknowledged bus publishes before health degrades
const maxPendingPublishes = 512

type HealthStatus struct {
	Healthy          bool     `json:"healthy"`
	GatewayRunning   bool     `json:"gateway_running"`
	ActiveSessions   int      `json:"active_sessions"`
	Connections      int      `json:"connections"`
	EventBusEnabled  bool     `json:"event_bus_enabled"`
	NATSConnected    bool     `json:"nats_connected"`
	EventsQueued     uint64   `json:"events_queued"`
	PublishFailures  uint64   `json:"publish_failures"`
	PendingPublishes int      `json:"pending_publishes"`
	Errors           []string `json:"errors"`
}

type HealthChecker struct {
	services *Services
}

func NewHealthChecker(services *Services) *HealthChecker {
	return &HealthChecker{services: services}
}

func (h *HealthChecker) Check() HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	gw := h.services.Gateway
	status.GatewayRunning = gw.Running()
	status.ActiveSessions = gw.Registry().Len()
	status.Connections = gw.GetStats().TotalConnections
	if !status.GatewayRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "gateway not running")
	}

	// Check NATS connection
	if bus := h.services.EventBus; bus != nil {
		status.EventBusEnabled = true
		status.NATSConnected = bus.Connected()
		status.EventsQueued, status.PublishFailures = bus.Stats()
		status.PendingPublishes = bus.Pending()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		if status.PendingPublishes > maxPendingPublishes {
			status.Errors = append(status.Errors, "event bus publishes backing up")
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
