package gateway

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/songduel/go/internal/match"
	"github.com/mcdev12/songduel/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Service is the match gateway: WebSocket connections, the session registry
// and the sweep loop that reaps abandoned rooms.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	registry          *session.Registry
	config            Config
	running           atomic.Bool
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	SweepInterval    time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		SweepInterval:    time.Minute,
	}
}

// NewService creates the gateway. Room events go to the connected players
// and, when mirror is non-nil, to mirror as well.
func NewService(config Config, clock clockwork.Clock, mirror match.EventSink) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	var sink match.EventSink = connectionManager
	if mirror != nil {
		sink = match.MultiSink{connectionManager, mirror}
	}
	registry := session.NewRegistry(clock, sink)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, registry),
		registry:          registry,
		config:            config,
	}
}

// Start runs the broadcast loop and the sweeper until ctx is cancelled, then
// closes every connection and room.
func (s *Service) Start(ctx context.Context) {
	log.Info().Dur("sweep_interval", s.config.SweepInterval).Msg("starting match gateway service")

	go s.connectionManager.Start(ctx)
	go s.registry.Run(ctx, s.config.SweepInterval)
	s.running.Store(true)

	<-ctx.Done()
	s.Stop()
}

// Stop closes all connections and releases every room's timer
func (s *Service) Stop() {
	s.running.Store(false)
	s.connectionManager.CloseAll()
	s.registry.Shutdown()
	log.Info().Msg("match gateway service stopped")
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("match gateway routes registered")
}

// Running reports whether Start is active
func (s *Service) Running() bool {
	return s.running.Load()
}

// Registry exposes the session registry
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
