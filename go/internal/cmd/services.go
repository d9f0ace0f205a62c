package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/songduel/go/internal/config"
	"github.com/mcdev12/songduel/go/internal/eventbus"
	"github.com/mcdev12/songduel/go/internal/gateway"
	"github.com/mcdev12/songduel/go/internal/match"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Gateway  *gateway.Service
	EventBus *eventbus.Publisher
}

func setupServices(cfg config.Config) (*Services, error) {
	// Event bus is optional
	var bus *eventbus.Publisher
	if cfg.EventBusEnabled() {
		busCfg := eventbus.DefaultJetStreamConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.StreamName = cfg.NATS.Stream
		busCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

		var err error
		bus, err = eventbus.NewPublisher(busCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus publisher: %w", err)
		}
	} else {
		log.Info().Msg("NATS_URL not set, event bus disabled")
	}

	// Gateway → registry → rooms, all on the real clock
	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.SweepInterval = cfg.SweepInterval
	gatewayCfg.ConnectionConfig.WriteTimeout = cfg.WebSocket.WriteTimeout
	gatewayCfg.ConnectionConfig.ReadTimeout = cfg.WebSocket.ReadTimeout
	gatewayCfg.ConnectionConfig.PingInterval = cfg.WebSocket.PingInterval
	gatewayCfg.ConnectionConfig.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	gatewayCfg.ConnectionConfig.CheckOrigin = originChecker(cfg.AllowedOrigins)

	var mirror match.EventSink
	if bus != nil {
		mirror = bus
	}

	return &Services{
		Gateway:  gateway.NewService(gatewayCfg, clockwork.NewRealClock(), mirror),
		EventBus: bus,
	}, nil
}

func (s *Services) Close() {
	if s.EventBus != nil {
		if err := s.EventBus.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event bus")
		}
	}
}
