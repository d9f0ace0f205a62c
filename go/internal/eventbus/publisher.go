package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/songduel/go/internal/match"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int
	DuplicateWindow time.Duration
	MaxPending      int // Max in-flight async publishes
	// StallWait bounds how long Emit waits for a free slot once MaxPending
	// publishes are in flight. Emit runs under the room lock, so keep it short.
	StallWait time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "SONGDUEL_EVENTS",
		SubjectPrefix:   "songduel.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		MaxPending:      1024,
		StallWait:       5 * time.Millisecond,
	}
}

// Envelope is the JSON body published for every room event
type Envelope struct {
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	SessionCode string          `json:"sessionCode"`
	PlayerID    string          `json:"playerId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// Publisher mirrors room events onto JetStream. It implements
// match.EventSink; publishing is asynchronous so Emit never waits on the
// server.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
	now    func() time.Time

	queued atomic.Uint64
	failed atomic.Uint64
}

func NewPublisher(cfg JetStreamConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := &Publisher{nc: nc, config: cfg, now: time.Now}

	js, err := jetstream.New(nc,
		jetstream.WithPublishAsyncMaxPending(cfg.MaxPending),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			p.failed.Add(1)
			log.Error().Err(err).Str("subject", msg.Subject).Msg("async publish failed")
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	p.js = js

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("stream", cfg.StreamName).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("event bus connected")
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	sc := streamConfig(p.config)

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

func streamConfig(cfg JetStreamConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Song duel room events",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}
}

// Emit publishes ev without waiting for the ack. Failures are logged.
func (p *Publisher) Emit(code string, ev match.Event) {
	msg, err := buildMsg(p.config.SubjectPrefix, code, ev, uuid.NewString(), p.now())
	if err != nil {
		p.failed.Add(1)
		log.Error().Err(err).Str("session_code", code).Str("event_type", string(ev.Type)).Msg("failed to build event message")
		return
	}

	if _, err := p.js.PublishMsgAsync(msg,
		jetstream.WithMsgID(msg.Header.Get("Event-ID")),
		jetstream.WithExpectStream(p.config.StreamName),
		jetstream.WithStallWait(p.config.StallWait),
	); err != nil {
		p.failed.Add(1)
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to publish to JetStream")
		return
	}
	p.queued.Add(1)

	log.Debug().
		Str("subject", msg.Subject).
		Str("event_id", msg.Header.Get("Event-ID")).
		Msg("queued for JetStream")
}

// Subject returns the subject a room event is published on
func Subject(prefix, code string, ev match.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, code, ev.Type)
}

func buildMsg(prefix, code string, ev match.Event, eventID string, at time.Time) (*nats.Msg, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Envelope{
		EventID:     eventID,
		EventType:   string(ev.Type),
		SessionCode: code,
		PlayerID:    ev.To,
		Timestamp:   at.UTC(),
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &nats.Msg{
		Subject: Subject(prefix, code, ev),
		Data:    data,
		Header: nats.Header{
			"Event-Type":   []string{string(ev.Type)},
			"Session-Code": []string{code},
			"Event-ID":     []string{eventID},
		},
	}, nil
}

// Stats returns how many events were queued for publishing and how many
// failed, either locally or when the server rejected them.
func (p *Publisher) Stats() (queued, failed uint64) {
	return p.queued.Load(), p.failed.Load()
}

// Pending returns the number of publishes still awaiting an ack
func (p *Publisher) Pending() int {
	if p.js == nil {
		return 0
	}
	return p.js.PublishAsyncPending()
}

// Connected reports whether the NATS connection is up
func (p *Publisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close waits briefly for pending publishes and closes the connection
func (p *Publisher) Close() error {
	if p.js != nil {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-time.After(5 * time.Second):
			log.Warn().Int("pending", p.js.PublishAsyncPending()).Msg("closing with unacknowledged publishes")
		}
	}
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		slices.Equal(a.Subjects, b.Subjects) &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
