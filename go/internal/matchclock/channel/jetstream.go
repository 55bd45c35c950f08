package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Sink receives decoded clock records from a transport consumer. The broker is
// the usual sink.
type Sink interface {
	Publish(ctx context.Context, clock models.MatchClock) error
}

type JetStreamConfig struct {
	URL             string        `yaml:"url"`
	StreamName      string        `yaml:"stream_name"`
	SubjectPrefix   string        `yaml:"subject_prefix"`
	MaxReconnects   int           `yaml:"max_reconnects"`
	ReconnectWait   time.Duration `yaml:"reconnect_wait"`
	MaxAge          time.Duration `yaml:"max_age"`           // How long to keep messages
	Replicas        int           `yaml:"replicas"`          // Number of replicas for the stream
	DuplicateWindow time.Duration `yaml:"duplicate_window"` // Window for duplicate detection
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "MATCH_CLOCK",
		SubjectPrefix:   DefaultSubjectPrefix,
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

func connectNATS(cfg JetStreamConfig) (*nats.Conn, jetstream.JetStream, error) {
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
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return nc, js, nil
}

// streamConfig keeps only the latest record per match subject: late joiners
// fetch instead of replaying history.
func streamConfig(cfg JetStreamConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:              cfg.StreamName,
		Description:       "Match clock records relayed from the outbox",
		Subjects:          []string{cfg.SubjectPrefix + ".>"},
		Retention:         jetstream.LimitsPolicy,
		MaxAge:            cfg.MaxAge,
		MaxMsgsPerSubject: 1,
		Storage:           jetstream.FileStorage,
		Replicas:          cfg.Replicas,
		Duplicates:        cfg.DuplicateWindow,
	}
}

// JetStreamPublisher relays outbox messages onto per-match subjects.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, js, err := connectNATS(cfg)
	if err != nil {
		return nil, err
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return &JetStreamPublisher{nc: nc, js: js, config: cfg}, nil
}

// ensureStream creates the stream, or updates it when its limits drifted.
// Publisher and consumer both call it, so either may start first.
func ensureStream(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig) error {
	sc := streamConfig(cfg)

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			return fmt.Errorf("look up stream: %w", err)
		}
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

// Publish sends msg with the outbox id as the message id, so a relay retry
// inside the duplicate window is stored once.
func (p *JetStreamPublisher) Publish(ctx context.Context, msg Message) error {
	subject := Subject(p.config.SubjectPrefix, msg.MatchID)

	data, err := json.Marshal(NewEnvelope(msg))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{msg.EventType},
			"Match-ID":   []string{msg.MatchID.String()},
			"Event-ID":   []string{msg.ID.String()},
		},
	},
		jetstream.WithMsgID(msg.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", msg.ID.String()).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published to JetStream")

	return nil
}

func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgsPerSubject == b.MaxMsgsPerSubject &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}

// JetStreamConsumer follows every match subject with an ordered, ephemeral
// consumer and hands each record to a sink. Each gateway instance runs its own,
// so every instance sees every commit.
type JetStreamConsumer struct {
	mu      sync.Mutex
	nc      *nats.Conn
	js      jetstream.JetStream
	stopped bool
	sink    Sink
	config  JetStreamConfig
}

func NewJetStreamConsumer(cfg JetStreamConfig, sink Sink) (*JetStreamConsumer, error) {
	nc, js, err := connectNATS(cfg)
	if err != nil {
		return nil, err
	}
	return &JetStreamConsumer{nc: nc, js: js, sink: sink, config: cfg}, nil
}

// conn returns the live connection, redialing when the last one was closed
// for good.
func (c *JetStreamConsumer) conn() (*nats.Conn, jetstream.JetStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil, nil, nats.ErrConnectionClosed
	}
	if c.nc != nil && !c.nc.IsClosed() {
		return c.nc, c.js, nil
	}
	nc, js, err := connectNATS(c.config)
	if err != nil {
		return nil, nil, err
	}
	c.nc, c.js = nc, js
	return nc, js, nil
}

// Start consumes until ctx is done or the connection closes. The consumer
// starts from the last record of each subject so a restarted gateway is
// immediately current.
func (c *JetStreamConsumer) Start(ctx context.Context, ready func()) error {
	nc, js, err := c.conn()
	if err != nil {
		return err
	}

	if err := ensureStream(ctx, js, c.config); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}

	consumer, err := js.OrderedConsumer(ctx, c.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{c.config.SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	log.Info().
		Str("stream", c.config.StreamName).
		Str("filter", c.config.SubjectPrefix+".>").
		Msg("starting JetStream clock consumer")

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := c.processMessage(ctx, msg.Data()); err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject()).
				Msg("failed to process message")
		}
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		log.Warn().Err(err).Msg("JetStream consume error")
	}))
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()
	ready()

	closed := make(chan struct{})
	nc.SetClosedHandler(func(*nats.Conn) { close(closed) })
	if nc.IsClosed() {
		return nats.ErrConnectionClosed
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("JetStream clock consumer shutting down")
		return nil
	case <-closed:
		return fmt.Errorf("JetStream clock consumer: %w", nats.ErrConnectionClosed)
	}
}

func (c *JetStreamConsumer) processMessage(ctx context.Context, data []byte) error {
	env, clock, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}

	log.Debug().
		Str("event_id", env.EventID).
		Str("match_id", env.MatchID).
		Int64("version", clock.Version).
		Msg("received clock record")

	return c.sink.Publish(ctx, clock)
}

func (c *JetStreamConsumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
