package gateway

import (
	"context"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/rs/zerolog/log"
)

// Consumer feeds records from a transport into the local broker. Start blocks
// until ctx is done or the transport fails, and calls ready once it is attached
// so records published from then on will be delivered.
type Consumer interface {
	Start(ctx context.Context, ready func()) error
	Stop() error
}

// Service is the match gateway: REST endpoints for operators and fresh fetches,
// and WebSocket fan-out to viewers.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	clockHandler      *ClockHandler
	consumer          Consumer
	config            Config
	clock             clockwork.Clock
}

// Config holds configuration for the match gateway service
type Config struct {
	ConnectionConfig ConnectionConfig

	// Consumer restarts back off from ConsumerBackoff up to ConsumerMaxBackoff.
	ConsumerBackoff    time.Duration
	ConsumerMaxBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig:   DefaultConnectionConfig(),
		ConsumerBackoff:    500 * time.Millisecond,
		ConsumerMaxBackoff: 30 * time.Second,
	}
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the clock that paces consumer restarts.
func WithServiceClock(clock clockwork.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates the gateway. consumer may be nil when commits reach the
// broker in-process.
func NewService(config Config, app matchclock.MatchClockApp, broker Broker, consumer Consumer, opts ...ServiceOption) *Service {
	cm := NewConnectionManager(config.ConnectionConfig, broker, app)
	s := &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, app),
		clockHandler:      NewClockHandler(app),
		consumer:          consumer,
		config:            config,
		clock:             clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the transport consumer, if any, until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting match gateway service")

	done := make(chan struct{})
	if s.consumer != nil {
		go func() {
			defer close(done)
			s.superviseConsumer(ctx)
		}()
	} else {
		close(done)
	}

	<-ctx.Done()
	log.Info().Msg("match gateway service shutting down")
	err := s.Stop()
	<-done
	return err
}

// superviseConsumer restarts the consumer with capped exponential backoff
// until ctx is done. Every attach after the first resyncs connected viewers,
// since commits made while detached were never forwarded.
func (s *Service) superviseConsumer(ctx context.Context) {
	backoff := s.config.ConsumerBackoff
	attached := false
	for {
		var ready bool
		err := s.consumer.Start(ctx, func() {
			ready = true
			if attached {
				s.connectionManager.ResyncAll(ctx)
			}
			attached = true
		})
		if ctx.Err() != nil {
			return
		}
		if ready {
			backoff = s.config.ConsumerBackoff
		}

		log.Error().
			Err(err).
			Dur("retry_in", backoff).
			Msg("clock consumer stopped, restarting")

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(backoff):
		}
		backoff = min(backoff*2, s.config.ConsumerMaxBackoff)
	}
}

func (s *Service) Stop() error {
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop clock consumer")
		}
	}
	s.connectionManager.CloseAll()
	log.Info().Msg("match gateway service stopped")
	return nil
}

func (s *Service) RegisterRoutes(r *mux.Router) {
	s.clockHandler.RegisterRoutes(r)
	s.wsHandler.RegisterRoutes(r)
	log.Info().Msg("match gateway routes registered")
}

func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
