package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ListenerConfig controls the LISTEN connection and the fallback sweep.
type ListenerConfig struct {
	DatabaseURL          string
	NotifyChannel        string
	FallbackInterval     time.Duration // sweep for rows whose NOTIFY was missed
	PingInterval         time.Duration
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:        "match_clock_outbox",
		FallbackInterval:     30 * time.Second,
		PingInterval:         90 * time.Second,
		MinReconnectInterval: 5 * time.Second,
		MaxReconnectInterval: time.Minute,
	}
}

// Listener drives the relay from outbox NOTIFY payloads. Rows committed while
// the connection was down are picked up by a sweep on reconnect and on every
// fallback tick.
type Listener struct {
	pq    *pq.Listener
	relay *Relay
	cfg   ListenerConfig
	clock clockwork.Clock

	mu        sync.Mutex
	running   bool
	connected bool
}

func NewListener(relay *Relay, cfg ListenerConfig) (*Listener, error) {
	l := &Listener{
		relay:     relay,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		connected: true,
	}
	l.pq = pq.NewListener(cfg.DatabaseURL, cfg.MinReconnectInterval, cfg.MaxReconnectInterval, l.onEvent)

	if err := l.pq.Listen(cfg.NotifyChannel); err != nil {
		l.pq.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.NotifyChannel, err)
	}
	return l, nil
}

func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		l.setConnected(false)
		log.Warn().Err(err).Str("channel", l.cfg.NotifyChannel).Msg("outbox listener lost its connection")
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		l.setConnected(true)
		log.Info().Str("channel", l.cfg.NotifyChannel).Msg("outbox listener connected")
	}
}

// Start relays until ctx is done, then closes the LISTEN connection.
func (l *Listener) Start(ctx context.Context) error {
	l.setRunning(true)
	defer l.setRunning(false)

	sweep := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer sweep.Stop()
	ping := l.clock.NewTicker(l.cfg.PingInterval)
	defer ping.Stop()

	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("outbox listener started")

	l.catchUp(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox listener stopping")
			return l.Stop()

		case n := <-l.pq.Notify:
			// pq sends nil after a reconnect; anything sent meanwhile was lost.
			if n == nil {
				l.catchUp(ctx, "reconnect")
				continue
			}
			if err := l.relay.HandleNotification(ctx, n.Extra); err != nil {
				log.Error().Err(err).Str("payload", n.Extra).Msg("failed to relay notified outbox row")
			}

		case <-sweep.Chan():
			l.catchUp(ctx, "fallback")

		case <-ping.Chan():
			if err := l.pq.Ping(); err != nil {
				log.Warn().Err(err).Msg("outbox listener ping failed")
			}
		}
	}
}

func (l *Listener) catchUp(ctx context.Context, reason string) {
	if err := l.relay.ProcessUnsent(ctx); err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("outbox sweep failed")
	}
}

func (l *Listener) Stop() error {
	return l.pq.Close()
}

// Active reports whether Start is running on a live connection.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running && l.connected
}

func (l *Listener) setRunning(running bool) {
	l.mu.Lock()
	l.running = running
	l.mu.Unlock()
}

func (l *Listener) setConnected(connected bool) {
	l.mu.Lock()
	l.connected = connected
	l.mu.Unlock()
}
