package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/rs/zerolog/log"
)

// Store is what the relay needs from the outbox table.
type Store interface {
	FetchByID(ctx context.Context, id uuid.UUID) (channel.Message, error)
	FetchUnsent(ctx context.Context, limit int32) ([]channel.Message, error)
	HasOlderUnsent(ctx context.Context, msg channel.Message) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	CountPending(ctx context.Context) (int64, error)
}

// Publisher is a transport the relay forwards outbox rows to.
type Publisher interface {
	Publish(ctx context.Context, msg channel.Message) error
}

type RelayConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	BatchSize  int32 // Max events to fetch per fallback pass
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		MaxRetries: 5,
		RetryDelay: 200 * time.Millisecond,
		BatchSize:  100,
	}
}

// Relay moves committed outbox rows to a transport. A row is marked sent only
// after the transport accepted it, so delivery is at-least-once.
type Relay struct {
	store     Store
	publisher Publisher
	cfg       RelayConfig

	mu            sync.Mutex
	processed     uint64
	lastEventTime time.Time
}

func NewRelay(store Store, publisher Publisher, cfg RelayConfig) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
	}
}

// HandleNotification relays the row whose id arrived as a NOTIFY payload. A row
// queued behind an unsent row of the same match is left to ProcessUnsent, which
// relays each match in commit order.
func (r *Relay) HandleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	msg, err := r.store.FetchByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAlreadySent) {
			log.Debug().Str("event_id", id.String()).Msg("outbox event already relayed")
			return nil
		}
		return err
	}

	older, err := r.store.HasOlderUnsent(ctx, msg)
	if err != nil {
		return err
	}
	if older {
		log.Debug().
			Str("event_id", id.String()).
			Str("match_id", msg.MatchID.String()).
			Msg("older outbox event pending for match, deferring to sweep")
		return nil
	}

	return r.relay(ctx, msg)
}

// ProcessUnsent relays rows a notification never covered, oldest first. Once a
// match fails, its later rows wait for the next pass so they are not published
// ahead of it.
func (r *Relay) ProcessUnsent(ctx context.Context) error {
	unsent, err := r.store.FetchUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	blocked := make(map[uuid.UUID]bool)
	for _, msg := range unsent {
		if blocked[msg.MatchID] {
			continue
		}
		if err := r.relay(ctx, msg); err != nil {
			blocked[msg.MatchID] = true
			log.Error().
				Err(err).
				Str("event_id", msg.ID.String()).
				Str("match_id", msg.MatchID.String()).
				Msg("failed to relay outbox event")
		}
	}

	if len(unsent) > 0 {
		log.Info().
			Int("fetched", len(unsent)).
			Int("blocked_matches", len(blocked)).
			Msg("processed unsent outbox events")
	}
	return nil
}

func (r *Relay) relay(ctx context.Context, msg channel.Message) error {
	if err := r.publishWithRetry(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := r.store.MarkSent(ctx, msg.ID); err != nil {
		return err
	}

	r.mu.Lock()
	r.processed++
	r.lastEventTime = time.Now()
	r.mu.Unlock()

	log.Info().
		Str("event_id", msg.ID.String()).
		Str("match_id", msg.MatchID.String()).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry attempts to publish with a linearly growing delay.
func (r *Relay) publishWithRetry(ctx context.Context, msg channel.Message) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, msg); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", msg.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", msg.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

// Stats returns the number of relayed rows and when the last one went out.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastEventTime
}
