package matchclock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MutateFunc changes a clock inside the per-match critical section and returns
// the match events to append alongside the commit. Returning an error aborts
// the commit and leaves the stored clock untouched.
type MutateFunc func(clock *models.MatchClock) ([]models.MatchEvent, error)

// ClockRepository defines what the app layer needs from storage.
// UpdateClock must serialize calls for the same match and bump Version on commit.
type ClockRepository interface {
	CreateClock(ctx context.Context, clock models.MatchClock) (*models.MatchClock, error)
	GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error)
	UpdateClock(ctx context.Context, matchID uuid.UUID, fn MutateFunc) (*models.MatchClock, error)
	ListEvents(ctx context.Context, matchID uuid.UUID) ([]models.MatchEvent, error)
}

// Publisher fans a committed clock out to the match topic. It must not block.
type Publisher interface {
	Publish(ctx context.Context, clock models.MatchClock) error
}

// App handles match clock business logic
type App struct {
	repo      ClockRepository
	publisher Publisher
	clock     clockwork.Clock
	validate  *validator.Validate
}

// Option configures an App.
type Option func(*App)

// WithClock overrides the wall clock, used by tests.
func WithClock(clock clockwork.Clock) Option {
	return func(a *App) {
		a.clock = clock
	}
}

// NewApp creates a new match clock App. publisher may be nil when nothing
// in-process needs to hear about commits.
func NewApp(repo ClockRepository, publisher Publisher, opts ...Option) *App {
	a := &App{
		repo:      repo,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ScheduleMatch creates the clock for a newly scheduled match.
func (a *App) ScheduleMatch(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	if matchID == uuid.Nil {
		return nil, fmt.Errorf("%w: match_id is required", ErrInvalidArgument)
	}

	clock, err := a.repo.CreateClock(ctx, models.MatchClock{
		MatchID:           matchID,
		Status:            models.MatchStatusScheduled,
		BaselineTimestamp: a.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule match %s: %w", matchID, err)
	}

	log.Info().
		Str("match_id", matchID.String()).
		Msg("match clock scheduled")

	a.publish(ctx, *clock)
	return clock, nil
}

// GetClock returns the current stored clock. Reads never move the baseline.
func (a *App) GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	clock, err := a.repo.GetClock(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match clock: %w", err)
	}
	return clock, nil
}

// ListEvents returns the events the clock appended for a match.
func (a *App) ListEvents(ctx context.Context, matchID uuid.UUID) ([]models.MatchEvent, error) {
	if _, err := a.repo.GetClock(ctx, matchID); err != nil {
		return nil, fmt.Errorf("failed to get match clock: %w", err)
	}
	events, err := a.repo.ListEvents(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list match events: %w", err)
	}
	return events, nil
}

// ApplyAction validates and commits a timer action, then publishes the new clock.
func (a *App) ApplyAction(ctx context.Context, matchID uuid.UUID, req ActionRequest) (*models.MatchClock, error) {
	if err := a.validateActionRequest(matchID, req); err != nil {
		return nil, err
	}

	var previous models.MatchClock
	clock, err := a.repo.UpdateClock(ctx, matchID, func(c *models.MatchClock) ([]models.MatchEvent, error) {
		previous = *c
		return applyTransition(c, req, a.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s to match %s: %w", req.Action, matchID, err)
	}

	log.Info().
		Str("match_id", matchID.String()).
		Str("action", string(req.Action)).
		Str("status", string(clock.Status)).
		Int("current_minute", clock.CurrentMinute).
		Int("extra_time", clock.ExtraTime).
		Bool("timer_active", clock.IsTimerActive).
		Bool("half_time", clock.HalfTimeBreak).
		Int64("version", clock.Version).
		Int("frozen_minutes", clock.CurrentMinute-previous.CurrentMinute).
		Msg("timer action applied")

	a.publish(ctx, *clock)
	return clock, nil
}

// SetStatus postpones or cancels a match.
func (a *App) SetStatus(ctx context.Context, matchID uuid.UUID, req StatusRequest) (*models.MatchClock, error) {
	if matchID == uuid.Nil {
		return nil, fmt.Errorf("%w: match_id is required", ErrInvalidArgument)
	}
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err.Error())
	}

	clock, err := a.repo.UpdateClock(ctx, matchID, func(c *models.MatchClock) ([]models.MatchEvent, error) {
		return nil, applyStatusChange(c, req.Status, a.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set match %s to %s: %w", matchID, req.Status, err)
	}

	log.Info().
		Str("match_id", matchID.String()).
		Str("status", string(clock.Status)).
		Int64("version", clock.Version).
		Msg("match status updated")

	a.publish(ctx, *clock)
	return clock, nil
}

// publish runs outside the critical section. Failures never undo a commit since
// every subscriber recovers through a fresh fetch.
func (a *App) publish(ctx context.Context, clock models.MatchClock) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, clock); err != nil {
		log.Error().
			Err(fmt.Errorf("%w: %w", ErrChannelDelivery, err)).
			Str("match_id", clock.MatchID.String()).
			Int64("version", clock.Version).
			Msg("failed to publish match clock")
	}
}

// now is truncated to the storage precision so a memory and a postgres store
// produce identical baselines.
func (a *App) now() time.Time {
	return a.clock.Now().UTC().Truncate(time.Microsecond)
}

// validateActionRequest validates an action request before any storage access
func (a *App) validateActionRequest(matchID uuid.UUID, req ActionRequest) error {
	if matchID == uuid.Nil {
		return fmt.Errorf("%w: match_id is required", ErrInvalidArgument)
	}
	if err := a.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, err.Error())
	}
	if req.Action == ActionAddExtraTime && req.ExtraMinutes == nil {
		return fmt.Errorf("%w: extraMinutes is required for %s", ErrInvalidArgument, req.Action)
	}
	if req.Action != ActionAddExtraTime && req.ExtraMinutes != nil {
		return fmt.Errorf("%w: extraMinutes is only accepted for %s", ErrInvalidArgument, ActionAddExtraTime)
	}
	return nil
}
