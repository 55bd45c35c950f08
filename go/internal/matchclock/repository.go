package matchclock

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/matchday/go/internal/matchclock/db"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// OutboxEventClockUpdated is the outbox event type written with every commit.
const OutboxEventClockUpdated = "ClockUpdated"

// Postgres SQLSTATEs that mean the transaction lost a lock race and rolled back.
const (
	pqLockNotAvailable     = "55P03"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqQueryCanceled        = "57014"
)

// Repository stores match clocks in Postgres. Every update is a single
// transaction holding the row lock, writing the clock, its events and the
// outbox row together.
type Repository struct {
	db          *sql.DB
	queries     *db.Queries
	lockTimeout time.Duration
}

func NewRepository(sqlDB *sql.DB, lockTimeout time.Duration) *Repository {
	return &Repository{
		db:          sqlDB,
		queries:     db.New(sqlDB),
		lockTimeout: lockTimeout,
	}
}

func (r *Repository) CreateClock(ctx context.Context, clock models.MatchClock) (*models.MatchClock, error) {
	var created *models.MatchClock
	err := sqlutil.Run(ctx, r.db, nil, txQueries, func(q *db.Queries) error {
		row, err := q.CreateMatchClock(ctx, db.CreateMatchClockParams{
			MatchID:           clock.MatchID,
			Status:            db.MatchStatus(clock.Status),
			BaselineTimestamp: clock.BaselineTimestamp,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: match %s already has a clock", ErrInvalidTransition, clock.MatchID)
			}
			return fmt.Errorf("failed to create match clock: %w", err)
		}
		created = dbClockToModel(row)
		return r.insertOutbox(ctx, q, created)
	})
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return created, nil
}

func (r *Repository) GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	row, err := r.queries.GetMatchClock(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
		}
		return nil, classifyStorageError(fmt.Errorf("failed to get match clock: %w", err))
	}
	return dbClockToModel(row), nil
}

// UpdateClock locks the clock row for the length of one read-modify-write.
func (r *Repository) UpdateClock(ctx context.Context, matchID uuid.UUID, fn MutateFunc) (*models.MatchClock, error) {
	var updated *models.MatchClock
	err := sqlutil.Run(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, txQueries, func(q *db.Queries) error {
		if r.lockTimeout > 0 {
			if err := q.SetLockTimeout(ctx, fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())); err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}

		row, err := q.GetMatchClockForUpdate(ctx, matchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, matchID)
			}
			return fmt.Errorf("failed to lock match clock: %w", err)
		}

		clock := dbClockToModel(row)
		events, err := fn(clock)
		if err != nil {
			return err
		}

		saved, err := q.UpdateMatchClock(ctx, db.UpdateMatchClockParams{
			MatchID:           matchID,
			Status:            db.MatchStatus(clock.Status),
			CurrentMinute:     int32(clock.CurrentMinute),
			ExtraTime:         int32(clock.ExtraTime),
			IsTimerActive:     clock.IsTimerActive,
			HalfTimeBreak:     clock.HalfTimeBreak,
			BaselineTimestamp: clock.BaselineTimestamp,
		})
		if err != nil {
			return fmt.Errorf("failed to update match clock: %w", err)
		}

		for _, event := range events {
			if err := q.InsertMatchEvent(ctx, db.InsertMatchEventParams{
				ID:          event.ID,
				MatchID:     matchID,
				Minute:      int32(event.Minute),
				EventType:   string(event.Type),
				Description: event.Description,
				Metadata:    pqtype.NullRawMessage{RawMessage: event.Metadata, Valid: len(event.Metadata) > 0},
				CreatedAt:   event.CreatedAt,
			}); err != nil {
				return fmt.Errorf("failed to append %s event: %w", event.Type, err)
			}
		}

		updated = dbClockToModel(saved)
		return r.insertOutbox(ctx, q, updated)
	})
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return updated, nil
}

func (r *Repository) ListEvents(ctx context.Context, matchID uuid.UUID) ([]models.MatchEvent, error) {
	rows, err := r.queries.ListMatchEvents(ctx, matchID)
	if err != nil {
		return nil, classifyStorageError(fmt.Errorf("failed to list match events: %w", err))
	}

	events := make([]models.MatchEvent, 0, len(rows))
	for _, row := range rows {
		event := models.MatchEvent{
			ID:          row.ID,
			MatchID:     row.MatchID,
			Minute:      int(row.Minute),
			Type:        models.MatchEventType(row.EventType),
			Description: row.Description,
			CreatedAt:   row.CreatedAt,
		}
		if row.Metadata.Valid {
			event.Metadata = row.Metadata.RawMessage
		}
		events = append(events, event)
	}
	return events, nil
}

// insertOutbox writes the committed clock to the outbox in the same transaction.
// The insert trigger issues the NOTIFY the relay listens for.
func (r *Repository) insertOutbox(ctx context.Context, q *db.Queries, clock *models.MatchClock) error {
	payload, err := json.Marshal(clock)
	if err != nil {
		return fmt.Errorf("failed to marshal match clock: %w", err)
	}
	if err := q.InsertClockOutbox(ctx, db.InsertClockOutboxParams{
		ID:        uuid.New(),
		MatchID:   clock.MatchID,
		EventType: OutboxEventClockUpdated,
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// classifyStorageError marks lock and serialization failures as transient.
// The transaction has already rolled back when they surface.
func classifyStorageError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected, pqQueryCanceled:
			return fmt.Errorf("%w: %w", ErrTransientStorage, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransientStorage, err)
	}
	return err
}

func txQueries(tx *sql.Tx) *db.Queries {
	return db.New(tx)
}

// Helper function to convert DB clock to model
func dbClockToModel(row db.MatchClock) *models.MatchClock {
	return &models.MatchClock{
		MatchID:           row.MatchID,
		Status:            models.MatchStatus(row.Status),
		CurrentMinute:     int(row.CurrentMinute),
		ExtraTime:         int(row.ExtraTime),
		IsTimerActive:     row.IsTimerActive,
		HalfTimeBreak:     row.HalfTimeBreak,
		BaselineTimestamp: row.BaselineTimestamp.UTC(),
		Version:           row.Version,
	}
}
