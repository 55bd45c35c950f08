package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/matchclock/db"
)

// ErrAlreadySent is returned when a notified row was relayed before we got to it.
var ErrAlreadySent = errors.New("outbox event already sent")

// Repository reads and acknowledges rows of the match clock outbox.
type Repository struct {
	queries *db.Queries
}

func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{queries: db.New(sqlDB)}
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (channel.Message, error) {
	row, err := r.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return channel.Message{}, fmt.Errorf("%w: %s", ErrAlreadySent, id)
		}
		return channel.Message{}, fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return channel.Message{
		ID:        row.ID,
		MatchID:   row.MatchID,
		EventType: row.EventType,
		Payload:   row.Payload,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]channel.Message, error) {
	rows, err := r.queries.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	messages := make([]channel.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, channel.Message{
			ID:        row.ID,
			MatchID:   row.MatchID,
			EventType: row.EventType,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return messages, nil
}

// HasOlderUnsent reports whether an unsent row of the same match precedes msg
// in relay order.
func (r *Repository) HasOlderUnsent(ctx context.Context, msg channel.Message) (bool, error) {
	older, err := r.queries.HasOlderUnsentOutbox(ctx, db.HasOlderUnsentOutboxParams{
		MatchID:   msg.MatchID,
		CreatedAt: msg.CreatedAt,
		ID:        msg.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check older outbox events: %w", err)
	}
	return older, nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkOutboxSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	count, err := r.queries.CountUnsentOutbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}
