package projector

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/models"
)

// ClockGetter fetches the stored record.
type ClockGetter interface {
	GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error)
}

// LocalSource follows a match inside the server process.
type LocalSource struct {
	app    ClockGetter
	broker *channel.Broker
}

func NewLocalSource(app ClockGetter, broker *channel.Broker) *LocalSource {
	return &LocalSource{app: app, broker: broker}
}

func (s *LocalSource) Subscribe(ctx context.Context, matchID uuid.UUID) (Subscription, error) {
	sub, err := s.broker.Subscribe(matchID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *LocalSource) FetchClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	return s.app.GetClock(ctx, matchID)
}
