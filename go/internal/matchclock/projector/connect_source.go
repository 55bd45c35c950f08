package projector

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ConnectSource follows a match over the MatchClockService RPC API.
type ConnectSource struct {
	client *matchclock.Client
}

func NewConnectSource(client *matchclock.Client) *ConnectSource {
	return &ConnectSource{client: client}
}

func (s *ConnectSource) FetchClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	return s.client.GetClock(ctx, matchID)
}

func (s *ConnectSource) Subscribe(ctx context.Context, matchID uuid.UUID) (Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := s.client.Watch(streamCtx, matchID)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &streamSubscription{
		updates: make(chan models.MatchClock, 16),
		cancel:  cancel,
	}
	go func() {
		defer close(sub.updates)
		defer stream.Close()
		for stream.Receive() {
			msg := stream.Msg()
			if msg.Match == nil {
				continue
			}
			select {
			case sub.updates <- *msg.Match:
			case <-streamCtx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			log.Debug().Err(err).Str("match_id", matchID.String()).Msg("watch stream ended")
		}
	}()
	return sub, nil
}

type streamSubscription struct {
	updates chan models.MatchClock
	cancel  context.CancelFunc
	once    sync.Once
}

func (s *streamSubscription) Updates() <-chan models.MatchClock {
	return s.updates
}

func (s *streamSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
