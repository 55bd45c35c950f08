package channel

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockAt(matchID uuid.UUID, version int64) models.MatchClock {
	return models.MatchClock{
		MatchID: matchID,
		Status:  models.MatchStatusLive,
		Version: version,
	}
}

func drain(sub *Subscription) []int64 {
	var versions []int64
	for {
		select {
		case c, ok := <-sub.Updates():
			if !ok {
				return versions
			}
			versions = append(versions, c.Version)
		default:
			return versions
		}
	}
}

func TestBroker_DeliversInPublishOrder(t *testing.T) {
	b := NewBroker(8)
	matchID := uuid.New()

	first, err := b.Subscribe(matchID)
	require.NoError(t, err)
	second, err := b.Subscribe(matchID)
	require.NoError(t, err)

	for v := int64(1); v <= 4; v++ {
		require.NoError(t, b.Publish(context.Background(), clockAt(matchID, v)))
	}

	assert.Equal(t, []int64{1, 2, 3, 4}, drain(first))
	assert.Equal(t, []int64{1, 2, 3, 4}, drain(second))
}

func TestBroker_SkipsStaleRecords(t *testing.T) {
	b := NewBroker(8)
	matchID := uuid.New()
	sub, err := b.Subscribe(matchID)
	require.NoError(t, err)

	for _, v := range []int64{3, 2, 3, 5, 4} {
		require.NoError(t, b.Publish(context.Background(), clockAt(matchID, v)))
	}

	assert.Equal(t, []int64{3, 5}, drain(sub))
	assert.Equal(t, uint64(3), b.Stats().Stale)
}

func TestBroker_TopicsAreIsolated(t *testing.T) {
	b := NewBroker(8)
	a, other := uuid.New(), uuid.New()
	sub, err := b.Subscribe(a)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), clockAt(other, 1)))
	require.NoError(t, b.Publish(context.Background(), clockAt(a, 1)))

	assert.Equal(t, []int64{1}, drain(sub))
	assert.Equal(t, a, sub.MatchID())
}

func TestBroker_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBroker(8)
	matchID := uuid.New()
	require.NoError(t, b.Publish(context.Background(), clockAt(matchID, 1)))

	sub, err := b.Subscribe(matchID)
	require.NoError(t, err)
	assert.Empty(t, drain(sub))
}

func TestBroker_DropsSlowSubscriber(t *testing.T) {
	b := NewBroker(2)
	matchID := uuid.New()
	slow, err := b.Subscribe(matchID)
	require.NoError(t, err)
	fast, err := b.Subscribe(matchID)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), clockAt(matchID, 1)))
	require.NoError(t, b.Publish(context.Background(), clockAt(matchID, 2)))
	assert.Equal(t, []int64{1, 2}, drain(fast))

	// slow never read, so the third record overflows it.
	require.NoError(t, b.Publish(context.Background(), clockAt(matchID, 3)))

	var got []int64
	for c := range slow.Updates() {
		got = append(got, c.Version)
	}
	assert.Equal(t, []int64{1, 2}, got, "buffered records are still readable before close")
	assert.Equal(t, []int64{3}, drain(fast))
	assert.Equal(t, 1, b.SubscriberCount(matchID))
	assert.Equal(t, uint64(1), b.Stats().Dropped)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	b := NewBroker(4)
	matchID := uuid.New()
	sub, err := b.Subscribe(matchID)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Updates()
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount(matchID))
	assert.NotContains(t, b.Stats().PerMatch, matchID.String())

	require.NoError(t, b.Publish(context.Background(), clockAt(matchID, 1)))
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(4)
	matchID := uuid.New()
	sub, err := b.Subscribe(matchID)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-sub.Updates()
	assert.False(t, ok)
	require.NoError(t, sub.Close())

	_, err = b.Subscribe(matchID)
	assert.ErrorIs(t, err, ErrBrokerClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), clockAt(matchID, 1)), ErrBrokerClosed)
}

func TestBroker_Stats(t *testing.T) {
	b := NewBroker(0)
	a, other := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{a, a, other} {
		_, err := b.Subscribe(id)
		require.NoError(t, err)
	}
	require.NoError(t, b.Publish(context.Background(), clockAt(a, 1)))

	stats := b.Stats()
	assert.Equal(t, 2, stats.Topics)
	assert.Equal(t, 3, stats.Subscribers)
	assert.Equal(t, 2, stats.PerMatch[a.String()])
	assert.Equal(t, uint64(1), stats.Published)
}
