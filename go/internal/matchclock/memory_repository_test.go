package matchclock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateClock(t *testing.T) {
	repo := NewMemoryRepository()
	matchID := uuid.New()

	created, err := repo.CreateClock(context.Background(), models.MatchClock{
		MatchID:           matchID,
		Status:            models.MatchStatusScheduled,
		BaselineTimestamp: kickOff,
		Version:           99,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	_, err = repo.CreateClock(context.Background(), models.MatchClock{MatchID: matchID})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryRepository_UpdateClockBumpsVersion(t *testing.T) {
	repo := NewMemoryRepository()
	matchID := uuid.New()
	_, err := repo.CreateClock(context.Background(), models.MatchClock{MatchID: matchID, Status: models.MatchStatusScheduled})
	require.NoError(t, err)

	event := models.MatchEvent{ID: uuid.New(), MatchID: matchID, Type: models.MatchEventHalfTime, Minute: 45, CreatedAt: kickOff}
	updated, err := repo.UpdateClock(context.Background(), matchID, func(c *models.MatchClock) ([]models.MatchEvent, error) {
		c.Status = models.MatchStatusLive
		c.MatchID = uuid.New()
		c.Version = 40
		return []models.MatchEvent{event}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, matchID, updated.MatchID, "match id is not mutable")
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, models.MatchStatusLive, updated.Status)

	events, err := repo.ListEvents(context.Background(), matchID)
	require.NoError(t, err)
	assert.Equal(t, []models.MatchEvent{event}, events)
}

func TestMemoryRepository_FailedMutationDiscardsChanges(t *testing.T) {
	repo := NewMemoryRepository()
	matchID := uuid.New()
	_, err := repo.CreateClock(context.Background(), models.MatchClock{MatchID: matchID, Status: models.MatchStatusScheduled})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = repo.UpdateClock(context.Background(), matchID, func(c *models.MatchClock) ([]models.MatchEvent, error) {
		c.Status = models.MatchStatusFinished
		c.CurrentMinute = 90
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repo.GetClock(context.Background(), matchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusScheduled, stored.Status)
	assert.Equal(t, 0, stored.CurrentMinute)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMemoryRepository_MatchesDoNotBlockEachOther(t *testing.T) {
	repo := NewMemoryRepository()
	slow, fast := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{slow, fast} {
		_, err := repo.CreateClock(context.Background(), models.MatchClock{MatchID: id})
		require.NoError(t, err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = repo.UpdateClock(context.Background(), slow, func(c *models.MatchClock) ([]models.MatchEvent, error) {
			close(entered)
			<-release
			return nil, nil
		})
	}()
	<-entered

	_, err := repo.UpdateClock(context.Background(), fast, func(c *models.MatchClock) ([]models.MatchEvent, error) {
		return nil, nil
	})
	require.NoError(t, err)

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("slow update never finished")
	}
}

func TestMemoryRepository_UnknownMatch(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.GetClock(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.UpdateClock(context.Background(), uuid.New(), func(c *models.MatchClock) ([]models.MatchEvent, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_LocksOnlyForExistingClocks(t *testing.T) {
	repo := NewMemoryRepository()
	noop := func(c *models.MatchClock) ([]models.MatchEvent, error) { return nil, nil }

	for range 50 {
		_, err := repo.UpdateClock(context.Background(), uuid.New(), noop)
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Empty(t, repo.locks)

	matchID := uuid.New()
	_, err := repo.CreateClock(context.Background(), models.MatchClock{MatchID: matchID, Status: models.MatchStatusScheduled})
	require.NoError(t, err)
	_, err = repo.CreateClock(context.Background(), models.MatchClock{MatchID: matchID, Status: models.MatchStatusScheduled})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, repo.locks, 1)

	updated, err := repo.UpdateClock(context.Background(), matchID, noop)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Len(t, repo.locks, 1)
}
