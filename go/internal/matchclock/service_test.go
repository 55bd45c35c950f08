package matchclock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcEnv struct {
	client *Client
	app    *App
	broker *channel.Broker
	clock  *clockwork.FakeClock
}

func newRPCEnv(t *testing.T) *rpcEnv {
	t.Helper()

	clock := clockwork.NewFakeClockAt(kickOff)
	broker := channel.NewBroker(channel.DefaultSubscriberBuffer)
	app := NewApp(NewMemoryRepository(), broker, WithClock(clock))

	mux := http.NewServeMux()
	path, handler := NewServiceHandler(NewService(app, broker))
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		_ = broker.Close()
	})

	return &rpcEnv{
		client: NewClient(server.Client(), server.URL),
		app:    app,
		broker: broker,
		clock:  clock,
	}
}

func TestService_UnaryRoundTrip(t *testing.T) {
	env := newRPCEnv(t)
	ctx := context.Background()
	matchID := uuid.New()

	scheduled, err := env.client.ScheduleMatch(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusScheduled, scheduled.Status)

	_, err = env.client.ApplyAction(ctx, matchID, ActionRequest{Action: ActionStart})
	require.NoError(t, err)
	env.clock.Advance(45 * time.Minute)

	two := 2
	clock, err := env.client.ApplyAction(ctx, matchID, ActionRequest{Action: ActionAddExtraTime, ExtraMinutes: &two})
	require.NoError(t, err)
	assert.Equal(t, 45, clock.CurrentMinute)
	assert.Equal(t, 2, clock.ExtraTime)

	_, err = env.client.ApplyAction(ctx, matchID, ActionRequest{Action: ActionHalfTime})
	require.NoError(t, err)

	got, err := env.client.GetClock(ctx, matchID)
	require.NoError(t, err)
	assert.True(t, got.HalfTimeBreak)
	assert.Equal(t, int64(4), got.Version)

	events, err := env.client.ListEvents(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 45, events[0].Minute)
}

func TestService_ErrorCodes(t *testing.T) {
	env := newRPCEnv(t)
	ctx := context.Background()
	matchID := uuid.New()
	_, err := env.app.ScheduleMatch(ctx, matchID)
	require.NoError(t, err)
	eleven := 11

	tests := []struct {
		name string
		call func() error
		code connect.Code
	}{
		{"not found", func() error {
			_, err := env.client.GetClock(ctx, uuid.New())
			return err
		}, connect.CodeNotFound},
		{"invalid transition", func() error {
			_, err := env.client.ApplyAction(ctx, matchID, ActionRequest{Action: ActionPause})
			return err
		}, connect.CodeFailedPrecondition},
		{"invalid argument", func() error {
			_, err := env.client.ApplyAction(ctx, matchID, ActionRequest{Action: ActionAddExtraTime, ExtraMinutes: &eleven})
			return err
		}, connect.CodeInvalidArgument},
		{"unsupported status", func() error {
			_, err := env.client.SetStatus(ctx, matchID, StatusRequest{Status: models.MatchStatusFinished})
			return err
		}, connect.CodeInvalidArgument},
		{"duplicate schedule", func() error {
			_, err := env.client.ScheduleMatch(ctx, matchID)
			return err
		}, connect.CodeFailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestService_WatchStreamsSnapshotThenCommits(t *testing.T) {
	env := newRPCEnv(t)
	matchID := uuid.New()
	_, err := env.app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := env.client.Watch(ctx, matchID)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "snapshot: %v", stream.Err())
	assert.Equal(t, int64(1), stream.Msg().Match.Version)

	require.Eventually(t, func() bool { return env.broker.SubscriberCount(matchID) == 1 }, time.Second, 5*time.Millisecond)
	_, err = env.app.ApplyAction(context.Background(), matchID, ActionRequest{Action: ActionStart})
	require.NoError(t, err)
	_, err = env.app.SetStatus(context.Background(), matchID, StatusRequest{Status: models.MatchStatusPostponed})
	require.NoError(t, err)

	require.True(t, stream.Receive(), "start: %v", stream.Err())
	assert.Equal(t, models.MatchStatusLive, stream.Msg().Match.Status)
	require.True(t, stream.Receive(), "postpone: %v", stream.Err())
	assert.Equal(t, models.MatchStatusPostponed, stream.Msg().Match.Status)
	assert.Equal(t, int64(3), stream.Msg().Match.Version)
}

func TestService_WatchUnknownMatch(t *testing.T) {
	env := newRPCEnv(t)

	stream, err := env.client.Watch(context.Background(), uuid.New())
	require.NoError(t, err)
	defer stream.Close()

	assert.False(t, stream.Receive())
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(stream.Err()))
}

func TestService_WatchWithoutSubscriber(t *testing.T) {
	app := NewApp(NewMemoryRepository(), nil)
	mux := http.NewServeMux()
	path, handler := NewServiceHandler(NewService(app, nil))
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	stream, err := NewClient(server.Client(), server.URL).Watch(context.Background(), uuid.New())
	require.NoError(t, err)
	defer stream.Close()

	assert.False(t, stream.Receive())
	assert.Equal(t, connect.CodeUnimplemented, connect.CodeOf(stream.Err()))
}
