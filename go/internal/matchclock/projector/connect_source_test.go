package projector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/stretchr/testify/require"
)

func TestConnectSource_ProjectorFollowsWatchStream(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	broker := channel.NewBroker(channel.DefaultSubscriberBuffer)
	app := matchclock.NewApp(matchclock.NewMemoryRepository(), broker, matchclock.WithClock(clock))

	mux := http.NewServeMux()
	path, handler := matchclock.NewServiceHandler(matchclock.NewService(app, broker))
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	defer server.Close()
	defer broker.Close()

	matchID := uuid.New()
	_, err := app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)

	source := NewConnectSource(matchclock.NewClient(server.Client(), server.URL))
	p := New(source, matchID, DefaultConfig(), WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Display() == "SCHEDULED" }, 2*time.Second, 10*time.Millisecond)

	_, err = app.ApplyAction(context.Background(), matchID, matchclock.ActionRequest{Action: matchclock.ActionStart})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Display() == "0:00" }, 2*time.Second, 10*time.Millisecond)

	_, err = app.SetStatus(context.Background(), matchID, matchclock.StatusRequest{Status: "postponed"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Display() == "POSTPONED" }, 2*time.Second, 10*time.Millisecond)
}
