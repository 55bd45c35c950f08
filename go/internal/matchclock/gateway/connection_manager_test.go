package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (g *testGateway) dial(t *testing.T, matchID uuid.UUID) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/match?match_id=" + matchID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) ClockFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame ClockFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebSocket_SnapshotThenUpdates(t *testing.T) {
	g := newTestGateway(t)
	matchID := uuid.New()
	_, err := g.app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)

	conn := g.dial(t, matchID)

	snapshot := readFrame(t, conn)
	assert.Equal(t, FrameTypeClock, snapshot.Type)
	assert.Equal(t, int64(1), snapshot.Match.Version)

	_, err = g.app.ApplyAction(context.Background(), matchID, matchclock.ActionRequest{Action: matchclock.ActionStart})
	require.NoError(t, err)
	g.clock.Advance(10 * time.Minute)
	_, err = g.app.ApplyAction(context.Background(), matchID, matchclock.ActionRequest{Action: matchclock.ActionPause})
	require.NoError(t, err)

	started := readFrame(t, conn)
	assert.Equal(t, int64(2), started.Match.Version)
	assert.True(t, started.Match.IsTimerActive)

	paused := readFrame(t, conn)
	assert.Equal(t, int64(3), paused.Match.Version)
	assert.Equal(t, 10, paused.Match.CurrentMinute)
}

func TestWebSocket_FanOutToAllViewers(t *testing.T) {
	g := newTestGateway(t)
	matchID := uuid.New()
	_, err := g.app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)

	first := g.dial(t, matchID)
	second := g.dial(t, matchID)
	readFrame(t, first)
	readFrame(t, second)

	stats := g.service.GetStats()
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveMatches)
	assert.Equal(t, 1, g.broker.SubscriberCount(matchID), "one broker subscription per match")

	_, err = g.app.ApplyAction(context.Background(), matchID, matchclock.ActionRequest{Action: matchclock.ActionStart})
	require.NoError(t, err)

	assert.Equal(t, int64(2), readFrame(t, first).Match.Version)
	assert.Equal(t, int64(2), readFrame(t, second).Match.Version)
}

func TestWebSocket_ReleasesSubscriptionOnDisconnect(t *testing.T) {
	g := newTestGateway(t)
	matchID := uuid.New()
	_, err := g.app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)

	conn := g.dial(t, matchID)
	readFrame(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return g.broker.SubscriberCount(matchID) == 0 && g.service.GetStats().TotalConnections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_RejectsBeforeUpgrade(t *testing.T) {
	g := newTestGateway(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing match id", "", http.StatusBadRequest},
		{"invalid match id", "?match_id=nope", http.StatusBadRequest},
		{"unknown match", "?match_id=" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(g.server.URL + "/ws/match" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestConnection_EnqueueSkipsStaleVersions(t *testing.T) {
	conn := &Connection{Send: make(chan []byte, 1)}

	assert.True(t, conn.enqueue(2, []byte("v2")))
	assert.True(t, conn.enqueue(1, []byte("v1")), "stale frames are skipped, not overflow")
	assert.False(t, conn.enqueue(3, []byte("v3")), "full buffer reports overflow")

	assert.Equal(t, []byte("v2"), <-conn.Send)

	conn.closeSend()
	conn.closeSend()
	assert.True(t, conn.enqueue(4, []byte("v4")))
}
