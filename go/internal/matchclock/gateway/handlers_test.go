package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kickOff = time.Date(2026, 10, 24, 15, 0, 0, 0, time.UTC)

type testGateway struct {
	server  *httptest.Server
	app     *matchclock.App
	broker  *channel.Broker
	clock   *clockwork.FakeClock
	service *Service
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	clock := clockwork.NewFakeClockAt(kickOff)
	broker := channel.NewBroker(channel.DefaultSubscriberBuffer)
	app := matchclock.NewApp(matchclock.NewMemoryRepository(), broker, matchclock.WithClock(clock))
	service := NewService(DefaultConfig(), app, broker, nil)

	r := mux.NewRouter()
	service.RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(func() {
		_ = service.Stop()
		server.Close()
		_ = broker.Close()
	})

	return &testGateway{server: server, app: app, broker: broker, clock: clock, service: service}
}

func (g *testGateway) do(t *testing.T, method, path, body string) (int, ClockResponse) {
	t.Helper()

	req, err := http.NewRequest(method, g.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out ClockResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestClockHandler_Lifecycle(t *testing.T) {
	g := newTestGateway(t)
	matchID := uuid.New()
	base := fmt.Sprintf("/api/matches/%s", matchID)

	code, resp := g.do(t, http.MethodPost, base, "")
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, resp.Success)
	assert.Equal(t, models.MatchStatusScheduled, resp.Match.Status)

	code, resp = g.do(t, http.MethodPost, base+"/timer", `{"action":"start"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Match.IsTimerActive)

	g.clock.Advance(40 * time.Minute)
	code, resp = g.do(t, http.MethodPost, base+"/timer", `{"action":"add_extra_time","extraMinutes":3}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 40, resp.Match.CurrentMinute)
	assert.Equal(t, 3, resp.Match.ExtraTime)

	code, resp = g.do(t, http.MethodPost, base+"/timer", `{"action":"half_time"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Match.HalfTimeBreak)

	code, resp = g.do(t, http.MethodGet, base+"/clock", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(4), resp.Match.Version)

	req, err := http.NewRequest(http.MethodGet, g.server.URL+base+"/events", nil)
	require.NoError(t, err)
	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	var events EventsResponse
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&events))
	require.Len(t, events.Events, 1)
	assert.Equal(t, models.MatchEventHalfTime, events.Events[0].Type)
}

func TestClockHandler_ErrorStatuses(t *testing.T) {
	g := newTestGateway(t)
	matchID := uuid.New()
	_, err := g.app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)
	base := fmt.Sprintf("/api/matches/%s", matchID)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"bad match id", http.MethodGet, "/api/matches/not-a-uuid/clock", "", http.StatusBadRequest},
		{"unknown match", http.MethodGet, fmt.Sprintf("/api/matches/%s/clock", uuid.New()), "", http.StatusNotFound},
		{"malformed body", http.MethodPost, base + "/timer", `{"action":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, base + "/timer", `{"action":"start","minutes":3}`, http.StatusBadRequest},
		{"unknown action", http.MethodPost, base + "/timer", `{"action":"rewind"}`, http.StatusBadRequest},
		{"extra minutes out of range", http.MethodPost, base + "/timer", `{"action":"add_extra_time","extraMinutes":11}`, http.StatusBadRequest},
		{"pause before start", http.MethodPost, base + "/timer", `{"action":"pause"}`, http.StatusConflict},
		{"duplicate schedule", http.MethodPost, base, "", http.StatusConflict},
		{"unsupported status", http.MethodPost, base + "/status", `{"status":"live"}`, http.StatusBadRequest},
		{"body match id differs", http.MethodPost, base + "/timer", fmt.Sprintf(`{"matchId":"%s","action":"start"}`, uuid.New()), http.StatusBadRequest},
		{"body match id malformed", http.MethodPost, base + "/status", `{"matchId":"nope","status":"postponed"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := g.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestClockHandler_SetStatus(t *testing.T) {
	g := newTestGateway(t)
	matchID := uuid.New()
	_, err := g.app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)

	code, resp := g.do(t, http.MethodPost, fmt.Sprintf("/api/matches/%s/status", matchID), `{"status":"postponed"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.MatchStatusPostponed, resp.Match.Status)
}

func TestClockHandler_BodyCarriesMatchID(t *testing.T) {
	g := newTestGateway(t)
	matchID := uuid.New()
	_, err := g.app.ScheduleMatch(context.Background(), matchID)
	require.NoError(t, err)
	base := fmt.Sprintf("/api/matches/%s", matchID)

	code, resp := g.do(t, http.MethodPost, base+"/timer", fmt.Sprintf(`{"matchId":"%s","action":"start"}`, matchID))
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.True(t, resp.Success)
	assert.True(t, resp.Match.IsTimerActive)

	code, resp = g.do(t, http.MethodPost, base+"/timer", fmt.Sprintf(`{"matchId":"%s","action":"add_extra_time","extraMinutes":3}`, matchID))
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, 3, resp.Match.ExtraTime)

	// A mismatched body is rejected before the action reaches the store.
	code, resp = g.do(t, http.MethodPost, base+"/timer", fmt.Sprintf(`{"matchId":"%s","action":"pause"}`, uuid.New()))
	require.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Success)
	clock, err := g.app.GetClock(context.Background(), matchID)
	require.NoError(t, err)
	assert.True(t, clock.IsTimerActive)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(fmt.Errorf("wrap: %w", matchclock.ErrTransientStorage)))
	assert.Equal(t, http.StatusInternalServerError, statusForError(fmt.Errorf("boom")))
}
