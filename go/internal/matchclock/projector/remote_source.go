package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/matchday/go/internal/matchclock/gateway"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RemoteSource follows a match through the gateway: REST for fetches and the
// viewer WebSocket for updates.
type RemoteSource struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

func NewRemoteSource(baseURL string, httpClient *http.Client) *RemoteSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		dialer:     websocket.DefaultDialer,
	}
}

func (s *RemoteSource) FetchClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	endpoint := fmt.Sprintf("%s/api/matches/%s/clock", s.baseURL, matchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch match clock: %w", err)
	}
	defer resp.Body.Close()

	var body gateway.ClockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode match clock (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success || body.Match == nil {
		return nil, fmt.Errorf("fetch match clock: status %d: %s", resp.StatusCode, body.Message)
	}
	return body.Match, nil
}

func (s *RemoteSource) Subscribe(ctx context.Context, matchID uuid.UUID) (Subscription, error) {
	wsURL, err := s.wsURL(matchID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	sub := &wsSubscription{
		conn:    conn,
		updates: make(chan models.MatchClock, 16),
		done:    make(chan struct{}),
	}
	go sub.readLoop(ctx)
	return sub, nil
}

func (s *RemoteSource) wsURL(matchID uuid.UUID) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/match"
	u.RawQuery = url.Values{"match_id": []string{matchID.String()}}.Encode()
	return u.String(), nil
}

type wsSubscription struct {
	conn      *websocket.Conn
	updates   chan models.MatchClock
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsSubscription) Updates() <-chan models.MatchClock {
	return s.updates
}

// Close is idempotent. The read loop closes Updates once it exits.
func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *wsSubscription) readLoop(ctx context.Context) {
	defer close(s.updates)

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Debug().Err(err).Msg("viewer websocket closed")
			}
			return
		}

		var frame gateway.ClockFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Msg("ignoring malformed frame")
			continue
		}
		if frame.Type != gateway.FrameTypeClock {
			continue
		}

		select {
		case s.updates <- frame.Match:
		case <-s.done:
			return
		}
	}
}
