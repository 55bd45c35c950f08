package matchclock

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/models"
)

// Client calls a remote MatchClockService.
type Client struct {
	schedule    *connect.Client[MatchRequest, MatchClockResponse]
	applyAction *connect.Client[ApplyTimerActionRequest, MatchClockResponse]
	setStatus   *connect.Client[SetMatchStatusRequest, MatchClockResponse]
	getClock    *connect.Client[MatchRequest, MatchClockResponse]
	listEvents  *connect.Client[MatchRequest, ListMatchEventsResponse]
	watch       *connect.Client[MatchRequest, MatchClockResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		schedule:    connect.NewClient[MatchRequest, MatchClockResponse](httpClient, baseURL+ScheduleMatchProcedure, opts...),
		applyAction: connect.NewClient[ApplyTimerActionRequest, MatchClockResponse](httpClient, baseURL+ApplyTimerActionProcedure, opts...),
		setStatus:   connect.NewClient[SetMatchStatusRequest, MatchClockResponse](httpClient, baseURL+SetMatchStatusProcedure, opts...),
		getClock:    connect.NewClient[MatchRequest, MatchClockResponse](httpClient, baseURL+GetMatchClockProcedure, opts...),
		listEvents:  connect.NewClient[MatchRequest, ListMatchEventsResponse](httpClient, baseURL+ListMatchEventsProcedure, opts...),
		watch:       connect.NewClient[MatchRequest, MatchClockResponse](httpClient, baseURL+WatchMatchClockProcedure, opts...),
	}
}

func (c *Client) ScheduleMatch(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	res, err := c.schedule.CallUnary(ctx, connect.NewRequest(&MatchRequest{MatchID: matchID.String()}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Match, nil
}

func (c *Client) ApplyAction(ctx context.Context, matchID uuid.UUID, req ActionRequest) (*models.MatchClock, error) {
	res, err := c.applyAction.CallUnary(ctx, connect.NewRequest(&ApplyTimerActionRequest{
		MatchID:      matchID.String(),
		Action:       req.Action,
		ExtraMinutes: req.ExtraMinutes,
	}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Match, nil
}

func (c *Client) SetStatus(ctx context.Context, matchID uuid.UUID, req StatusRequest) (*models.MatchClock, error) {
	res, err := c.setStatus.CallUnary(ctx, connect.NewRequest(&SetMatchStatusRequest{
		MatchID: matchID.String(),
		Status:  req.Status,
	}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Match, nil
}

func (c *Client) GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	res, err := c.getClock.CallUnary(ctx, connect.NewRequest(&MatchRequest{MatchID: matchID.String()}))
	if err != nil {
		return nil, err
	}
	if res.Msg.Match == nil {
		return nil, fmt.Errorf("%w: empty response for %s", ErrNotFound, matchID)
	}
	return res.Msg.Match, nil
}

func (c *Client) ListEvents(ctx context.Context, matchID uuid.UUID) ([]models.MatchEvent, error) {
	res, err := c.listEvents.CallUnary(ctx, connect.NewRequest(&MatchRequest{MatchID: matchID.String()}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Events, nil
}

// Watch opens a server stream of clock records for matchID.
func (c *Client) Watch(ctx context.Context, matchID uuid.UUID) (*connect.ServerStreamForClient[MatchClockResponse], error) {
	return c.watch.CallServerStream(ctx, connect.NewRequest(&MatchRequest{MatchID: matchID.String()}))
}
