package matchclock

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// ServiceName is the fully-qualified name of the match clock RPC service.
	ServiceName = "matchclock.v1.MatchClockService"

	ScheduleMatchProcedure    = "/" + ServiceName + "/ScheduleMatch"
	ApplyTimerActionProcedure = "/" + ServiceName + "/ApplyTimerAction"
	SetMatchStatusProcedure   = "/" + ServiceName + "/SetMatchStatus"
	GetMatchClockProcedure    = "/" + ServiceName + "/GetMatchClock"
	ListMatchEventsProcedure  = "/" + ServiceName + "/ListMatchEvents"
	WatchMatchClockProcedure  = "/" + ServiceName + "/WatchMatchClock"
)

// MatchClockApp defines what the service layer needs from the match clock application
type MatchClockApp interface {
	ScheduleMatch(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error)
	GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error)
	ListEvents(ctx context.Context, matchID uuid.UUID) ([]models.MatchEvent, error)
	ApplyAction(ctx context.Context, matchID uuid.UUID, req ActionRequest) (*models.MatchClock, error)
	SetStatus(ctx context.Context, matchID uuid.UUID, req StatusRequest) (*models.MatchClock, error)
}

// Subscriber joins a match topic.
type Subscriber interface {
	Subscribe(matchID uuid.UUID) (*channel.Subscription, error)
}

type MatchRequest struct {
	MatchID string `json:"matchId"`
}

type ApplyTimerActionRequest struct {
	MatchID      string      `json:"matchId"`
	Action       TimerAction `json:"action"`
	ExtraMinutes *int        `json:"extraMinutes,omitempty"`
}

type SetMatchStatusRequest struct {
	MatchID string             `json:"matchId"`
	Status  models.MatchStatus `json:"status"`
}

type MatchClockResponse struct {
	Match *models.MatchClock `json:"match"`
}

type ListMatchEventsResponse struct {
	Events []models.MatchEvent `json:"events"`
}

// jsonCodec carries plain Go structs over the connect protocols.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Service implements the MatchClockService RPC interface
type Service struct {
	app        MatchClockApp
	subscriber Subscriber
}

// NewService creates a new match clock RPC service. subscriber may be nil, in
// which case WatchMatchClock is unavailable.
func NewService(app MatchClockApp, subscriber Subscriber) *Service {
	return &Service{
		app:        app,
		subscriber: subscriber,
	}
}

// NewServiceHandler builds the HTTP handler and the path prefix to mount it on.
func NewServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ScheduleMatchProcedure, connect.NewUnaryHandler(ScheduleMatchProcedure, svc.ScheduleMatch, opts...))
	mux.Handle(ApplyTimerActionProcedure, connect.NewUnaryHandler(ApplyTimerActionProcedure, svc.ApplyTimerAction, opts...))
	mux.Handle(SetMatchStatusProcedure, connect.NewUnaryHandler(SetMatchStatusProcedure, svc.SetMatchStatus, opts...))
	mux.Handle(GetMatchClockProcedure, connect.NewUnaryHandler(GetMatchClockProcedure, svc.GetMatchClock, opts...))
	mux.Handle(ListMatchEventsProcedure, connect.NewUnaryHandler(ListMatchEventsProcedure, svc.ListMatchEvents, opts...))
	mux.Handle(WatchMatchClockProcedure, connect.NewServerStreamHandler(WatchMatchClockProcedure, svc.WatchMatchClock, opts...))
	return "/" + ServiceName + "/", mux
}

// ScheduleMatch creates the clock for a match
func (s *Service) ScheduleMatch(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[MatchClockResponse], error) {
	matchID, err := parseMatchID(req.Msg.MatchID)
	if err != nil {
		return nil, err
	}

	clock, err := s.app.ScheduleMatch(ctx, matchID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&MatchClockResponse{Match: clock}), nil
}

// ApplyTimerAction applies an operator timer action
func (s *Service) ApplyTimerAction(ctx context.Context, req *connect.Request[ApplyTimerActionRequest]) (*connect.Response[MatchClockResponse], error) {
	matchID, err := parseMatchID(req.Msg.MatchID)
	if err != nil {
		return nil, err
	}

	clock, err := s.app.ApplyAction(ctx, matchID, ActionRequest{
		Action:       req.Msg.Action,
		ExtraMinutes: req.Msg.ExtraMinutes,
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&MatchClockResponse{Match: clock}), nil
}

// SetMatchStatus postpones or cancels a match
func (s *Service) SetMatchStatus(ctx context.Context, req *connect.Request[SetMatchStatusRequest]) (*connect.Response[MatchClockResponse], error) {
	matchID, err := parseMatchID(req.Msg.MatchID)
	if err != nil {
		return nil, err
	}

	clock, err := s.app.SetStatus(ctx, matchID, StatusRequest{Status: req.Msg.Status})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&MatchClockResponse{Match: clock}), nil
}

// GetMatchClock returns the stored clock
func (s *Service) GetMatchClock(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[MatchClockResponse], error) {
	matchID, err := parseMatchID(req.Msg.MatchID)
	if err != nil {
		return nil, err
	}

	clock, err := s.app.GetClock(ctx, matchID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&MatchClockResponse{Match: clock}), nil
}

// ListMatchEvents returns the events appended by the clock
func (s *Service) ListMatchEvents(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[ListMatchEventsResponse], error) {
	matchID, err := parseMatchID(req.Msg.MatchID)
	if err != nil {
		return nil, err
	}

	events, err := s.app.ListEvents(ctx, matchID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListMatchEventsResponse{Events: events}), nil
}

// WatchMatchClock streams the current clock and then every newer commit until
// the client goes away. A dropped subscription is rejoined with a fresh fetch.
func (s *Service) WatchMatchClock(ctx context.Context, req *connect.Request[MatchRequest], stream *connect.ServerStream[MatchClockResponse]) error {
	if s.subscriber == nil {
		return connect.NewError(connect.CodeUnimplemented, errors.New("watch is not enabled on this server"))
	}
	matchID, err := parseMatchID(req.Msg.MatchID)
	if err != nil {
		return err
	}

	var lastVersion int64
	send := func(clock models.MatchClock) error {
		if clock.Version <= lastVersion {
			return nil
		}
		lastVersion = clock.Version
		return stream.Send(&MatchClockResponse{Match: &clock})
	}

	for {
		sub, err := s.subscriber.Subscribe(matchID)
		if err != nil {
			return connect.NewError(connect.CodeUnavailable, err)
		}

		clock, err := s.app.GetClock(ctx, matchID)
		if err != nil {
			sub.Close()
			return connectError(err)
		}
		if err := send(*clock); err != nil {
			sub.Close()
			return err
		}

		if err := forward(ctx, sub, send); err != nil {
			sub.Close()
			return err
		}
		sub.Close()

		if ctx.Err() != nil {
			return nil
		}
		log.Debug().Str("match_id", matchID.String()).Msg("watch subscription dropped, resyncing")
	}
}

// forward relays updates until ctx ends or the subscription closes.
func forward(ctx context.Context, sub *channel.Subscription, send func(models.MatchClock) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case clock, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			if err := send(clock); err != nil {
				return err
			}
		}
	}
}

func parseMatchID(raw string) (uuid.UUID, error) {
	matchID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return matchID, nil
}

// connectError maps app sentinels onto connect codes.
func connectError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrInvalidTransition):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ErrTransientStorage):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
