package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds operator request bodies.
const maxBodyBytes = 4 << 10

// ClockResponse is the body of every clock endpoint.
type ClockResponse struct {
	Success bool               `json:"success"`
	Match   *models.MatchClock `json:"match,omitempty"`
	Message string             `json:"message,omitempty"`
}

type EventsResponse struct {
	Success bool                `json:"success"`
	Events  []models.MatchEvent `json:"events"`
}

// MatchID in a body is optional; when set it must name the match in the path.
type timerRequest struct {
	MatchID      string                 `json:"matchId,omitempty"`
	Action       matchclock.TimerAction `json:"action"`
	ExtraMinutes *int                   `json:"extraMinutes,omitempty"`
}

type statusRequest struct {
	MatchID string             `json:"matchId,omitempty"`
	Status  models.MatchStatus `json:"status"`
}

// ClockHandler serves the operator and viewer REST endpoints.
type ClockHandler struct {
	app matchclock.MatchClockApp
}

func NewClockHandler(app matchclock.MatchClockApp) *ClockHandler {
	return &ClockHandler{app: app}
}

// RegisterRoutes registers the match clock REST routes.
func (h *ClockHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/matches").Subrouter()
	api.HandleFunc("/{matchId}", h.HandleScheduleMatch).Methods(http.MethodPost)
	api.HandleFunc("/{matchId}/timer", h.HandleTimerAction).Methods(http.MethodPost)
	api.HandleFunc("/{matchId}/status", h.HandleSetStatus).Methods(http.MethodPost)
	api.HandleFunc("/{matchId}/clock", h.HandleGetClock).Methods(http.MethodGet)
	api.HandleFunc("/{matchId}/events", h.HandleListEvents).Methods(http.MethodGet)
}

// HandleScheduleMatch handles POST /api/matches/{matchId}
func (h *ClockHandler) HandleScheduleMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFromPath(w, r)
	if !ok {
		return
	}

	clock, err := h.app.ScheduleMatch(r.Context(), matchID)
	if err != nil {
		writeError(w, matchID, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClockResponse{Success: true, Match: clock})
}

// HandleTimerAction handles POST /api/matches/{matchId}/timer
func (h *ClockHandler) HandleTimerAction(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFromPath(w, r)
	if !ok {
		return
	}

	var req timerRequest
	if !decodeBody(w, r, &req) || !bodyMatchesPath(w, req.MatchID, matchID) {
		return
	}

	clock, err := h.app.ApplyAction(r.Context(), matchID, matchclock.ActionRequest{
		Action:       req.Action,
		ExtraMinutes: req.ExtraMinutes,
	})
	if err != nil {
		writeError(w, matchID, err)
		return
	}
	writeJSON(w, http.StatusOK, ClockResponse{Success: true, Match: clock})
}

// HandleSetStatus handles POST /api/matches/{matchId}/status
func (h *ClockHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFromPath(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !decodeBody(w, r, &req) || !bodyMatchesPath(w, req.MatchID, matchID) {
		return
	}

	clock, err := h.app.SetStatus(r.Context(), matchID, matchclock.StatusRequest{Status: req.Status})
	if err != nil {
		writeError(w, matchID, err)
		return
	}
	writeJSON(w, http.StatusOK, ClockResponse{Success: true, Match: clock})
}

// HandleGetClock handles GET /api/matches/{matchId}/clock
func (h *ClockHandler) HandleGetClock(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFromPath(w, r)
	if !ok {
		return
	}

	clock, err := h.app.GetClock(r.Context(), matchID)
	if err != nil {
		writeError(w, matchID, err)
		return
	}
	writeJSON(w, http.StatusOK, ClockResponse{Success: true, Match: clock})
}

// HandleListEvents handles GET /api/matches/{matchId}/events
func (h *ClockHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFromPath(w, r)
	if !ok {
		return
	}

	events, err := h.app.ListEvents(r.Context(), matchID)
	if err != nil {
		writeError(w, matchID, err)
		return
	}
	writeJSON(w, http.StatusOK, EventsResponse{Success: true, Events: events})
}

func matchIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	matchID, err := uuid.Parse(mux.Vars(r)["matchId"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ClockResponse{Message: "invalid match id"})
		return uuid.Nil, false
	}
	return matchID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ClockResponse{Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func bodyMatchesPath(w http.ResponseWriter, bodyID string, matchID uuid.UUID) bool {
	if bodyID == "" {
		return true
	}
	id, err := uuid.Parse(bodyID)
	if err != nil || id != matchID {
		writeJSON(w, http.StatusBadRequest, ClockResponse{Message: "matchId in body does not match path"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, matchID uuid.UUID, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("match_id", matchID.String()).Msg("match clock request failed")
	}
	writeJSON(w, status, ClockResponse{Message: err.Error()})
}

// statusForError maps app sentinels onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, matchclock.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, matchclock.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, matchclock.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, matchclock.ErrTransientStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
