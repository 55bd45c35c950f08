package gateway

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for match viewers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	provider          StateProvider
}

func NewWebSocketHandler(cm *ConnectionManager, provider StateProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		provider:          provider,
	}
}

// HandleMatchConnection handles GET /ws/match?match_id=
func (h *WebSocketHandler) HandleMatchConnection(w http.ResponseWriter, r *http.Request) {
	matchIDStr := r.URL.Query().Get("match_id")
	if matchIDStr == "" {
		http.Error(w, "match_id is required", http.StatusBadRequest)
		return
	}

	matchID, err := uuid.Parse(matchIDStr)
	if err != nil {
		http.Error(w, "invalid match_id format", http.StatusBadRequest)
		return
	}

	// Reject unknown matches before the upgrade so the viewer gets a status code.
	if _, err := h.provider.GetClock(r.Context(), matchID); err != nil {
		if errors.Is(err, matchclock.ErrNotFound) {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("match_id", matchID.String()).Msg("failed to load match clock")
		http.Error(w, "failed to load match clock", http.StatusServiceUnavailable)
		return
	}

	// On failure the upgrader has already replied to the client.
	if err := h.connectionManager.UpgradeConnection(w, r, matchID); err != nil {
		log.Error().
			Err(err).
			Str("match_id", matchID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

func (h *WebSocketHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/match", h.HandleMatchConnection).Methods(http.MethodGet)
	r.HandleFunc("/ws/stats", h.HandleConnectionStats).Methods(http.MethodGet)
}
