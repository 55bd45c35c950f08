package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HealthStatus struct {
	Healthy            bool      `json:"healthy"`
	EventsProcessed    uint64    `json:"events_processed"`
	LastEventTime      time.Time `json:"last_event_time"`
	PendingEvents      int64     `json:"pending_events"`
	DatabaseConnected  bool      `json:"database_connected"`
	TransportConnected bool      `json:"transport_connected"`
	ListenerActive     bool      `json:"listener_active"`
	Errors             []string  `json:"errors"`
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthChecker struct {
	relay     *Relay
	listener  *Listener
	store     Store
	db        Pinger
	connected func() bool
	threshold time.Duration // How long pending events may sit before unhealthy
}

// NewHealthChecker builds a checker. connected may be nil when the transport
// has no connection state to report.
func NewHealthChecker(relay *Relay, listener *Listener, store Store, db Pinger, connected func() bool, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		relay:     relay,
		listener:  listener,
		store:     store,
		db:        db,
		connected: connected,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:            true,
		TransportConnected: true,
		Errors:             []string{},
	}

	status.EventsProcessed, status.LastEventTime = h.relay.Stats()

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.connected != nil && !h.connected() {
		status.TransportConnected = false
		status.Healthy = false
		status.Errors = append(status.Errors, "transport disconnected")
	}

	if h.listener != nil {
		status.ListenerActive = h.listener.Active()
		if !status.ListenerActive {
			status.Healthy = false
			status.Errors = append(status.Errors, "outbox listener not running or disconnected")
		}
	}

	if status.DatabaseConnected {
		pending, err := h.store.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, err.Error())
		} else {
			status.PendingEvents = pending
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		if since := time.Since(status.LastEventTime); since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
