package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/models"
)

// DefaultSubjectPrefix is the subject and routing key prefix for clock updates.
const DefaultSubjectPrefix = "match.clock"

// Message is a committed outbox row on its way to a transport.
type Message struct {
	ID        uuid.UUID
	MatchID   uuid.UUID
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Envelope is the JSON body published on every transport.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	MatchID   string          `json:"matchId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func NewEnvelope(msg Message) Envelope {
	return Envelope{
		EventID:   msg.ID.String(),
		EventType: msg.EventType,
		MatchID:   msg.MatchID.String(),
		Timestamp: msg.CreatedAt.UTC(),
		Payload:   json.RawMessage(msg.Payload),
	}
}

// DecodeEnvelope parses a transport body and the clock record it carries.
func DecodeEnvelope(data []byte) (Envelope, models.MatchClock, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, models.MatchClock{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	var clock models.MatchClock
	if err := json.Unmarshal(env.Payload, &clock); err != nil {
		return env, models.MatchClock{}, fmt.Errorf("unmarshal match clock payload: %w", err)
	}
	if clock.MatchID.String() != env.MatchID {
		return env, models.MatchClock{}, fmt.Errorf("payload match %s does not match envelope match %s", clock.MatchID, env.MatchID)
	}
	return env, clock, nil
}

// Subject returns the per-match subject, e.g. match.clock.<matchId>.
func Subject(prefix string, matchID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", prefix, matchID)
}
