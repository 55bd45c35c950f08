package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MatchStatus defines the lifecycle status of a match.
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusFinished  MatchStatus = "finished"
	MatchStatusPostponed MatchStatus = "postponed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// MatchEventType defines the kinds of match events the clock appends.
type MatchEventType string

const (
	MatchEventHalfTime MatchEventType = "half_time"
	MatchEventFullTime MatchEventType = "full_time"
)

// MatchClock is the authoritative timer state for one match.
// Version increases by one on every committed change.
type MatchClock struct {
	MatchID           uuid.UUID   `json:"matchId"`
	Status            MatchStatus `json:"status"`
	CurrentMinute     int         `json:"currentMinute"`
	ExtraTime         int         `json:"extraTime"`
	IsTimerActive     bool        `json:"isTimerActive"`
	HalfTimeBreak     bool        `json:"halfTimeBreak"`
	BaselineTimestamp time.Time   `json:"baselineTimestamp"`
	Version           int64       `json:"version"`
}

// ElapsedSeconds returns the whole seconds between the baseline and now,
// never negative.
func (c MatchClock) ElapsedSeconds(now time.Time) int64 {
	d := now.Sub(c.BaselineTimestamp)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Freeze folds the minutes elapsed since the baseline into CurrentMinute.
// It only counts time while the timer is running and does not move the baseline.
func (c *MatchClock) Freeze(now time.Time) {
	if !c.IsTimerActive {
		return
	}
	c.CurrentMinute += int(c.ElapsedSeconds(now) / 60)
}

// Running reports whether the clock advances on its own.
func (c MatchClock) Running() bool {
	return c.IsTimerActive && c.Status == MatchStatusLive && !c.HalfTimeBreak
}

// DisplayedElapsed is currentMinute + extraTime plus whole minutes since the
// baseline while the timer is active.
func (c MatchClock) DisplayedElapsed(now time.Time) int {
	elapsed := c.CurrentMinute + c.ExtraTime
	if c.IsTimerActive {
		elapsed += int(c.ElapsedSeconds(now) / 60)
	}
	return elapsed
}

// IsTerminal reports whether the clock can no longer change through timer actions.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusFinished || s == MatchStatusCancelled
}

// MatchEvent is an entry in the match events log.
type MatchEvent struct {
	ID          uuid.UUID       `json:"id"`
	MatchID     uuid.UUID       `json:"matchId"`
	Minute      int             `json:"minute"`
	Type        MatchEventType  `json:"type"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
