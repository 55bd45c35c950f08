package matchclock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/models"
)

// applyTransition validates req against the current clock and mutates it in place.
// On error the clock must be discarded by the caller.
func applyTransition(c *models.MatchClock, req ActionRequest, now time.Time) ([]models.MatchEvent, error) {
	switch req.Action {
	case ActionStart:
		if c.Status != models.MatchStatusScheduled && c.Status != models.MatchStatusPostponed {
			return nil, invalidTransition(c, req.Action)
		}
		c.Status = models.MatchStatusLive
		c.IsTimerActive = true
		c.CurrentMinute = 0
		c.ExtraTime = 0
		c.HalfTimeBreak = false

	case ActionPause:
		if !c.IsTimerActive {
			return nil, invalidTransition(c, req.Action)
		}
		c.Freeze(now)
		c.IsTimerActive = false

	case ActionResume:
		if c.IsTimerActive || c.Status != models.MatchStatusLive || c.HalfTimeBreak {
			return nil, invalidTransition(c, req.Action)
		}
		c.IsTimerActive = true

	case ActionAddExtraTime:
		if req.ExtraMinutes == nil {
			return nil, fmt.Errorf("%w: extraMinutes is required for %s", ErrInvalidArgument, req.Action)
		}
		if c.Status != models.MatchStatusLive {
			return nil, invalidTransition(c, req.Action)
		}
		c.Freeze(now)
		c.ExtraTime += *req.ExtraMinutes

	case ActionHalfTime:
		if c.Status != models.MatchStatusLive || c.HalfTimeBreak {
			return nil, invalidTransition(c, req.Action)
		}
		c.Freeze(now)
		c.HalfTimeBreak = true
		c.IsTimerActive = false
		c.BaselineTimestamp = now
		return []models.MatchEvent{newMatchEvent(c, models.MatchEventHalfTime, c.CurrentMinute, "Half time", now)}, nil

	case ActionSecondHalf:
		if !c.HalfTimeBreak {
			return nil, invalidTransition(c, req.Action)
		}
		c.HalfTimeBreak = false
		c.IsTimerActive = true
		c.CurrentMinute = SecondHalfStartMinute
		c.ExtraTime = 0

	case ActionFinish:
		if c.Status != models.MatchStatusLive {
			return nil, invalidTransition(c, req.Action)
		}
		c.Freeze(now)
		c.Status = models.MatchStatusFinished
		c.IsTimerActive = false
		c.HalfTimeBreak = false
		c.BaselineTimestamp = now
		return []models.MatchEvent{newMatchEvent(c, models.MatchEventFullTime, c.CurrentMinute+c.ExtraTime, "Full time", now)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, req.Action)
	}

	c.BaselineTimestamp = now
	return nil, nil
}

// applyStatusChange handles postponement and cancellation.
func applyStatusChange(c *models.MatchClock, status models.MatchStatus, now time.Time) error {
	switch status {
	case models.MatchStatusPostponed:
		if c.Status != models.MatchStatusScheduled && c.Status != models.MatchStatusLive {
			return fmt.Errorf("%w: cannot postpone match in status %s", ErrInvalidTransition, c.Status)
		}
		c.Freeze(now)
		c.IsTimerActive = false
		c.HalfTimeBreak = false
	case models.MatchStatusCancelled:
		if c.Status != models.MatchStatusScheduled && c.Status != models.MatchStatusPostponed {
			return fmt.Errorf("%w: cannot cancel match in status %s", ErrInvalidTransition, c.Status)
		}
		c.IsTimerActive = false
		c.HalfTimeBreak = false
	default:
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidArgument, status)
	}

	c.Status = status
	c.BaselineTimestamp = now
	return nil
}

func invalidTransition(c *models.MatchClock, action TimerAction) error {
	return fmt.Errorf("%w: cannot %s match in status %s (timer_active=%t, half_time=%t)",
		ErrInvalidTransition, action, c.Status, c.IsTimerActive, c.HalfTimeBreak)
}

func newMatchEvent(c *models.MatchClock, eventType models.MatchEventType, minute int, description string, now time.Time) models.MatchEvent {
	metadata, _ := json.Marshal(map[string]int{
		"currentMinute": c.CurrentMinute,
		"extraTime":     c.ExtraTime,
	})
	return models.MatchEvent{
		ID:          uuid.New(),
		MatchID:     c.MatchID,
		Minute:      minute,
		Type:        eventType,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   now,
	}
}
