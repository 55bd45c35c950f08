package matchclock

import (
	"github.com/mcdev12/matchday/go/internal/models"
)

// TimerAction is an operator command against a match clock.
type TimerAction string

const (
	ActionStart        TimerAction = "start"
	ActionPause        TimerAction = "pause"
	ActionResume       TimerAction = "resume"
	ActionAddExtraTime TimerAction = "add_extra_time"
	ActionHalfTime     TimerAction = "half_time"
	ActionSecondHalf   TimerAction = "second_half"
	ActionFinish       TimerAction = "finish"
)

const (
	// SecondHalfStartMinute is where the clock restarts after half time.
	SecondHalfStartMinute = 45
	MinExtraMinutes       = 1
	MaxExtraMinutes       = 10
)

// ActionRequest is a timer action with its optional parameters.
type ActionRequest struct {
	Action       TimerAction `json:"action" validate:"required,oneof=start pause resume add_extra_time half_time second_half finish"`
	ExtraMinutes *int        `json:"extraMinutes,omitempty" validate:"omitempty,min=1,max=10"`
}

// StatusRequest moves a match out of the timer state machine
// (postponement or cancellation).
type StatusRequest struct {
	Status models.MatchStatus `json:"status" validate:"required,oneof=postponed cancelled"`
}
