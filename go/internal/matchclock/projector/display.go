package projector

import (
	"fmt"

	"github.com/mcdev12/matchday/go/internal/models"
)

// DisplayUnknown is shown while no trustworthy record is available.
const DisplayUnknown = "--:--"

// View is what a viewer renders at one instant.
type View struct {
	Display  string             `json:"display"`
	Minute   int                `json:"minute"`
	Seconds  int                `json:"seconds"`
	Degraded bool               `json:"degraded"`
	Record   *models.MatchClock `json:"record,omitempty"`
}

func formatDisplay(rec *models.MatchClock, minute, seconds int, degraded bool) string {
	if degraded || rec == nil {
		return DisplayUnknown
	}
	if rec.HalfTimeBreak {
		return "HT"
	}

	switch rec.Status {
	case models.MatchStatusLive:
		if rec.ExtraTime > 0 {
			return fmt.Sprintf("%d+%d:%02d", minute, rec.ExtraTime, seconds)
		}
		return fmt.Sprintf("%d:%02d", minute, seconds)
	case models.MatchStatusScheduled:
		return "SCHEDULED"
	case models.MatchStatusFinished:
		return "FT"
	case models.MatchStatusPostponed:
		return "POSTPONED"
	case models.MatchStatusCancelled:
		return "CANCELLED"
	default:
		return DisplayUnknown
	}
}
