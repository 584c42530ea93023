package schedule

import (
	"github.com/goatboynz/ha-WaterME/internal/database/models"
)

// Plan is the planner's answer for one zone at one evaluation instant.
type Plan struct {
	// Eligible is false when the zone has no remaining shots in this phase
	// (disabled zones are filtered by the caller).
	Eligible bool
	// Due is true when the next un-fired shot's target minute has passed.
	Due bool
	// TargetMin is the elapsed-minute mark of the next shot.
	TargetMin float64
	// WaitMin is how many minutes remain until TargetMin (0 when due).
	WaitMin float64
	// DurationSec is the configured dwell time for this phase's shots.
	DurationSec float64
	// PhaseTag is the history tag to record if the shot fires.
	PhaseTag string
}

// PlanShot decides whether a zone's next shot is due at elapsedMin, given how
// many shots it has already fired this cycle. Shots are spread evenly across
// each phase window; shot k targets windowStart + k*(window/shots).
// Zones with a zero shot count for the phase are skipped outright, which also
// keeps the interval division well-defined.
func PlanShot(zone *models.Zone, phase Phase, elapsedMin float64, shotsToday int) Plan {
	switch phase {
	case PhaseP1:
		if zone.P1Shots <= 0 || shotsToday >= zone.P1Shots {
			return Plan{}
		}
		interval := P1WindowMinutes / float64(zone.P1Shots)
		target := RampUpMinutes + float64(shotsToday)*interval
		return planAt(target, elapsedMin, zone.P1VolumeSec, models.PhaseTagP1)

	case PhaseP2:
		if zone.P2Shots <= 0 {
			return Plan{}
		}
		k := shotsToday - zone.P1Shots
		if k < 0 || k >= zone.P2Shots {
			return Plan{}
		}
		interval := P2WindowMinutes / float64(zone.P2Shots)
		target := P2StartMinutes + float64(k)*interval
		return planAt(target, elapsedMin, zone.P2VolumeSec, models.PhaseTagP2)

	default:
		return Plan{}
	}
}

func planAt(target, elapsedMin, durationSec float64, tag string) Plan {
	wait := target - elapsedMin
	if wait < 0 {
		wait = 0
	}
	return Plan{
		Eligible:    true,
		Due:         elapsedMin >= target,
		TargetMin:   target,
		WaitMin:     wait,
		DurationSec: durationSec,
		PhaseTag:    tag,
	}
}
