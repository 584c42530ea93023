// Package schedule contains the pure scheduling math: classifying elapsed
// lights-on time into irrigation phases, deciding when a zone's next shot is
// due, and deriving delivered volume from shot duration.
package schedule

// Phase is a named sub-interval of the light cycle with its own firing policy.
type Phase string

const (
	// PhaseRampUp is the first-hour dry period after lights-on. No shots fire.
	PhaseRampUp Phase = "RAMP_UP"
	// PhaseP1 is the maintenance window where the substrate is brought to field capacity.
	PhaseP1 Phase = "P1"
	// PhaseGap is the drainage gap between P1 and P2. No shots fire.
	PhaseGap Phase = "GAP"
	// PhaseP2 covers the remainder of the light cycle.
	PhaseP2 Phase = "P2"
)

// Phase breakpoints in minutes since lights-on. The P2 window assumes a
// nominal 12-hour cycle (12h - P1 - GAP - ramp = 8h); shorter cycles simply
// skip the tail of P2 shots for that day.
const (
	RampUpMinutes   = 60.0
	P1WindowMinutes = 105.0
	P1EndMinutes    = RampUpMinutes + P1WindowMinutes // 165
	GapMinutes      = 60.0
	P2StartMinutes  = P1EndMinutes + GapMinutes // 225
	P2WindowMinutes = 480.0
)

// Classify maps minutes since lights-on to a phase.
func Classify(elapsedMin float64) Phase {
	switch {
	case elapsedMin < RampUpMinutes:
		return PhaseRampUp
	case elapsedMin < P1EndMinutes:
		return PhaseP1
	case elapsedMin < P2StartMinutes:
		return PhaseGap
	default:
		return PhaseP2
	}
}

// FiresShots reports whether any shots may fire in the phase.
func (p Phase) FiresShots() bool {
	return p == PhaseP1 || p == PhaseP2
}
