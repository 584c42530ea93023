package schedule

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		elapsed float64
		want    Phase
	}{
		{"lights just on", 0, PhaseRampUp},
		{"late ramp", 59.9, PhaseRampUp},
		{"p1 start boundary", 60, PhaseP1},
		{"mid p1", 130, PhaseP1},
		{"last p1 minute", 164.9, PhaseP1},
		{"gap start boundary", 165, PhaseGap},
		{"mid gap", 200, PhaseGap},
		{"p2 start boundary", 225, PhaseP2},
		{"deep into p2", 700, PhaseP2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.elapsed); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestPhaseFiresShots(t *testing.T) {
	if PhaseRampUp.FiresShots() {
		t.Error("RAMP_UP must not fire shots")
	}
	if PhaseGap.FiresShots() {
		t.Error("GAP must not fire shots")
	}
	if !PhaseP1.FiresShots() {
		t.Error("P1 should fire shots")
	}
	if !PhaseP2.FiresShots() {
		t.Error("P2 should fire shots")
	}
}

// No elapsed time inside RAMP_UP or GAP may ever produce a due shot,
// whatever the zone configuration.
func TestNoShotsOutsideActivePhases(t *testing.T) {
	zone := testZone()
	for _, elapsed := range []float64{0, 10, 59.9, 165, 180, 224.9} {
		phase := Classify(elapsed)
		if phase.FiresShots() {
			continue
		}
		plan := PlanShot(zone, phase, elapsed, 0)
		if plan.Due || plan.Eligible {
			t.Errorf("elapsed %v (phase %v): plan should be empty, got %+v", elapsed, phase, plan)
		}
	}
}
