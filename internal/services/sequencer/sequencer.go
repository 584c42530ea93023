// Package sequencer executes the physical actuation sequence for a single
// irrigation shot. The sequence is strictly ordered and fail-safe: no exit
// path may leave the pump or valve energized.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/goatboynz/ha-WaterME/internal/clock"
	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/ha"
)

// ErrAborted is returned when the shot was cut short by shutdown or the
// kill switch. The safety-off sweep has already run when it is returned.
var ErrAborted = errors.New("sequencer: shot aborted")

// Sequencer drives pump and valve actuators through the platform client.
type Sequencer struct {
	ha    ha.Client
	clock clock.Clock
}

// New creates a sequencer.
func New(client ha.Client, clk clock.Clock) *Sequencer {
	return &Sequencer{ha: client, clock: clk}
}

// Run executes one shot for the zone:
//
//	pump on -> (valve delay, valve on) -> dwell -> (valve off, valve delay) -> pump off
//
// The valve steps apply only when the zone has a valve; the pump pressurizes
// the line before the valve opens, and the trailing delay lets it drain down
// before the pump stops. On any failure, and on early abort via done, both
// actuators are forced off best-effort before the error is returned.
func (s *Sequencer) Run(ctx context.Context, zone *models.Zone, durationSec float64, done <-chan struct{}) error {
	valveDelay := time.Duration(zone.ValveDelayMs) * time.Millisecond
	dwell := time.Duration(durationSec * float64(time.Second))

	if err := s.ha.TurnOn(ctx, zone.PumpEntity); err != nil {
		s.safetyOff(zone)
		return fmt.Errorf("pump on for %s: %w", zone.Name, err)
	}

	if zone.HasValve() {
		if !s.clock.Sleep(valveDelay, done) {
			s.safetyOff(zone)
			return ErrAborted
		}
		if err := s.ha.TurnOn(ctx, zone.ValveEntity); err != nil {
			s.safetyOff(zone)
			return fmt.Errorf("valve on for %s: %w", zone.Name, err)
		}
	}

	if !s.clock.Sleep(dwell, done) {
		s.safetyOff(zone)
		return ErrAborted
	}

	if zone.HasValve() {
		if err := s.ha.TurnOff(ctx, zone.ValveEntity); err != nil {
			s.safetyOff(zone)
			return fmt.Errorf("valve off for %s: %w", zone.Name, err)
		}
		if !s.clock.Sleep(valveDelay, done) {
			s.safetyOff(zone)
			return ErrAborted
		}
	}

	if err := s.ha.TurnOff(ctx, zone.PumpEntity); err != nil {
		s.safetyOff(zone)
		return fmt.Errorf("pump off for %s: %w", zone.Name, err)
	}

	return nil
}

// safetyOff forces valve then pump off, suppressing errors. The off service
// calls are idempotent, so re-sending them is always safe.
func (s *Sequencer) safetyOff(zone *models.Zone) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if zone.HasValve() {
		if err := s.ha.TurnOff(ctx, zone.ValveEntity); err != nil {
			log.Printf("safety off: valve %s: %v", zone.ValveEntity, err)
		}
	}
	if zone.PumpEntity != "" {
		if err := s.ha.TurnOff(ctx, zone.PumpEntity); err != nil {
			log.Printf("safety off: pump %s: %v", zone.PumpEntity, err)
		}
	}
}
