// Package lightcycle resolves a room's light-cycle state: whether lights are
// on right now and how many minutes ago the current lights-on period began.
// The light cycle is the scheduler's master clock, so ambiguous data must
// resolve to "off" / "unknown", never to "just turned on".
package lightcycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/ha"
)

// ErrUnknown is returned when elapsed time cannot be determined. Callers
// treat it as "not due yet"; interpreting it as zero elapsed minutes would
// force a false daily reset and double-fire shots.
var ErrUnknown = errors.New("lightcycle: elapsed time unknown")

// Resolver answers light-cycle queries for rooms, consulting Home Assistant
// for entity-driven schedules.
type Resolver struct {
	ha ha.Client
}

// NewResolver creates a resolver backed by the given platform client.
func NewResolver(client ha.Client) *Resolver {
	return &Resolver{ha: client}
}

// IsLightsOn reports whether the room's lights are currently on.
// Unreachable or malformed data reads as off.
func (r *Resolver) IsLightsOn(ctx context.Context, room *models.Room, now time.Time) bool {
	if room.UseFixedSchedule {
		onMin, err := parseClock(room.LightsOnTime)
		if err != nil {
			return false
		}
		offMin, err := parseClock(room.LightsOffTime)
		if err != nil {
			return false
		}
		nowMin := now.Hour()*60 + now.Minute()
		if onMin < offMin {
			return onMin <= nowMin && nowMin < offMin
		}
		// Window wraps midnight: on later than off.
		return nowMin >= onMin || nowMin < offMin
	}

	state, err := r.ha.GetEntityState(ctx, room.LightsEntity)
	if err != nil {
		return false
	}
	return state.State == "on"
}

// MinutesSinceLightsOn returns the minutes elapsed since the most recent
// lights-on transition.
func (r *Resolver) MinutesSinceLightsOn(ctx context.Context, room *models.Room, now time.Time) (float64, error) {
	if room.UseFixedSchedule {
		onMin, err := parseClock(room.LightsOnTime)
		if err != nil {
			return 0, fmt.Errorf("%w: bad lights-on time %q", ErrUnknown, room.LightsOnTime)
		}
		onAt := time.Date(now.Year(), now.Month(), now.Day(), onMin/60, onMin%60, 0, 0, now.Location())
		if onAt.After(now) {
			onAt = onAt.AddDate(0, 0, -1)
		}
		return now.Sub(onAt).Minutes(), nil
	}

	state, err := r.ha.GetEntityState(ctx, room.LightsEntity)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	if state.LastChanged == "" {
		return 0, fmt.Errorf("%w: no last_changed for %s", ErrUnknown, room.LightsEntity)
	}
	changed, err := time.Parse(time.RFC3339, state.LastChanged)
	if err != nil {
		// Home Assistant emits fractional seconds with an explicit offset.
		changed, err = time.Parse("2006-01-02T15:04:05.999999999Z07:00", state.LastChanged)
		if err != nil {
			return 0, fmt.Errorf("%w: bad last_changed %q", ErrUnknown, state.LastChanged)
		}
	}
	return now.Sub(changed).Minutes(), nil
}

// parseClock parses "HH:MM" into minutes past midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time out of range %q", s)
	}
	return h*60 + m, nil
}
