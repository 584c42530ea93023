package lightcycle

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/ha"
)

func fixedRoom(on, off string) *models.Room {
	return &models.Room{
		ID:               "r1",
		Name:             "Room 1",
		Enabled:          true,
		UseFixedSchedule: true,
		LightsOnTime:     on,
		LightsOffTime:    off,
	}
}

func entityRoom(entity string) *models.Room {
	return &models.Room{
		ID:           "r1",
		Name:         "Room 1",
		Enabled:      true,
		LightsEntity: entity,
	}
}

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 15, hour, min, 0, 0, time.UTC)
}

func TestIsLightsOnFixedSchedule(t *testing.T) {
	r := NewResolver(ha.NewFake())
	ctx := context.Background()

	tests := []struct {
		name string
		room *models.Room
		now  time.Time
		want bool
	}{
		{"daytime window, morning", fixedRoom("06:00", "18:00"), at(8, 10), true},
		{"daytime window, before on", fixedRoom("06:00", "18:00"), at(5, 59), false},
		{"daytime window, at on", fixedRoom("06:00", "18:00"), at(6, 0), true},
		{"daytime window, at off", fixedRoom("06:00", "18:00"), at(18, 0), false},
		{"overnight window, late evening", fixedRoom("20:00", "08:00"), at(23, 30), true},
		{"overnight window, early morning", fixedRoom("20:00", "08:00"), at(3, 0), true},
		{"overnight window, midday", fixedRoom("20:00", "08:00"), at(12, 0), false},
		{"malformed on time", fixedRoom("6am", "18:00"), at(12, 0), false},
		{"malformed off time", fixedRoom("06:00", ""), at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsLightsOn(ctx, tt.room, tt.now); got != tt.want {
				t.Errorf("IsLightsOn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMinutesSinceLightsOnFixed(t *testing.T) {
	r := NewResolver(ha.NewFake())
	ctx := context.Background()

	// 06:00 on, now 08:10 -> 130 minutes, phase P1 territory.
	got, err := r.MinutesSinceLightsOn(ctx, fixedRoom("06:00", "18:00"), at(8, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-130) > 1e-9 {
		t.Errorf("elapsed = %v, want 130", got)
	}

	// Overnight: lights on 20:00, now 03:00 -> anchor rolls back one day, 420 minutes.
	got, err = r.MinutesSinceLightsOn(ctx, fixedRoom("20:00", "08:00"), at(3, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-420) > 1e-9 {
		t.Errorf("elapsed = %v, want 420", got)
	}
}

func TestMinutesSinceLightsOnFixedMalformed(t *testing.T) {
	r := NewResolver(ha.NewFake())
	_, err := r.MinutesSinceLightsOn(context.Background(), fixedRoom("nope", "18:00"), at(8, 0))
	if !errors.Is(err, ErrUnknown) {
		t.Errorf("err = %v, want ErrUnknown", err)
	}
}

func TestIsLightsOnEntityDriven(t *testing.T) {
	fake := ha.NewFake()
	r := NewResolver(fake)
	ctx := context.Background()
	room := entityRoom("light.veg_room")

	// Unavailable entity reads as off: never fire on ambiguous data.
	if r.IsLightsOn(ctx, room, at(12, 0)) {
		t.Error("unavailable light entity should read as off")
	}

	fake.SetState("light.veg_room", "on", "2025-06-15T10:00:00+00:00")
	if !r.IsLightsOn(ctx, room, at(12, 0)) {
		t.Error("light entity on should read as on")
	}

	fake.SetState("light.veg_room", "off", "2025-06-15T10:00:00+00:00")
	if r.IsLightsOn(ctx, room, at(12, 0)) {
		t.Error("light entity off should read as off")
	}
}

func TestMinutesSinceLightsOnEntityDriven(t *testing.T) {
	fake := ha.NewFake()
	r := NewResolver(fake)
	ctx := context.Background()
	room := entityRoom("light.veg_room")

	fake.SetState("light.veg_room", "on", "2025-06-15T10:00:00+00:00")
	got, err := r.MinutesSinceLightsOn(ctx, room, at(12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-120) > 1e-9 {
		t.Errorf("elapsed = %v, want 120", got)
	}

	// Fractional seconds with explicit offset, as Home Assistant emits.
	fake.SetState("light.veg_room", "on", "2025-06-15T11:30:00.123456+00:00")
	got, err = r.MinutesSinceLightsOn(ctx, room, at(12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < 29 || got > 30 {
		t.Errorf("elapsed = %v, want ~29.99", got)
	}
}

func TestMinutesSinceLightsOnEntityUnknown(t *testing.T) {
	fake := ha.NewFake()
	r := NewResolver(fake)
	ctx := context.Background()
	room := entityRoom("light.veg_room")

	// Unavailable entity: Unknown, never "0 minutes ago".
	if _, err := r.MinutesSinceLightsOn(ctx, room, at(12, 0)); !errors.Is(err, ErrUnknown) {
		t.Errorf("unavailable: err = %v, want ErrUnknown", err)
	}

	// Missing last_changed.
	fake.SetState("light.veg_room", "on", "")
	if _, err := r.MinutesSinceLightsOn(ctx, room, at(12, 0)); !errors.Is(err, ErrUnknown) {
		t.Errorf("missing last_changed: err = %v, want ErrUnknown", err)
	}

	// Unparsable last_changed.
	fake.SetState("light.veg_room", "on", "yesterday-ish")
	if _, err := r.MinutesSinceLightsOn(ctx, room, at(12, 0)); !errors.Is(err, ErrUnknown) {
		t.Errorf("bad last_changed: err = %v, want ErrUnknown", err)
	}
}
