// Package models contains the database model definitions.
// Rooms and zones are configuration entities edited through the API;
// shot events and sensor points are append-only records written by the
// scheduler.
package models

import (
	"time"
)

// Room represents a grow room whose zones share one hydraulic feed line.
// Table: rooms
type Room struct {
	ID      string `gorm:"column:id;primaryKey" json:"id"`
	Name    string `gorm:"column:name" json:"name"`
	Enabled bool   `gorm:"column:enabled;default:true" json:"enabled"`

	// Light schedule: either a fixed clock window or an external light entity.
	UseFixedSchedule bool   `gorm:"column:use_fixed_schedule;default:true" json:"useFixedSchedule"`
	LightsOnTime     string `gorm:"column:lights_on_time" json:"lightsOnTime"`  // "HH:MM"
	LightsOffTime    string `gorm:"column:lights_off_time" json:"lightsOffTime"` // "HH:MM"
	LightsEntity     string `gorm:"column:lights_entity" json:"lightsEntity"`   // entity-driven mode

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	// Zones ordered by position; the order is the tie-break priority when
	// several zones are due on the same tick.
	Zones []Zone `gorm:"foreignKey:RoomID" json:"zones"`
}

func (Room) TableName() string { return "rooms" }

// Zone represents one irrigation unit within a room.
// Table: zones
type Zone struct {
	ID       string `gorm:"column:id;primaryKey" json:"id"`
	RoomID   string `gorm:"column:room_id;index" json:"roomId"`
	Name     string `gorm:"column:name" json:"name"`
	Enabled  bool   `gorm:"column:enabled;default:true" json:"enabled"`
	Position int    `gorm:"column:position" json:"position"`

	// Actuators. PumpEntity is required; ValveEntity is optional (empty = none).
	PumpEntity  string `gorm:"column:pump_entity" json:"pumpEntity"`
	ValveEntity string `gorm:"column:valve_entity" json:"valveEntity"`

	// Shot targets and durations per phase.
	P1Shots     int     `gorm:"column:p1_shots;default:0" json:"p1Shots"`
	P2Shots     int     `gorm:"column:p2_shots;default:0" json:"p2Shots"`
	P1VolumeSec float64 `gorm:"column:p1_volume_sec;default:0" json:"p1VolumeSec"`
	P2VolumeSec float64 `gorm:"column:p2_volume_sec;default:0" json:"p2VolumeSec"`

	// ValveDelayMs is the pump-pressurize delay before the valve opens and
	// the drain-down delay after it closes.
	ValveDelayMs   int `gorm:"column:valve_delay_ms;default:2000" json:"valveDelayMs"`
	StaggerMinutes int `gorm:"column:stagger_minutes;default:3" json:"staggerMinutes"`

	// Dripper geometry for volume derivation.
	DripperRateLph   float64 `gorm:"column:dripper_rate_lph;default:2" json:"dripperRateLph"`
	DrippersPerZone  int     `gorm:"column:drippers_per_zone;default:1" json:"drippersPerZone"`
	DrippersPerPlant int     `gorm:"column:drippers_per_plant;default:1" json:"drippersPerPlant"`

	// Optional sensors, recorded for display and history only.
	MoistureEntity string `gorm:"column:moisture_entity" json:"moistureEntity"`
	EcEntity       string `gorm:"column:ec_entity" json:"ecEntity"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Zone) TableName() string { return "zones" }

// HasValve reports whether the zone has a valve configured.
func (z *Zone) HasValve() bool { return z.ValveEntity != "" }

// ShotTarget returns the total number of shots expected in one light cycle.
func (z *Zone) ShotTarget() int { return z.P1Shots + z.P2Shots }

// ShotEvent is an immutable history record of one completed shot.
// Table: shot_events
type ShotEvent struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Timestamp   time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	RoomName    string    `gorm:"column:room_name" json:"roomName"`
	ZoneName    string    `gorm:"column:zone_name" json:"zoneName"`
	Phase       string    `gorm:"column:phase" json:"phase"` // P1, P2 or Manual
	DurationSec float64   `gorm:"column:duration_sec" json:"durationSec"`
	TotalMl     float64   `gorm:"column:total_ml" json:"totalMl"`
	PerPlantMl  float64   `gorm:"column:per_plant_ml" json:"perPlantMl"`
}

func (ShotEvent) TableName() string { return "shot_events" }

// SensorPoint is one scalar reading for a sensor entity.
// Table: sensor_points
type SensorPoint struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	EntityID  string    `gorm:"column:entity_id;index" json:"entityId"`
	Timestamp time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	Value     float64   `gorm:"column:value" json:"value"`
}

func (SensorPoint) TableName() string { return "sensor_points" }

// Phase tags recorded on shot events.
const (
	PhaseTagP1     = "P1"
	PhaseTagP2     = "P2"
	PhaseTagManual = "Manual"
)
