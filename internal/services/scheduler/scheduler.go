// Package scheduler drives the irrigation phase scheduler: a tick loop that
// evaluates every room's light cycle and fires due shots through per-room
// workers, and a slower polling loop that records sensor history.
package scheduler

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/goatboynz/ha-WaterME/internal/clock"
	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/database/repositories"
	"github.com/goatboynz/ha-WaterME/internal/ha"
	"github.com/goatboynz/ha-WaterME/internal/services/lightcycle"
	"github.com/goatboynz/ha-WaterME/internal/services/pubsub"
	"github.com/goatboynz/ha-WaterME/internal/services/schedule"
	"github.com/goatboynz/ha-WaterME/internal/services/sequencer"
)

// Errors surfaced to the control API.
var (
	ErrZoneNotFound = errors.New("scheduler: zone not found")
	ErrRoomBusy     = errors.New("scheduler: a shot is already running for this room")
	ErrKillSwitch   = errors.New("scheduler: kill switch is active")
)

// resetWindowMinutes is the width of the window after a lights-on transition
// in which the daily counters are reset. Wide enough that a 30s tick cannot
// miss it, narrow enough that "still on from before" never lands inside it.
const resetWindowMinutes = 2.0

// ZoneRuntime holds a zone's per-cycle state. It lives in scheduler memory
// only and is rebuilt from zero after a restart.
type ZoneRuntime struct {
	ShotsToday      int        `json:"shotsToday"`
	LastShotTime    *time.Time `json:"lastShotTime"`
	NextEventTime   *time.Time `json:"nextEventTime"`
	CurrentMoisture *float64   `json:"currentMoisture"`
	CurrentEc       *float64   `json:"currentEc"`
}

// roomRuntime is the per-room arbitration state. Only the tick loop and the
// room's own worker touch it, always under the service mutex.
type roomRuntime struct {
	lastZoneRunTime *time.Time
	firing          bool
	resetDone       bool
}

// Service is the scheduler instance. One per process, constructed in main
// and shared with the control API.
type Service struct {
	mu sync.RWMutex

	ha        ha.Client
	clock     clock.Clock
	resolver  *lightcycle.Resolver
	sequencer *sequencer.Sequencer
	rooms     *repositories.RoomRepository
	history   *repositories.HistoryRepository
	sensors   *repositories.SensorRepository
	bus       *pubsub.PubSub

	tickInterval time.Duration
	pollInterval time.Duration

	zoneStates map[string]*ZoneRuntime
	roomStates map[string]*roomRuntime

	killSwitch bool
	running    bool
	stopChan   chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	TickInterval time.Duration
	PollInterval time.Duration
}

// New creates a scheduler service.
func New(cfg Config, client ha.Client, clk clock.Clock, rooms *repositories.RoomRepository,
	history *repositories.HistoryRepository, sensors *repositories.SensorRepository, bus *pubsub.PubSub) *Service {

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 30 * time.Second
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Minute
	}

	return &Service{
		ha:           client,
		clock:        clk,
		resolver:     lightcycle.NewResolver(client),
		sequencer:    sequencer.New(client, clk),
		rooms:        rooms,
		history:      history,
		sensors:      sensors,
		bus:          bus,
		tickInterval: tick,
		pollInterval: poll,
		zoneStates:   make(map[string]*ZoneRuntime),
		roomStates:   make(map[string]*roomRuntime),
		stopChan:     make(chan struct{}),
	}
}

// Start launches the tick and polling loops.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.tickLoop()
	go s.pollLoop()
	log.Println("Scheduler started")
}

// Stop stops both loops. In-flight shots abort through their done channel
// and run their own safety-off sweep.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()
	log.Println("Scheduler stopped")
}

// IsRunning returns whether the loops are active.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SetKillSwitch toggles the global kill switch. Activation suspends all
// evaluation and immediately forces every configured actuator off.
func (s *Service) SetKillSwitch(active bool) {
	s.mu.Lock()
	changed := s.killSwitch != active
	s.killSwitch = active
	s.mu.Unlock()

	if active {
		s.emergencyStop()
	}
	if changed {
		s.bus.Publish(pubsub.TopicKillSwitch, pubsub.KillSwitch{
			Timestamp: s.clock.Now(),
			Active:    active,
		})
	}
}

// KillSwitchActive reports the kill switch state.
func (s *Service) KillSwitchActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.killSwitch
}

// emergencyStop force-closes every configured pump and valve, one off-command
// per distinct actuator even when zones share hardware.
func (s *Service) emergencyStop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rooms, err := s.rooms.FindAll(ctx)
	if err != nil {
		log.Printf("Emergency stop: config load failed: %v", err)
		return
	}

	seen := make(map[string]bool)
	for _, room := range rooms {
		for _, zone := range room.Zones {
			for _, entity := range []string{zone.PumpEntity, zone.ValveEntity} {
				if entity == "" || seen[entity] {
					continue
				}
				seen[entity] = true
				if err := s.ha.TurnOff(ctx, entity); err != nil {
					log.Printf("Emergency stop: %s: %v", entity, err)
				}
			}
		}
	}
	log.Printf("Emergency stop: %d actuators forced off", len(seen))
}

// FireManualShot fires a shot for the given zone with an explicit duration,
// bypassing phase and due checks but not room arbitration. A non-positive
// duration falls back to the zone's P1 shot duration.
func (s *Service) FireManualShot(ctx context.Context, roomID, zoneID string, durationSec float64) error {
	if s.KillSwitchActive() {
		return ErrKillSwitch
	}

	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrZoneNotFound
	}
	for i := range room.Zones {
		zone := room.Zones[i]
		if zone.ID != zoneID {
			continue
		}
		if durationSec <= 0 {
			durationSec = zone.P1VolumeSec
		}
		if !s.dispatch(room.Name, zone, durationSec, models.PhaseTagManual) {
			return ErrRoomBusy
		}
		return nil
	}
	return ErrZoneNotFound
}

// tickLoop is the phase evaluation loop. A failed pass never stops the loop.
func (s *Service) tickLoop() {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	// Backoff while the platform is unreachable, reset on recovery.
	unreachable := backoff.NewExponentialBackOff()
	unreachable.InitialInterval = s.tickInterval
	unreachable.MaxInterval = 5 * time.Minute
	unreachable.MaxElapsedTime = 0

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if s.KillSwitchActive() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.tickInterval)
			if !s.ha.IsReachable(ctx) {
				cancel()
				wait := unreachable.NextBackOff()
				log.Printf("Platform unreachable, backing off %s", wait)
				if !s.clock.Sleep(wait, s.stopChan) {
					return
				}
				continue
			}
			unreachable.Reset()
			s.evaluate(ctx, s.clock.Now())
			cancel()
		}
	}
}

// evaluate runs one pass over all enabled rooms. Each room is isolated: an
// error in one room's evaluation never aborts the others.
func (s *Service) evaluate(ctx context.Context, now time.Time) {
	rooms, err := s.rooms.FindAll(ctx)
	if err != nil {
		log.Printf("Scheduler tick: config load failed: %v", err)
		return
	}
	for i := range rooms {
		room := &rooms[i]
		if !room.Enabled {
			continue
		}
		s.evaluateRoom(ctx, room, now)
	}
}

// evaluateRoom runs the per-room pass: sensor display refresh, daily reset,
// stagger gate, phase classification and shot dispatch.
func (s *Service) evaluateRoom(ctx context.Context, room *models.Room, now time.Time) {
	s.refreshLiveReadings(ctx, room)

	rs := s.roomState(room.ID)

	if !s.resolver.IsLightsOn(ctx, room, now) {
		// Lights off: clear predictions and re-arm the daily reset.
		s.mu.Lock()
		for i := range room.Zones {
			s.zoneStateLocked(room.Zones[i].ID).NextEventTime = nil
		}
		rs.resetDone = false
		s.mu.Unlock()
		return
	}

	elapsed, err := s.resolver.MinutesSinceLightsOn(ctx, room, now)
	if err != nil {
		// Unknown elapsed time is "not due yet", never "just turned on".
		log.Printf("Room %s: %v", room.Name, err)
		return
	}

	s.applyDailyReset(room, rs, elapsed)

	s.mu.Lock()
	if rs.firing {
		s.mu.Unlock()
		return
	}
	if rs.lastZoneRunTime != nil && len(room.Zones) > 0 {
		stagger := time.Duration(room.Zones[0].StaggerMinutes) * time.Minute
		if now.Sub(*rs.lastZoneRunTime) < stagger {
			s.mu.Unlock()
			return
		}
	}
	s.mu.Unlock()

	phase := schedule.Classify(elapsed)
	if !phase.FiresShots() {
		return
	}

	for i := range room.Zones {
		zone := room.Zones[i]
		if !zone.Enabled {
			continue
		}

		s.mu.Lock()
		zs := s.zoneStateLocked(zone.ID)
		plan := schedule.PlanShot(&zone, phase, elapsed, zs.ShotsToday)
		if plan.Eligible {
			next := now.Add(time.Duration(plan.WaitMin * float64(time.Minute)))
			zs.NextEventTime = &next
		}
		s.mu.Unlock()

		if plan.Eligible && plan.Due {
			s.dispatch(room.Name, zone, plan.DurationSec, plan.PhaseTag)
			// First due zone in room order wins the tick; the rest wait
			// for the stagger interval to elapse.
			break
		}
	}
}

// applyDailyReset zeroes the per-cycle counters once per lights-on
// transition. The resetDone flag makes re-evaluation inside the window
// idempotent; it re-arms once elapsed leaves the window or lights go off.
func (s *Service) applyDailyReset(room *models.Room, rs *roomRuntime, elapsed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elapsed >= resetWindowMinutes {
		rs.resetDone = false
		return
	}
	if elapsed < 0 || rs.resetDone {
		return
	}
	for i := range room.Zones {
		zs := s.zoneStateLocked(room.Zones[i].ID)
		zs.ShotsToday = 0
		zs.LastShotTime = nil
		zs.NextEventTime = nil
	}
	rs.lastZoneRunTime = nil
	rs.resetDone = true
	log.Printf("Room %s: daily counters reset", room.Name)
}

// dispatch hands a shot to the room's worker. Returns false when a shot is
// already in flight for the room. The cooldown anchor is claimed before any
// actuation so a crash mid-sequence still enforces the stagger.
func (s *Service) dispatch(roomName string, zone models.Zone, durationSec float64, phaseTag string) bool {
	s.mu.Lock()
	rs := s.roomStateLocked(zone.RoomID)
	if rs.firing {
		s.mu.Unlock()
		return false
	}
	rs.firing = true
	started := s.clock.Now()
	rs.lastZoneRunTime = &started
	done := s.stopChan
	s.mu.Unlock()

	log.Printf("Firing %s shot: room=%s zone=%s duration=%.1fs", phaseTag, roomName, zone.Name, durationSec)

	go func() {
		defer func() {
			s.mu.Lock()
			rs.firing = false
			s.mu.Unlock()
		}()
		s.runShot(roomName, zone, durationSec, phaseTag, done)
	}()
	return true
}

// runShot executes the sequence and records the outcome. A failed sequence
// leaves the counters untouched so the zone stays eligible for a retry.
func (s *Service) runShot(roomName string, zone models.Zone, durationSec float64, phaseTag string, done <-chan struct{}) {
	ctx := context.Background()

	if err := s.sequencer.Run(ctx, &zone, durationSec, done); err != nil {
		log.Printf("Shot failed: room=%s zone=%s: %v", roomName, zone.Name, err)
		return
	}

	completed := s.clock.Now()
	s.mu.Lock()
	zs := s.zoneStateLocked(zone.ID)
	zs.ShotsToday++
	zs.LastShotTime = &completed
	s.mu.Unlock()

	totalMl, perPlantMl := schedule.Volume(&zone, durationSec)
	event := models.ShotEvent{
		Timestamp:   completed,
		RoomName:    roomName,
		ZoneName:    zone.Name,
		Phase:       phaseTag,
		DurationSec: durationSec,
		TotalMl:     totalMl,
		PerPlantMl:  perPlantMl,
	}
	if err := s.history.Append(ctx, &event); err != nil {
		log.Printf("History append failed: %v", err)
	}

	s.bus.Publish(pubsub.TopicShotFired, pubsub.ShotFired{
		Timestamp:   completed,
		RoomName:    roomName,
		ZoneName:    zone.Name,
		Phase:       phaseTag,
		DurationSec: durationSec,
		TotalMl:     totalMl,
		PerPlantMl:  perPlantMl,
	})
}

// refreshLiveReadings updates the dashboard moisture/EC values, best-effort.
// A malformed or missing reading leaves the previous cached value.
func (s *Service) refreshLiveReadings(ctx context.Context, room *models.Room) {
	for i := range room.Zones {
		zone := room.Zones[i]
		if zone.MoistureEntity != "" {
			if v, ok := s.readSensor(ctx, zone.MoistureEntity); ok {
				s.mu.Lock()
				s.zoneStateLocked(zone.ID).CurrentMoisture = &v
				s.mu.Unlock()
			}
		}
		if zone.EcEntity != "" {
			if v, ok := s.readSensor(ctx, zone.EcEntity); ok {
				s.mu.Lock()
				s.zoneStateLocked(zone.ID).CurrentEc = &v
				s.mu.Unlock()
			}
		}
	}
}

func (s *Service) readSensor(ctx context.Context, entityID string) (float64, bool) {
	state, err := s.ha.GetEntityState(ctx, entityID)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(state.State, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// pollLoop records moisture/EC history on the slow interval.
func (s *Service) pollLoop() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.pollInterval)
			s.pollSensors(ctx)
			cancel()
		}
	}
}

// pollSensors appends one point per configured sensor. Individual failures
// are skipped; the series just gets a gap.
func (s *Service) pollSensors(ctx context.Context) {
	rooms, err := s.rooms.FindAll(ctx)
	if err != nil {
		log.Printf("Sensor poll: config load failed: %v", err)
		return
	}
	now := s.clock.Now()
	for _, room := range rooms {
		for _, zone := range room.Zones {
			for _, entity := range []string{zone.MoistureEntity, zone.EcEntity} {
				if entity == "" {
					continue
				}
				v, ok := s.readSensor(ctx, entity)
				if !ok {
					continue
				}
				if err := s.sensors.Append(ctx, entity, v, now); err != nil {
					log.Printf("Sensor poll: append %s: %v", entity, err)
					continue
				}
				s.bus.Publish(pubsub.TopicSensorReading, pubsub.SensorReading{
					Timestamp: now,
					EntityID:  entity,
					Value:     v,
				})
			}
		}
	}
}

// roomState returns the room's runtime state, creating it on first use.
func (s *Service) roomState(roomID string) *roomRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomStateLocked(roomID)
}

func (s *Service) roomStateLocked(roomID string) *roomRuntime {
	rs, ok := s.roomStates[roomID]
	if !ok {
		rs = &roomRuntime{}
		s.roomStates[roomID] = rs
	}
	return rs
}

func (s *Service) zoneStateLocked(zoneID string) *ZoneRuntime {
	zs, ok := s.zoneStates[zoneID]
	if !ok {
		zs = &ZoneRuntime{}
		s.zoneStates[zoneID] = zs
	}
	return zs
}

// ZoneState returns a copy of a zone's runtime state.
func (s *Service) ZoneState(zoneID string) ZoneRuntime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if zs, ok := s.zoneStates[zoneID]; ok {
		return *zs
	}
	return ZoneRuntime{}
}

// RoomLastRun returns the room's cooldown anchor, nil when none.
func (s *Service) RoomLastRun(roomID string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rs, ok := s.roomStates[roomID]; ok && rs.lastZoneRunTime != nil {
		t := *rs.lastZoneRunTime
		return &t
	}
	return nil
}

// RoomFiring reports whether a shot is in flight for the room.
func (s *Service) RoomFiring(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rs, ok := s.roomStates[roomID]; ok {
		return rs.firing
	}
	return false
}
