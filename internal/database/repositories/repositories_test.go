package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/database/repositories"
	"github.com/goatboynz/ha-WaterME/internal/services/testutil"
)

func TestRoomRepositoryCreateAndFind(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	room := &models.Room{
		Name:             testutil.UniqueRoomName("veg"),
		Enabled:          true,
		UseFixedSchedule: true,
		LightsOnTime:     "06:00",
		LightsOffTime:    "18:00",
		Zones: []models.Zone{
			{Name: "Zone B", PumpEntity: "switch.pump", P1Shots: 5},
			{Name: "Zone A", PumpEntity: "switch.pump", P1Shots: 3},
		},
	}
	require.NoError(t, testDB.RoomRepo.Create(ctx, room))
	assert.NotEmpty(t, room.ID, "Create should assign an ID")
	assert.NotEmpty(t, room.Zones[0].ID)

	found, err := testDB.RoomRepo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, room.Name, found.Name)
	require.Len(t, found.Zones, 2)

	// Zones come back in the order they were configured, not alphabetically.
	assert.Equal(t, "Zone B", found.Zones[0].Name)
	assert.Equal(t, "Zone A", found.Zones[1].Name)
}

func TestRoomRepositoryFindByIDNotFound(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	found, err := testDB.RoomRepo.FindByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRoomRepositoryUpdateReplacesZones(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	room := &models.Room{
		Name:    testutil.UniqueRoomName("veg"),
		Enabled: true,
		Zones: []models.Zone{
			{Name: "Old Zone", PumpEntity: "switch.pump"},
		},
	}
	require.NoError(t, testDB.RoomRepo.Create(ctx, room))
	oldZoneID := room.Zones[0].ID

	room.Name = "Renamed"
	room.Zones = []models.Zone{
		{Name: "New Zone 1", PumpEntity: "switch.pump"},
		{Name: "New Zone 2", PumpEntity: "switch.pump2"},
	}
	require.NoError(t, testDB.RoomRepo.Update(ctx, room))

	found, err := testDB.RoomRepo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Renamed", found.Name)
	require.Len(t, found.Zones, 2)
	for _, z := range found.Zones {
		assert.NotEqual(t, oldZoneID, z.ID, "old zones should be gone")
	}
}

func TestRoomRepositoryDelete(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	room := &models.Room{
		Name:  testutil.UniqueRoomName("veg"),
		Zones: []models.Zone{{Name: "Zone", PumpEntity: "switch.pump"}},
	}
	require.NoError(t, testDB.RoomRepo.Create(ctx, room))
	require.NoError(t, testDB.RoomRepo.Delete(ctx, room.ID))

	found, err := testDB.RoomRepo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	var zoneCount int64
	testDB.DB.Model(&models.Zone{}).Count(&zoneCount)
	assert.Zero(t, zoneCount, "zones must be deleted with their room")
}

func TestRoomRepositoryReplaceAll(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, testDB.RoomRepo.Create(ctx, &models.Room{
		Name:  "Old Room",
		Zones: []models.Zone{{Name: "Old Zone", PumpEntity: "switch.old"}},
	}))

	replacement := []models.Room{
		{Name: "Room 1", Zones: []models.Zone{{Name: "Z1", PumpEntity: "switch.p1"}}},
		{Name: "Room 2", Zones: []models.Zone{
			{Name: "Z2", PumpEntity: "switch.p2"},
			{Name: "Z3", PumpEntity: "switch.p3"},
		}},
	}
	require.NoError(t, testDB.RoomRepo.ReplaceAll(ctx, replacement))

	rooms, err := testDB.RoomRepo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Room 1", rooms[0].Name)
	require.Len(t, rooms[1].Zones, 2)
	assert.Equal(t, 1, rooms[1].Zones[1].Position)
}

func TestHistoryRepositoryRetentionCap(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo := repositories.NewHistoryRepository(testDB.DB, 5)
	base := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		err := repo.Append(ctx, &models.ShotEvent{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			RoomName:    "Veg",
			ZoneName:    fmt.Sprintf("shot-%d", i),
			Phase:       models.PhaseTagP1,
			DurationSec: 10,
		})
		require.NoError(t, err)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count, "oldest entries beyond the cap are dropped")

	events, err := repo.FindRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, "shot-7", events[0].ZoneName, "newest first")
	assert.Equal(t, "shot-3", events[4].ZoneName, "shots 0-2 purged")
}

func TestHistoryRepositoryFindRecentLimit(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, testDB.HistoryRepo.Append(ctx, &models.ShotEvent{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			RoomName:  "Veg",
			ZoneName:  "Zone 1",
			Phase:     models.PhaseTagP2,
		}))
	}

	events, err := testDB.HistoryRepo.FindRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Non-positive limit falls back to the full cap.
	events, err = testDB.HistoryRepo.FindRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestSensorRepositoryRetentionWindow(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo := repositories.NewSensorRepository(testDB.DB, time.Hour)
	base := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, "sensor.moisture", 55.0, base))
	require.NoError(t, repo.Append(ctx, "sensor.moisture", 57.0, base.Add(30*time.Minute)))
	// This append moves the window past the first point.
	require.NoError(t, repo.Append(ctx, "sensor.moisture", 59.0, base.Add(90*time.Minute)))

	points, err := repo.FindSeries(ctx, "sensor.moisture")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 57.0, points[0].Value, "oldest first")
	assert.Equal(t, 59.0, points[1].Value)
}

func TestSensorRepositoryRetentionPerEntity(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo := repositories.NewSensorRepository(testDB.DB, time.Hour)
	base := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, "sensor.ec", 2.1, base))
	// A late append on a different entity must not purge sensor.ec history.
	require.NoError(t, repo.Append(ctx, "sensor.moisture", 55.0, base.Add(3*time.Hour)))

	points, err := repo.FindSeries(ctx, "sensor.ec")
	require.NoError(t, err)
	assert.Len(t, points, 1)
}
