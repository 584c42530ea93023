// Package testutil provides shared test utilities for integration tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/database/repositories"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB          *gorm.DB
	RoomRepo    *repositories.RoomRepository
	HistoryRepo *repositories.HistoryRepository
	SensorRepo  *repositories.SensorRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Room{},
		&models.Zone{},
		&models.ShotEvent{},
		&models.SensorPoint{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	testDB := &TestDB{
		DB:          db,
		RoomRepo:    repositories.NewRoomRepository(db),
		HistoryRepo: repositories.NewHistoryRepository(db, 500),
		SensorRepo:  repositories.NewSensorRepository(db, 24*time.Hour),
	}

	cleanup := func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}

	return testDB, cleanup
}

// UniqueRoomName generates a unique room name for testing.
func UniqueRoomName(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}
