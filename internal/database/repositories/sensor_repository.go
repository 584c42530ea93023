package repositories

import (
	"context"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
)

// SensorRepository handles per-sensor time series with a rolling retention window.
type SensorRepository struct {
	db        *gorm.DB
	retention time.Duration
}

// NewSensorRepository creates a new SensorRepository with the given retention window.
func NewSensorRepository(db *gorm.DB, retention time.Duration) *SensorRepository {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &SensorRepository{db: db, retention: retention}
}

// Append stores a reading and purges points older than the retention window
// for the same entity.
func (r *SensorRepository) Append(ctx context.Context, entityID string, value float64, at time.Time) error {
	point := models.SensorPoint{
		ID:        cuid.New(),
		EntityID:  entityID,
		Timestamp: at,
		Value:     value,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&point).Error; err != nil {
			return err
		}
		cutoff := at.Add(-r.retention)
		return tx.Where("entity_id = ? AND timestamp < ?", entityID, cutoff).
			Delete(&models.SensorPoint{}).Error
	})
}

// FindSeries returns all points for an entity within the retention window,
// oldest first for charting.
func (r *SensorRepository) FindSeries(ctx context.Context, entityID string) ([]models.SensorPoint, error) {
	var points []models.SensorPoint
	result := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("timestamp ASC").
		Find(&points)
	return points, result.Error
}
