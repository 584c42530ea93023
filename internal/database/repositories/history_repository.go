package repositories

import (
	"context"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
)

// HistoryRepository handles shot event history with bounded retention.
type HistoryRepository struct {
	db  *gorm.DB
	cap int
}

// NewHistoryRepository creates a new HistoryRepository keeping at most cap events.
func NewHistoryRepository(db *gorm.DB, cap int) *HistoryRepository {
	if cap <= 0 {
		cap = 500
	}
	return &HistoryRepository{db: db, cap: cap}
}

// Append stores a new shot event and silently drops the oldest entries
// beyond the retention cap.
func (r *HistoryRepository) Append(ctx context.Context, event *models.ShotEvent) error {
	if event.ID == "" {
		event.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.ShotEvent{}).Count(&count).Error; err != nil {
			return err
		}
		if count <= int64(r.cap) {
			return nil
		}
		// Delete everything older than the newest cap entries.
		sub := tx.Model(&models.ShotEvent{}).
			Select("id").
			Order("timestamp DESC").
			Limit(r.cap)
		return tx.Where("id NOT IN (?)", sub).Delete(&models.ShotEvent{}).Error
	})
}

// FindRecent returns up to limit events, newest first.
func (r *HistoryRepository) FindRecent(ctx context.Context, limit int) ([]models.ShotEvent, error) {
	if limit <= 0 || limit > r.cap {
		limit = r.cap
	}
	var events []models.ShotEvent
	result := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events)
	return events, result.Error
}

// Count returns the number of retained events.
func (r *HistoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ShotEvent{}).Count(&count)
	return count, result.Error
}
