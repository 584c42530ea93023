package repositories

import (
	"context"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
)

// RoomRepository handles room and zone configuration data access.
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new RoomRepository.
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindAll returns all rooms with their zones in position order.
func (r *RoomRepository) FindAll(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	result := r.db.WithContext(ctx).
		Preload("Zones", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at ASC").
		Find(&rooms)
	return rooms, result.Error
}

// FindByID returns a room by ID with its zones, or nil when not found.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	result := r.db.WithContext(ctx).
		Preload("Zones", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&room, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &room, nil
}

// Create inserts a room and its zones, assigning IDs where missing.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = cuid.New()
	}
	for i := range room.Zones {
		if room.Zones[i].ID == "" {
			room.Zones[i].ID = cuid.New()
		}
		room.Zones[i].RoomID = room.ID
		room.Zones[i].Position = i
	}
	return r.db.WithContext(ctx).Create(room).Error
}

// Update replaces a room's fields and zone list.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", room.ID).Delete(&models.Zone{}).Error; err != nil {
			return err
		}
		for i := range room.Zones {
			if room.Zones[i].ID == "" {
				room.Zones[i].ID = cuid.New()
			}
			room.Zones[i].RoomID = room.ID
			room.Zones[i].Position = i
		}
		return tx.Save(room).Error
	})
}

// Delete removes a room and its zones.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&models.Zone{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, "id = ?", id).Error
	})
}

// ReplaceAll swaps the entire configuration for the given set of rooms.
// The API saves configuration as a unit, so partial failures roll back.
func (r *RoomRepository) ReplaceAll(ctx context.Context, rooms []models.Room) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Zone{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.Room{}).Error; err != nil {
			return err
		}
		for i := range rooms {
			room := &rooms[i]
			if room.ID == "" {
				room.ID = cuid.New()
			}
			for j := range room.Zones {
				if room.Zones[j].ID == "" {
					room.Zones[j].ID = cuid.New()
				}
				room.Zones[j].RoomID = room.ID
				room.Zones[j].Position = j
			}
			if err := tx.Create(room).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
