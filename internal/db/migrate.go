package db

import (
	"fmt"

	"github.com/ktwhotel/concierge/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model the concierge persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.GuestOrder{},
		&models.SameDayItem{},
		&models.PendingGuest{},
		&models.Job{},
		&models.MessageLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
