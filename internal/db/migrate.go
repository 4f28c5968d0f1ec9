package db

import (
	"fmt"

	"github.com/Jack-Gledhill/bugbot/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model bugbot persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.Report{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
