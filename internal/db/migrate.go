package db

import (
	"github.com/diewo77/go-quotes/internal/models"
	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for all models.
// Call this at application startup or as part of a migration step.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Auth & Authorization
		&models.Permission{},
		&models.Profile{},
		&models.User{},
		// Quote lifecycle
		&models.Customer{},
		&models.Quote{},
		&models.LineItem{},
		&models.ArtworkVersion{},
		&models.AuditLog{},
		&models.ActivityLog{},
	)
}

// Seed initializes the database with required seed data.
// Should be called after Migrate.
func Seed(db *gorm.DB) error {
	return SeedProfiles(db)
}
