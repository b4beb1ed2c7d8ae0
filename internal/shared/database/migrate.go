package database

import (
	"waitline/internal/events"
	"waitline/internal/participation"
	"waitline/internal/waitlist"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&events.Event{},
		&participation.Participation{},
		&waitlist.WaitEntry{},
	)
}
