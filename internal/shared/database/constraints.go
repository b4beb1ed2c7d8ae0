package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the constraints AutoMigrate cannot express
func MigrateConstraints(db *gorm.DB) error {
	// At most one WAITING or NOTIFIED entry per (event, user). Closed entries
	// are kept as history, so a plain unique index would not do.
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_waitlist_active_entry
		ON waitlist_entries (event_id, user_id)
		WHERE status IN ('WAITING', 'NOTIFIED');
	`).Error
	if err != nil {
		return err
	}

	// Expiry and reminder sweeps scan open offers by deadline
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_waitlist_offer_deadline
		ON waitlist_entries (response_deadline)
		WHERE status = 'NOTIFIED';
	`).Error
	if err != nil {
		return err
	}

	return nil
}
