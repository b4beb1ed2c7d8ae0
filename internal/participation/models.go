package participation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Participation is a confirmed seat of a user at an event
type Participation struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_participation_event_user,priority:1" json:"event_id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_participation_event_user,priority:2;index" json:"user_id"`
	Status      Status     `gorm:"type:varchar(20);check:status IN ('CONFIRMED', 'CANCELLED');default:'CONFIRMED'" json:"status"`
	ConfirmedAt time.Time  `gorm:"not null" json:"confirmed_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName sets the table name for Participation
func (Participation) TableName() string {
	return "participations"
}
