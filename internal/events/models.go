package events

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Event is the capacity-constrained thing users wait for
type Event struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string      `json:"name" gorm:"not null;size:255"`
	Description   string      `json:"description" gorm:"type:text"`
	Venue         string      `json:"venue" gorm:"not null;size:255"`
	DateTime      time.Time   `json:"date_time" gorm:"not null"`
	TotalCapacity int         `json:"total_capacity" gorm:"not null;check:total_capacity > 0"`
	Status        EventStatus `json:"status" gorm:"type:varchar(20);default:'draft'"`

	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type CreateEventRequest struct {
	Name          string    `json:"name" binding:"required,min=3,max=255"`
	Description   string    `json:"description" binding:"max=2000"`
	Venue         string    `json:"venue" binding:"required,min=3,max=255"`
	DateTime      time.Time `json:"date_time" binding:"required"`
	TotalCapacity int       `json:"total_capacity" binding:"required,min=1,max=100000"`
	Status        string    `json:"status" binding:"omitempty,oneof=draft published"`
}

type EventListQuery struct {
	Status EventStatus
	Page   int
	Limit  int
}
