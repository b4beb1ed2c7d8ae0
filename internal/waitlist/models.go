package waitlist

import (
	"time"

	"waitline/internal/shared/constants"

	"github.com/google/uuid"
)

// WaitlistStatus represents the status of a waitlist entry
type WaitlistStatus string

const (
	StatusWaiting   WaitlistStatus = "WAITING"
	StatusNotified  WaitlistStatus = "NOTIFIED"
	StatusAccepted  WaitlistStatus = "ACCEPTED"
	StatusDeclined  WaitlistStatus = "DECLINED"
	StatusExpired   WaitlistStatus = "EXPIRED"
	StatusCancelled WaitlistStatus = "CANCELLED"
)

// ActiveStatuses are the statuses that hold a queue position.
var ActiveStatuses = []WaitlistStatus{StatusWaiting, StatusNotified}

// promotableStatuses are the statuses promoteToParticipant accepts.
var promotableStatuses = []WaitlistStatus{StatusWaiting, StatusAccepted}

// WaitEntry is one user's request to join an event past capacity
type WaitEntry struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EventID          uuid.UUID      `json:"event_id" gorm:"type:uuid;not null;index:idx_waitlist_event_position,priority:1"`
	UserID           uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Position         int            `json:"position" gorm:"not null;index:idx_waitlist_event_position,priority:2"`
	Status           WaitlistStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	JoinDate         time.Time      `json:"join_date" gorm:"not null"`
	NotificationSent bool           `json:"notification_sent" gorm:"not null;default:false"`
	NotificationDate *time.Time     `json:"notification_date,omitempty"`
	ResponseDeadline *time.Time     `json:"response_deadline,omitempty" gorm:"index"`
	ResponseDate     *time.Time     `json:"response_date,omitempty"`
	ReminderSent     bool           `json:"reminder_sent" gorm:"not null;default:false"`
	Notes            string         `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for WaitEntry
func (WaitEntry) TableName() string {
	return "waitlist_entries"
}

// IsValid checks if the waitlist status is known
func (ws WaitlistStatus) IsValid() bool {
	switch ws {
	case StatusWaiting, StatusNotified, StatusAccepted, StatusDeclined, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status holds a queue position.
func (ws WaitlistStatus) IsActive() bool {
	return ws == StatusWaiting || ws == StatusNotified
}

// CanTransitionTo checks if the status can transition to the target status
func (ws WaitlistStatus) CanTransitionTo(target WaitlistStatus) bool {
	validTransitions := map[WaitlistStatus][]WaitlistStatus{
		StatusWaiting:   {StatusNotified, StatusAccepted, StatusCancelled},
		StatusNotified:  {StatusAccepted, StatusDeclined, StatusExpired, StatusCancelled},
		StatusAccepted:  {}, // Terminal state
		StatusDeclined:  {}, // Terminal state
		StatusExpired:   {}, // Terminal state
		StatusCancelled: {}, // Terminal state
	}

	for _, allowed := range validTransitions[ws] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsActive returns true if the entry still holds a queue position
func (we *WaitEntry) IsActive() bool {
	return we.Status.IsActive()
}

// OfferExpired reports whether a NOTIFIED entry's deadline lies before now.
func (we *WaitEntry) OfferExpired(now time.Time) bool {
	return we.Status == StatusNotified && we.ResponseDeadline != nil && we.ResponseDeadline.Before(now)
}

// transition moves the entry to target, failing when the state machine forbids it.
func (we *WaitEntry) transition(target WaitlistStatus) error {
	if !we.Status.CanTransitionTo(target) {
		return transitionError(we.Status, target)
	}
	we.Status = target
	return nil
}

func statusIn(status WaitlistStatus, set []WaitlistStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// Redis Key Helpers

// GetLockKey returns the Redis key for the per-event serialization lock
func GetLockKey(eventID uuid.UUID) string {
	return constants.BuildWaitlistLockKey(eventID.String())
}

// GetStatsKey returns the Redis key for event waitlist statistics
func GetStatsKey(eventID uuid.UUID) string {
	return constants.BuildWaitlistStatsKey(eventID.String())
}

// Configuration Constants

const (
	// DefaultResponseDeadlineHours is used when a caller passes no deadline
	DefaultResponseDeadlineHours = 24

	// MaxNotesLength bounds the caller-supplied note
	MaxNotesLength = 1000

	// ExpiryBatchSize is the number of expired offers fetched per sweep page
	ExpiryBatchSize = 100
)
