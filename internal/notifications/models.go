package notifications

import (
	"encoding/json"
	"time"

	"waitline/internal/waitlist"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeWaitlistSpotAvailable NotificationType = NotificationType(waitlist.MessageKindOffer)
	NotificationTypeWaitlistReminder      NotificationType = NotificationType(waitlist.MessageKindReminder)
)

type NotificationPriority string

const (
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

// Notification is the envelope published for downstream delivery workers
type Notification struct {
	ID       uuid.UUID            `json:"id"`
	Type     NotificationType     `json:"type"`
	Priority NotificationPriority `json:"priority"`

	RecipientID uuid.UUID `json:"recipient_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`

	EventID         uuid.UUID `json:"event_id"`
	WaitlistEntryID uuid.UUID `json:"waitlist_entry_id"`
	Position        int       `json:"position,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// FromMessage wraps a waitlist message into a notification envelope
func FromMessage(userID uuid.UUID, msg waitlist.Message) *Notification {
	priority := NotificationPriorityMedium
	if msg.Kind == waitlist.MessageKindOffer {
		priority = NotificationPriorityHigh
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	return &Notification{
		ID:              uuid.New(),
		Type:            NotificationType(msg.Kind),
		Priority:        priority,
		RecipientID:     userID,
		Subject:         msg.Subject,
		Body:            msg.Body,
		EventID:         msg.EventID,
		WaitlistEntryID: msg.EntryID,
		Position:        msg.Position,
		ExpiresAt:       msg.Deadline,
		CreatedAt:       created,
	}
}

// ToJSON serializes the notification
func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// GetPartitionKey keeps every message of one recipient on one partition
func (n *Notification) GetPartitionKey() string {
	return n.RecipientID.String()
}
