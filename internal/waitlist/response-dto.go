package waitlist

import (
	"time"

	"github.com/google/uuid"
)

type WaitlistResponse struct {
	ID               uuid.UUID      `json:"id"`
	EventID          uuid.UUID      `json:"event_id"`
	UserID           uuid.UUID      `json:"user_id"`
	Position         *int           `json:"position,omitempty"`
	Status           WaitlistStatus `json:"status"`
	JoinedAt         time.Time      `json:"joined_at"`
	NotifiedAt       *time.Time     `json:"notified_at,omitempty"`
	ResponseDeadline *time.Time     `json:"response_deadline,omitempty"`
	RespondedAt      *time.Time     `json:"responded_at,omitempty"`
	Notes            string         `json:"notes,omitempty"`
}

type DeliveryWarning struct {
	EntryID uuid.UUID   `json:"entry_id"`
	UserID  uuid.UUID   `json:"user_id"`
	Kind    MessageKind `json:"kind"`
	Error   string      `json:"error"`
}

type NotifyResponse struct {
	Notified []WaitlistResponse `json:"notified"`
	Warnings []DeliveryWarning  `json:"warnings,omitempty"`
}

type PromoteResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Promoted bool      `json:"promoted"`
}

type AutoPromoteResponse struct {
	EventID  uuid.UUID `json:"event_id"`
	Promoted int       `json:"promoted"`
}

type CountResponse struct {
	EventID uuid.UUID      `json:"event_id"`
	Status  WaitlistStatus `json:"status"`
	Count   int            `json:"count"`
}

type ExpireResponse struct {
	Expired []WaitlistResponse `json:"expired"`
}

// ToResponse converts an entry to its API shape. Position is only meaningful
// while the entry is active.
func ToResponse(e WaitEntry) WaitlistResponse {
	resp := WaitlistResponse{
		ID:               e.ID,
		EventID:          e.EventID,
		UserID:           e.UserID,
		Status:           e.Status,
		JoinedAt:         e.JoinDate,
		NotifiedAt:       e.NotificationDate,
		ResponseDeadline: e.ResponseDeadline,
		RespondedAt:      e.ResponseDate,
		Notes:            e.Notes,
	}
	if e.IsActive() {
		position := e.Position
		resp.Position = &position
	}
	return resp
}

func toResponses(entries []WaitEntry) []WaitlistResponse {
	out := make([]WaitlistResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToResponse(e))
	}
	return out
}

func toNotifyResponse(result *NotifyResult) NotifyResponse {
	resp := NotifyResponse{Notified: toResponses(result.Notified)}
	for _, w := range result.Warnings {
		resp.Warnings = append(resp.Warnings, DeliveryWarning{
			EntryID: w.EntryID,
			UserID:  w.UserID,
			Kind:    w.Kind,
			Error:   w.Err.Error(),
		})
	}
	return resp
}
