package waitlist

import "github.com/google/uuid"

type JoinWaitlistRequest struct {
	Note string `json:"note" binding:"max=1000"`
}

type RespondOfferRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

type ReorderRequest struct {
	EntryIDs []uuid.UUID `json:"entry_ids" binding:"required"`
}

type NotifyRequest struct {
	Slots         int `json:"slots" binding:"gte=0"`
	DeadlineHours int `json:"deadline_hours" binding:"gte=0"`
}

type PromoteRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type AutoPromoteRequest struct {
	Limit int `json:"limit" binding:"gte=0"`
}
