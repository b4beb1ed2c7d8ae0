package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventTx is the view of one event's entries inside a unit of work. Writes are
// visible through Entries immediately and are committed together by Store.Atomic.
type EventTx interface {
	// Entries returns every entry of the event in queue order.
	Entries() []WaitEntry
	Insert(ctx context.Context, entry *WaitEntry) error
	Update(ctx context.Context, entry *WaitEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Store defines the contract for waitlist entry persistence
type Store interface {
	// Atomic runs fn against the event's entries. Nothing fn wrote is kept
	// unless fn returns nil and the commit succeeds. Stores sharing the
	// backend read the transaction from the ctx handed to fn.
	Atomic(ctx context.Context, eventID uuid.UUID, fn func(ctx context.Context, tx EventTx) error) error

	FindByID(ctx context.Context, id uuid.UUID) (*WaitEntry, error)
	// FindActive returns the active entry of the user, or nil when there is none.
	FindActive(ctx context.Context, eventID, userID uuid.UUID) (*WaitEntry, error)
	// ListByEvent returns the event's entries in queue order, optionally filtered by status.
	ListByEvent(ctx context.Context, eventID uuid.UUID, statuses ...WaitlistStatus) ([]WaitEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]WaitEntry, error)
	CountByEvent(ctx context.Context, eventID uuid.UUID, statuses ...WaitlistStatus) (int, error)

	// ListExpiredOffers returns NOTIFIED entries whose deadline is before now.
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]WaitEntry, error)
	// ListOffersDueBefore returns NOTIFIED entries without a reminder whose
	// deadline lies in (now, until].
	ListOffersDueBefore(ctx context.Context, now, until time.Time, limit int) ([]WaitEntry, error)
}

// EventStore is the read side of the event catalogue the engine needs
type EventStore interface {
	GetCapacity(ctx context.Context, eventID uuid.UUID) (int, error)
	Exists(ctx context.Context, eventID uuid.UUID) (bool, error)
}

// ParticipationStore holds confirmed registrations. Confirm must be safe to
// call for an already confirmed user.
type ParticipationStore interface {
	CountConfirmed(ctx context.Context, eventID uuid.UUID) (int, error)
	IsConfirmed(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	Confirm(ctx context.Context, eventID, userID uuid.UUID) error
}
