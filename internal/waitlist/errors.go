package waitlist

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateActiveEntry = errors.New("user already has an active waitlist entry for this event")
	ErrAlreadyRegistered    = errors.New("user is already a confirmed participant of this event")
	ErrInvalidReorder       = errors.New("reorder must list every active entry exactly once")
	ErrInvalidTransition    = errors.New("invalid waitlist status transition")
	ErrOfferExpired         = errors.New("offer response deadline has passed")
	ErrWaitlistFull         = errors.New("waitlist is full")
	ErrValidation           = errors.New("validation error")
)

// DeliveryError reports a notification that could not be delivered. It is
// surfaced next to a committed state change and never aborts it.
type DeliveryError struct {
	EntryID uuid.UUID
	UserID  uuid.UUID
	Kind    MessageKind
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to user %s (entry %s): %v", e.Kind, e.UserID, e.EntryID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func transitionError(from, to WaitlistStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func eventNotFound(eventID uuid.UUID) error {
	return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
}

func entryNotFound(eventID, userID uuid.UUID) error {
	return fmt.Errorf("waitlist entry for user %s on event %s: %w", userID, eventID, ErrNotFound)
}
