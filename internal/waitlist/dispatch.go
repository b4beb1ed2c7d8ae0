package waitlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"waitline/pkg/logger"

	"github.com/google/uuid"
)

// MessageKind is the intent behind an outbound waitlist message
type MessageKind string

const (
	MessageKindOffer    MessageKind = "WAITLIST_SPOT_AVAILABLE"
	MessageKindReminder MessageKind = "WAITLIST_REMINDER"
)

// Message is the payload handed to a Notifier
type Message struct {
	Kind        MessageKind `json:"kind"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	EventID     uuid.UUID   `json:"event_id"`
	EntryID     uuid.UUID   `json:"entry_id"`
	Position    int         `json:"position"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Subject     string      `json:"subject"`
	Body        string      `json:"body"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Notifier delivers a message to a user (implemented outside this package to avoid import cycles)
type Notifier interface {
	Send(ctx context.Context, userID uuid.UUID, message Message) error
}

// Dispatcher turns offer/reminder decisions into messages and delivers them
// with a bounded timeout. It never touches entry state.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      *logger.Logger
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(notifier Notifier, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Dispatcher{notifier: notifier, timeout: timeout, log: log}
}

// Offer tells the user a slot is being held for them until the deadline
func (d *Dispatcher) Offer(ctx context.Context, entry WaitEntry) *DeliveryError {
	return d.deliver(ctx, buildMessage(MessageKindOffer, entry))
}

// Reminder nudges a user whose offer is about to lapse
func (d *Dispatcher) Reminder(ctx context.Context, entry WaitEntry) *DeliveryError {
	return d.deliver(ctx, buildMessage(MessageKindReminder, entry))
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) *DeliveryError {
	if d.notifier == nil {
		return &DeliveryError{EntryID: msg.EntryID, UserID: msg.RecipientID, Kind: msg.Kind, Err: fmt.Errorf("no notifier configured")}
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.notifier.Send(sendCtx, msg.RecipientID, msg); err != nil {
		d.log.WarnContext(ctx, "Waitlist notification failed",
			slog.String("kind", string(msg.Kind)),
			slog.String("user_id", msg.RecipientID.String()),
			slog.String("entry_id", msg.EntryID.String()),
			slog.String("error", err.Error()),
		)
		return &DeliveryError{EntryID: msg.EntryID, UserID: msg.RecipientID, Kind: msg.Kind, Err: err}
	}
	return nil
}

func buildMessage(kind MessageKind, entry WaitEntry) Message {
	msg := Message{
		Kind:        kind,
		RecipientID: entry.UserID,
		EventID:     entry.EventID,
		EntryID:     entry.ID,
		Position:    entry.Position,
		Deadline:    entry.ResponseDeadline,
		CreatedAt:   time.Now(),
	}

	deadline := "soon"
	if entry.ResponseDeadline != nil {
		deadline = entry.ResponseDeadline.UTC().Format(time.RFC1123)
	}

	switch kind {
	case MessageKindReminder:
		msg.Subject = "Your waitlist offer expires soon"
		msg.Body = fmt.Sprintf("A spot for event %s is still held for you. Respond before %s or it goes to the next person in line.",
			entry.EventID, deadline)
	default:
		msg.Subject = "A spot is available"
		msg.Body = fmt.Sprintf("A spot opened up for event %s. Accept or decline before %s.",
			entry.EventID, deadline)
	}
	return msg
}
