package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"waitline/internal/waitlist"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offerMessage(userID uuid.UUID) waitlist.Message {
	deadline := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	return waitlist.Message{
		Kind:        waitlist.MessageKindOffer,
		RecipientID: userID,
		EventID:     uuid.New(),
		EntryID:     uuid.New(),
		Position:    1,
		Deadline:    &deadline,
		Subject:     "A spot opened up",
		Body:        "Respond before the deadline",
		CreatedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotifier_Send(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	userID := uuid.New()
	msg := offerMessage(userID)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != "waitlist-notifications" {
			return errors.New("wrong topic " + pm.Topic)
		}
		key, err := pm.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != userID.String() {
			return errors.New("message not keyed by recipient")
		}

		raw, err := pm.Value.Encode()
		if err != nil {
			return err
		}
		var n Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		if n.Type != NotificationTypeWaitlistSpotAvailable || n.Priority != NotificationPriorityHigh {
			return errors.New("unexpected notification type or priority")
		}
		if n.WaitlistEntryID != msg.EntryID || n.ExpiresAt == nil {
			return errors.New("entry id or deadline missing")
		}
		return nil
	})

	notifier := NewKafkaNotifierWithProducer(producer, "waitlist-notifications")
	require.NoError(t, notifier.Send(context.Background(), userID, msg))
	require.NoError(t, notifier.Close())
}

func TestKafkaNotifier_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	notifier := NewKafkaNotifierWithProducer(producer, "waitlist-notifications")
	err := notifier.Send(context.Background(), uuid.New(), offerMessage(uuid.New()))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, notifier.Close())
}

func TestKafkaNotifier_DeliveryErrorIsWarning(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	notifier := NewKafkaNotifierWithProducer(producer, "waitlist-notifications")

	dispatcher := waitlist.NewDispatcher(notifier, time.Second, nil)
	entry := waitlist.WaitEntry{ID: uuid.New(), EventID: uuid.New(), UserID: uuid.New(), Position: 2}

	warning := dispatcher.Offer(context.Background(), entry)
	require.NotNil(t, warning)
	assert.Equal(t, entry.ID, warning.EntryID)
	assert.Equal(t, waitlist.MessageKindOffer, warning.Kind)
	assert.ErrorIs(t, warning, sarama.ErrOutOfBrokers)
	require.NoError(t, notifier.Close())
}

func TestCreateHeaders(t *testing.T) {
	n := FromMessage(uuid.New(), offerMessage(uuid.New()))

	headers := make(map[string]string)
	for _, h := range createHeaders(n) {
		headers[string(h.Key)] = string(h.Value)
	}

	assert.Equal(t, n.ID.String(), headers["notification_id"])
	assert.Equal(t, string(NotificationTypeWaitlistSpotAvailable), headers["notification_type"])
	assert.Equal(t, "waitline", headers["producer"])
	assert.Equal(t, "2026-05-01T18:00:00Z", headers["expires_at"])
}

func TestFromMessage_Reminder(t *testing.T) {
	msg := offerMessage(uuid.New())
	msg.Kind = waitlist.MessageKindReminder
	msg.CreatedAt = time.Time{}

	n := FromMessage(msg.RecipientID, msg)
	assert.Equal(t, NotificationTypeWaitlistReminder, n.Type)
	assert.Equal(t, NotificationPriorityMedium, n.Priority)
	assert.False(t, n.CreatedAt.IsZero())
	assert.Equal(t, msg.RecipientID.String(), n.GetPartitionKey())
}

func TestLogNotifier(t *testing.T) {
	notifier := NewLogNotifier(nil)
	assert.NoError(t, notifier.Send(context.Background(), uuid.New(), offerMessage(uuid.New())))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, notifier.Send(ctx, uuid.New(), offerMessage(uuid.New())), context.Canceled)
}
