package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"waitline/internal/waitlist"
	"waitline/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// KafkaProducerConfig contains configuration for the Kafka notifier
type KafkaProducerConfig struct {
	Brokers           []string
	NotificationTopic string
	RetryMax          int
	TimeoutMs         int
	RequiredAcks      sarama.RequiredAcks
	CompressionType   sarama.CompressionCodec
	IdempotentWrites  bool
	MaxMessageBytes   int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:           []string{"localhost:9092"},
		NotificationTopic: "waitlist-notifications",
		RetryMax:          3,
		TimeoutMs:         10000,
		RequiredAcks:      sarama.WaitForAll,
		CompressionType:   sarama.CompressionSnappy,
		IdempotentWrites:  true,
		MaxMessageBytes:   1000000,
	}
}

// KafkaNotifier publishes waitlist messages to a Kafka topic. Delivery to the
// user is the job of whoever consumes the topic.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaNotifier connects a sync producer to the configured brokers
func NewKafkaNotifier(config *KafkaProducerConfig) (*KafkaNotifier, error) {
	if config == nil {
		config = DefaultKafkaProducerConfig()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewKafkaNotifierWithProducer(producer, config.NotificationTopic), nil
}

// NewKafkaNotifierWithProducer wraps an existing producer
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, log: logger.GetDefault()}
}

// Send publishes the message and gives up when ctx is done. A publish that
// outlives ctx may still land; consumers dedupe on notification_id.
func (k *KafkaNotifier) Send(ctx context.Context, userID uuid.UUID, msg waitlist.Message) error {
	notification := FromMessage(userID, msg)
	payload, err := notification.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(notification.GetPartitionKey()),
		Value:     sarama.ByteEncoder(payload),
		Headers:   createHeaders(notification),
		Timestamp: notification.CreatedAt,
	}

	type sendResult struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan sendResult, 1)
	go func() {
		partition, offset, err := k.producer.SendMessage(message)
		done <- sendResult{partition: partition, offset: offset, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to send notification to Kafka: %w", res.err)
		}
		k.log.DebugContext(ctx, "Notification published",
			slog.String("topic", k.topic),
			slog.Int("partition", int(res.partition)),
			slog.Int64("offset", res.offset),
			slog.String("type", string(notification.Type)),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish notification: %w", ctx.Err())
	}
}

// Close closes the Kafka producer
func (k *KafkaNotifier) Close() error {
	if k.producer == nil {
		return nil
	}
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

func createHeaders(n *Notification) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(n.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(n.Type)},
		{Key: []byte("priority"), Value: []byte(n.Priority)},
		{Key: []byte("recipient_id"), Value: []byte(n.RecipientID.String())},
		{Key: []byte("event_id"), Value: []byte(n.EventID.String())},
		{Key: []byte("waitlist_entry_id"), Value: []byte(n.WaitlistEntryID.String())},
		{Key: []byte("producer"), Value: []byte("waitline")},
		{Key: []byte("created_at"), Value: []byte(n.CreatedAt.Format(time.RFC3339))},
	}
	if n.ExpiresAt != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("expires_at"),
			Value: []byte(n.ExpiresAt.Format(time.RFC3339)),
		})
	}
	return headers
}
