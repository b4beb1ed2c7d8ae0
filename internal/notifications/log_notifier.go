package notifications

import (
	"context"
	"log/slog"

	"waitline/internal/waitlist"
	"waitline/pkg/logger"

	"github.com/google/uuid"
)

// LogNotifier writes messages to the application log. It is used when no
// Kafka brokers are configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(l *logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.GetDefault()
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Send(ctx context.Context, userID uuid.UUID, msg waitlist.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.InfoContext(ctx, "Waitlist notification",
		slog.String("kind", string(msg.Kind)),
		slog.String("user_id", userID.String()),
		slog.String("event_id", msg.EventID.String()),
		slog.String("subject", msg.Subject),
	)
	return nil
}
