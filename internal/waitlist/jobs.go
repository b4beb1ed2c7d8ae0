package waitlist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"waitline/pkg/logger"

	"github.com/google/uuid"
)

// JobProcessor drives the time-based parts of the waitlist: offer expiry,
// reminders, and re-offering slots freed by expired offers.
type JobProcessor struct {
	service Service
	config  *JobConfig
	log     *logger.Logger
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	ExpiryCheckInterval time.Duration
	ReminderInterval    time.Duration // 0 disables reminders
	ReminderWindow      time.Duration
	RefillOnExpiry      bool
	Now                 func() time.Time
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		ExpiryCheckInterval: 1 * time.Minute,
		ReminderInterval:    5 * time.Minute,
		ReminderWindow:      2 * time.Hour,
		RefillOnExpiry:      true,
		Now:                 time.Now,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.ExpiryCheckInterval <= 0 {
		config.ExpiryCheckInterval = DefaultJobConfig().ExpiryCheckInterval
	}

	return &JobProcessor{
		service: service,
		config:  config,
		log:     logger.GetDefault(),
		done:    make(chan struct{}),
	}
}

// Start starts all background jobs
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.log.Info("Starting waitlist background jobs",
		slog.Duration("expiry_interval", jp.config.ExpiryCheckInterval),
		slog.Duration("reminder_interval", jp.config.ReminderInterval),
	)

	jp.wg.Add(1)
	go jp.loop(ctx, jp.config.ExpiryCheckInterval, func(ctx context.Context) {
		jp.RunExpiry(ctx)
	})

	if jp.config.ReminderInterval > 0 && jp.config.ReminderWindow > 0 {
		jp.wg.Add(1)
		go jp.loop(ctx, jp.config.ReminderInterval, func(ctx context.Context) {
			jp.RunReminders(ctx)
		})
	}
}

// Stop stops all background jobs and waits for a running pass to finish
func (jp *JobProcessor) Stop() {
	jp.once.Do(func() { close(jp.done) })
	jp.wg.Wait()
	jp.log.Info("Waitlist background jobs stopped")
}

func (jp *JobProcessor) loop(ctx context.Context, interval time.Duration, run func(context.Context)) {
	defer jp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunExpiry expires lapsed offers once and, when enabled, offers the freed
// slots to the next people in line. It returns the number of expired offers.
func (jp *JobProcessor) RunExpiry(ctx context.Context) int {
	expired, err := jp.service.ExpireStaleNotifications(ctx, jp.config.Now())
	if err != nil {
		jp.log.WithError(err).ErrorContext(ctx, "Error expiring waitlist offers")
	}
	if len(expired) == 0 || !jp.config.RefillOnExpiry {
		return len(expired)
	}

	freed := make(map[uuid.UUID]int)
	for _, e := range expired {
		freed[e.EventID]++
	}
	for eventID, slots := range freed {
		eventLog := jp.log.WithEventID(eventID.String())
		result, err := jp.service.NotifyWaitlistForAvailableSlots(ctx, eventID, slots, 0)
		if err != nil {
			eventLog.WithError(err).ErrorContext(ctx, "Error re-offering expired slots")
			continue
		}
		eventLog.InfoContext(ctx, "Re-offered expired slots",
			slog.Int("freed", slots),
			slog.Int("notified", len(result.Notified)),
		)
	}
	return len(expired)
}

// RunReminders sends reminders for offers about to lapse and returns how many were sent
func (jp *JobProcessor) RunReminders(ctx context.Context) int {
	result, err := jp.service.SendOfferReminders(ctx, jp.config.Now(), jp.config.ReminderWindow)
	if err != nil {
		jp.log.WithError(err).ErrorContext(ctx, "Error sending waitlist reminders")
	}
	if result == nil {
		return 0
	}
	if len(result.Notified) > 0 {
		jp.log.InfoContext(ctx, "Sent waitlist reminders",
			slog.Int("count", len(result.Notified)),
			slog.Int("delivery_failures", len(result.Warnings)),
		)
	}
	return len(result.Notified)
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"expiry_check_interval": jp.config.ExpiryCheckInterval.String(),
		"reminder_interval":     jp.config.ReminderInterval.String(),
		"reminder_window":       jp.config.ReminderWindow.String(),
		"refill_on_expiry":      jp.config.RefillOnExpiry,
	}
}
