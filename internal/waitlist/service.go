package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"waitline/pkg/cache"
	"waitline/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service interface defines the contract for waitlist business operations
type Service interface {
	// Queue membership
	AddToWaitingList(ctx context.Context, eventID, userID uuid.UUID, note string) (*WaitEntry, error)
	RemoveFromWaitingList(ctx context.Context, eventID, userID uuid.UUID) error
	Reorder(ctx context.Context, eventID uuid.UUID, orderedIDs []uuid.UUID) ([]WaitEntry, error)

	// Offers
	NotifyWaitlistForAvailableSlots(ctx context.Context, eventID uuid.UUID, slots, deadlineHours int) (*NotifyResult, error)
	RespondToOffer(ctx context.Context, entryID uuid.UUID, accept bool) (*WaitEntry, error)

	// Admission
	PromoteToParticipant(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	AutoPromoteFromWaitingList(ctx context.Context, eventID uuid.UUID, limit int) (int, error)

	// Scheduled operations
	ExpireStaleNotifications(ctx context.Context, now time.Time) ([]WaitEntry, error)
	SendOfferReminders(ctx context.Context, now time.Time, window time.Duration) (*NotifyResult, error)
}

// NotifyResult is the outcome of an offer or reminder round. Warnings hold
// deliveries that failed after the state change was committed.
type NotifyResult struct {
	Notified []WaitEntry
	Warnings []*DeliveryError
}

// Dependencies are the collaborators of the admission engine
type Dependencies struct {
	Store        Store
	Events       EventStore
	Participants ParticipationStore
	Notifier     Notifier
	Locker       Locker        // defaults to an in-process MutexLocker
	Cache        cache.Service // optional, stats are invalidated through it
	Logger       *logger.Logger
}

// ServiceConfig contains configuration for the waitlist service
type ServiceConfig struct {
	DefaultResponseDeadlineHours int
	NotificationTimeout          time.Duration
	MaxWaitlistSize              int  // 0 means unlimited
	RetainRemoved                bool // keep removed entries as CANCELLED instead of deleting them
	Now                          func() time.Time
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		DefaultResponseDeadlineHours: DefaultResponseDeadlineHours,
		NotificationTimeout:          5 * time.Second,
		Now:                          time.Now,
	}
}

// service implements the Service interface
type service struct {
	store        Store
	events       EventStore
	participants ParticipationStore
	locker       Locker
	dispatcher   *Dispatcher
	cache        cache.Service
	log          *logger.Logger
	validate     *validator.Validate
	config       *ServiceConfig
}

// NewService creates a new waitlist service
func NewService(deps Dependencies, config *ServiceConfig) Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.DefaultResponseDeadlineHours <= 0 {
		config.DefaultResponseDeadlineHours = DefaultResponseDeadlineHours
	}
	if deps.Locker == nil {
		deps.Locker = NewMutexLocker()
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetDefault()
	}

	return &service{
		store:        deps.Store,
		events:       deps.Events,
		participants: deps.Participants,
		locker:       deps.Locker,
		dispatcher:   NewDispatcher(deps.Notifier, config.NotificationTimeout, deps.Logger),
		cache:        deps.Cache,
		log:          deps.Logger,
		validate:     validator.New(),
		config:       config,
	}
}

type joinInput struct {
	Note string `validate:"max=1000"`
}

type notifyInput struct {
	Slots int `validate:"gte=0"`
}

// AddToWaitingList appends the user to the tail of the event's queue
func (s *service) AddToWaitingList(ctx context.Context, eventID, userID uuid.UUID, note string) (*WaitEntry, error) {
	if eventID == uuid.Nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: event and user ids are required", ErrValidation)
	}
	if err := s.validate.Struct(joinInput{Note: note}); err != nil {
		return nil, fmt.Errorf("%w: note must be at most %d characters", ErrValidation, MaxNotesLength)
	}
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var created WaitEntry
	err := s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		confirmed, err := s.participants.IsConfirmed(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to check participation: %w", err)
		}
		if confirmed {
			return ErrAlreadyRegistered
		}

		entries := tx.Entries()
		for _, e := range entries {
			if e.UserID != userID {
				continue
			}
			if e.IsActive() {
				return ErrDuplicateActiveEntry
			}
			if e.Status == StatusAccepted {
				return fmt.Errorf("%w: accepted offer awaits promotion", ErrDuplicateActiveEntry)
			}
		}
		active := activeEntries(entries)
		if s.config.MaxWaitlistSize > 0 && len(active) >= s.config.MaxWaitlistSize {
			return fmt.Errorf("%w (max %d users)", ErrWaitlistFull, s.config.MaxWaitlistSize)
		}

		created = WaitEntry{
			EventID:  eventID,
			UserID:   userID,
			Position: nextPosition(entries),
			Status:   StatusWaiting,
			JoinDate: s.now(),
			Notes:    note,
		}
		return tx.Insert(ctx, &created)
	})
	if err != nil {
		return nil, err
	}

	s.log.LogEntryJoined(ctx, eventID.String(), userID.String(), created.Position)
	return &created, nil
}

// RemoveFromWaitingList takes the user's active entry out of the queue
func (s *service) RemoveFromWaitingList(ctx context.Context, eventID, userID uuid.UUID) error {
	return s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		entry := findActive(tx.Entries(), userID)
		if entry == nil {
			return entryNotFound(eventID, userID)
		}

		return s.retire(ctx, tx, entry)
	})
}

// Reorder assigns positions 1..N following orderedIDs
func (s *service) Reorder(ctx context.Context, eventID uuid.UUID, orderedIDs []uuid.UUID) ([]WaitEntry, error) {
	var result []WaitEntry
	err := s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		entries := tx.Entries()
		ordered, err := applyOrder(entries, orderedIDs)
		if err != nil {
			return err
		}

		current := make(map[uuid.UUID]int, len(entries))
		for _, e := range entries {
			current[e.ID] = e.Position
		}
		for i := range ordered {
			if current[ordered[i].ID] == ordered[i].Position {
				continue
			}
			if err := tx.Update(ctx, &ordered[i]); err != nil {
				return err
			}
		}
		result = ordered
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Waitlist reordered",
		slog.String("event_id", eventID.String()),
		slog.Int("entries", len(result)),
	)
	return result, nil
}

// NotifyWaitlistForAvailableSlots offers slots to the first WAITING entries
func (s *service) NotifyWaitlistForAvailableSlots(ctx context.Context, eventID uuid.UUID, slots, deadlineHours int) (*NotifyResult, error) {
	if err := s.validate.Struct(notifyInput{Slots: slots}); err != nil {
		return nil, fmt.Errorf("%w: slots must not be negative", ErrValidation)
	}
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	result := &NotifyResult{Notified: []WaitEntry{}}
	if slots == 0 {
		return result, nil
	}
	if deadlineHours <= 0 {
		deadlineHours = s.config.DefaultResponseDeadlineHours
	}

	now := s.now()
	deadline := now.Add(time.Duration(deadlineHours) * time.Hour)

	err := s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		notified := make([]WaitEntry, 0, slots)
		for _, e := range activeEntries(tx.Entries()) {
			if len(notified) == slots {
				break
			}
			if e.Status != StatusWaiting {
				continue
			}
			confirmed, err := s.participants.IsConfirmed(ctx, eventID, e.UserID)
			if err != nil {
				return fmt.Errorf("failed to check participation: %w", err)
			}
			if confirmed {
				if err := s.retire(ctx, tx, &e); err != nil {
					return err
				}
				continue
			}
			if err := e.transition(StatusNotified); err != nil {
				return err
			}
			e.NotificationSent = true
			e.NotificationDate = &now
			e.ResponseDeadline = &deadline
			e.ReminderSent = false
			if err := tx.Update(ctx, &e); err != nil {
				return err
			}
			notified = append(notified, e)
		}
		result.Notified = notified
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range result.Notified {
		if warning := s.dispatcher.Offer(ctx, e); warning != nil {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	if len(result.Notified) > 0 {
		s.log.LogOffersSent(ctx, eventID.String(), len(result.Notified), len(result.Warnings), deadline)
	}
	return result, nil
}

// RespondToOffer records the user's answer to a pending offer
func (s *service) RespondToOffer(ctx context.Context, entryID uuid.UUID, accept bool) (*WaitEntry, error) {
	entry, err := s.store.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	target := StatusDeclined
	if accept {
		target = StatusAccepted
	}

	var answered WaitEntry
	err = s.inEvent(ctx, entry.EventID, func(ctx context.Context, tx EventTx) error {
		current := findByID(tx.Entries(), entryID)
		if current == nil {
			return fmt.Errorf("waitlist entry %s: %w", entryID, ErrNotFound)
		}
		if current.Status != StatusNotified {
			return transitionError(current.Status, target)
		}

		now := s.now()
		if current.OfferExpired(now) {
			return fmt.Errorf("%w (deadline %s)", ErrOfferExpired, current.ResponseDeadline.Format(time.RFC3339))
		}
		if err := current.transition(target); err != nil {
			return err
		}
		current.ResponseDate = &now
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		answered = *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Waitlist offer answered",
		slog.String("entry_id", entryID.String()),
		slog.String("status", string(answered.Status)),
	)
	return &answered, nil
}

// PromoteToParticipant confirms the user's participation. It reports false
// when the user was already confirmed.
func (s *service) PromoteToParticipant(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return false, err
	}

	var promoted bool
	err := s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		var err error
		promoted, err = s.promote(ctx, tx, eventID, userID)
		return err
	})
	if err != nil {
		return false, err
	}

	if promoted {
		s.log.LogPromotion(ctx, eventID.String(), userID.String())
	}
	return promoted, nil
}

// AutoPromoteFromWaitingList promotes candidates in queue order while capacity remains
func (s *service) AutoPromoteFromWaitingList(ctx context.Context, eventID uuid.UUID, limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	if err := s.requireEvent(ctx, eventID); err != nil {
		return 0, err
	}
	capacity, err := s.events.GetCapacity(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to get event capacity: %w", err)
	}

	var promotedUsers []uuid.UUID
	err = s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		confirmed, err := s.participants.CountConfirmed(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}

		available := capacity - confirmed
		if available <= 0 {
			return nil
		}
		slotsToFill := available
		if limit > 0 && limit < available {
			slotsToFill = limit
		}

		for _, candidate := range promotionCandidates(tx.Entries()) {
			if len(promotedUsers) == slotsToFill {
				break
			}
			ok, err := s.promote(ctx, tx, eventID, candidate.UserID)
			if err != nil {
				return err
			}
			if ok {
				promotedUsers = append(promotedUsers, candidate.UserID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, userID := range promotedUsers {
		s.log.LogPromotion(ctx, eventID.String(), userID.String())
	}
	return len(promotedUsers), nil
}

// promote runs inside an event unit of work; the caller holds the event lock.
func (s *service) promote(ctx context.Context, tx EventTx, eventID, userID uuid.UUID) (bool, error) {
	confirmed, err := s.participants.IsConfirmed(ctx, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}
	if confirmed {
		return false, nil
	}

	var (
		candidate *WaitEntry
		last      *WaitEntry
	)
	entries := tx.Entries()
	for i := range entries {
		if entries[i].UserID != userID {
			continue
		}
		if statusIn(entries[i].Status, promotableStatuses) {
			candidate = &entries[i]
			break
		}
		last = &entries[i]
	}
	if candidate == nil {
		if last == nil {
			return false, entryNotFound(eventID, userID)
		}
		return false, fmt.Errorf("%w: entry is %s, promotion needs %s or %s",
			ErrInvalidTransition, last.Status, StatusWaiting, StatusAccepted)
	}

	if candidate.Status == StatusWaiting {
		if err := candidate.transition(StatusAccepted); err != nil {
			return false, err
		}
	}
	if candidate.ResponseDate == nil {
		now := s.now()
		candidate.ResponseDate = &now
	}
	if err := tx.Update(ctx, candidate); err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].UserID == userID && entries[i].ID != candidate.ID && entries[i].IsActive() {
			if err := s.retire(ctx, tx, &entries[i]); err != nil {
				return false, err
			}
		}
	}
	if err := s.participants.Confirm(ctx, eventID, userID); err != nil {
		return false, fmt.Errorf("failed to confirm participation: %w", err)
	}
	return true, nil
}

// retire takes an active entry out of the queue the same way a removal does
func (s *service) retire(ctx context.Context, tx EventTx, entry *WaitEntry) error {
	if !s.config.RetainRemoved {
		return tx.Delete(ctx, entry.ID)
	}
	if err := entry.transition(StatusCancelled); err != nil {
		return err
	}
	return tx.Update(ctx, entry)
}

// ExpireStaleNotifications moves NOTIFIED entries past their deadline to EXPIRED
func (s *service) ExpireStaleNotifications(ctx context.Context, now time.Time) ([]WaitEntry, error) {
	expired := make([]WaitEntry, 0)
	var errs []error

	for {
		page, err := s.store.ListExpiredOffers(ctx, now, ExpiryBatchSize)
		if err != nil {
			return expired, err
		}
		if len(page) == 0 {
			break
		}

		progressed := 0
		for _, eventID := range eventsOf(page) {
			var batch []WaitEntry
			err := s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
				batch = batch[:0]
				for _, e := range tx.Entries() {
					if !e.OfferExpired(now) {
						continue
					}
					if err := e.transition(StatusExpired); err != nil {
						return err
					}
					responded := now
					e.ResponseDate = &responded
					if err := tx.Update(ctx, &e); err != nil {
						return err
					}
					batch = append(batch, e)
				}
				return nil
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("expire offers for event %s: %w", eventID, err))
				continue
			}
			expired = append(expired, batch...)
			progressed += len(batch)
		}

		// a page that moved nothing would be fetched again forever
		if len(errs) > 0 || progressed == 0 || len(page) < ExpiryBatchSize {
			break
		}
	}

	if len(expired) > 0 {
		s.log.InfoContext(ctx, "Waitlist offers expired", slog.Int("count", len(expired)))
	}
	return expired, errors.Join(errs...)
}

// SendOfferReminders sends one reminder for offers whose deadline falls within window
func (s *service) SendOfferReminders(ctx context.Context, now time.Time, window time.Duration) (*NotifyResult, error) {
	result := &NotifyResult{Notified: []WaitEntry{}}
	if window <= 0 {
		return result, nil
	}
	until := now.Add(window)
	var errs []error

	for {
		page, err := s.store.ListOffersDueBefore(ctx, now, until, ExpiryBatchSize)
		if err != nil {
			return result, err
		}
		if len(page) == 0 {
			break
		}

		var marked []WaitEntry
		for _, eventID := range eventsOf(page) {
			var batch []WaitEntry
			err := s.inEvent(ctx, eventID, func(ctx context.Context, tx EventTx) error {
				batch = batch[:0]
				for _, e := range tx.Entries() {
					if !reminderDue(e, now, until) {
						continue
					}
					e.ReminderSent = true
					if err := tx.Update(ctx, &e); err != nil {
						return err
					}
					batch = append(batch, e)
				}
				return nil
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("mark reminders for event %s: %w", eventID, err))
				continue
			}
			marked = append(marked, batch...)
		}

		for _, e := range marked {
			if warning := s.dispatcher.Reminder(ctx, e); warning != nil {
				result.Warnings = append(result.Warnings, warning)
			}
		}
		result.Notified = append(result.Notified, marked...)

		if len(errs) > 0 || len(marked) == 0 || len(page) < ExpiryBatchSize {
			break
		}
	}

	return result, errors.Join(errs...)
}

// inEvent runs fn as one unit of work under the event lock and restores
// dense positions before committing.
func (s *service) inEvent(ctx context.Context, eventID uuid.UUID, fn func(ctx context.Context, tx EventTx) error) error {
	unlock, err := s.locker.Lock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.store.Atomic(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		for _, e := range renumber(tx.Entries()) {
			if err := tx.Update(ctx, &e); err != nil {
				return fmt.Errorf("failed to renumber waitlist: %w", err)
			}
		}
		return checkPositions(tx.Entries())
	})
	if err != nil {
		return err
	}

	// a concurrent stats read may still re-cache a pre-commit snapshot for
	// up to the stats TTL
	s.invalidateStats(ctx, eventID)
	return nil
}

func (s *service) requireEvent(ctx context.Context, eventID uuid.UUID) error {
	exists, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if !exists {
		return eventNotFound(eventID)
	}
	return nil
}

func (s *service) invalidateStats(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, GetStatsKey(eventID)); err != nil {
		s.log.WarnContext(ctx, "Failed to invalidate waitlist stats",
			slog.String("event_id", eventID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *service) now() time.Time {
	return s.config.Now()
}

func findActive(entries []WaitEntry, userID uuid.UUID) *WaitEntry {
	for i := range entries {
		if entries[i].UserID == userID && entries[i].IsActive() {
			return &entries[i]
		}
	}
	return nil
}

func findByID(entries []WaitEntry, id uuid.UUID) *WaitEntry {
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i]
		}
	}
	return nil
}

// promotionCandidates puts ACCEPTED entries first, in join order, then the
// WAITING entries in queue order. ACCEPTED positions are stale.
func promotionCandidates(entries []WaitEntry) []WaitEntry {
	accepted := make([]WaitEntry, 0)
	for _, e := range entries {
		if e.Status == StatusAccepted {
			accepted = append(accepted, e)
		}
	}
	sortByJoinOrder(accepted)

	candidates := accepted
	for _, e := range activeEntries(entries) {
		if e.Status == StatusWaiting {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

func reminderDue(e WaitEntry, now, until time.Time) bool {
	return e.Status == StatusNotified && !e.ReminderSent && e.ResponseDeadline != nil &&
		e.ResponseDeadline.After(now) && !e.ResponseDeadline.After(until)
}

// eventsOf returns the distinct event ids of entries in first-seen order
func eventsOf(entries []WaitEntry) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, e := range entries {
		if _, ok := seen[e.EventID]; ok {
			continue
		}
		seen[e.EventID] = struct{}{}
		ids = append(ids, e.EventID)
	}
	return ids
}
