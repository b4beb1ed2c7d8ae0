package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitline/internal/shared/transaction"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// repository implements Store on PostgreSQL through GORM
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new waitlist repository
func NewRepository(db *gorm.DB) Store {
	return &repository{db: db}
}

// Atomic opens one transaction per unit of work. The advisory lock serializes
// inserts for the event (row locks alone do not block new rows) and FOR UPDATE
// pins the existing rows until commit.
func (r *repository) Atomic(ctx context.Context, eventID uuid.UUID, fn func(ctx context.Context, tx EventTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", eventID.String()).Error; err != nil {
			return fmt.Errorf("failed to lock waitlist for event %s: %w", eventID, err)
		}

		var rows []WaitEntry
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("event_id = ?", eventID).
			Order("position ASC, join_date ASC, id ASC").
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to load waitlist entries: %w", err)
		}

		return fn(transaction.WithTx(ctx, db), &gormTx{db: db, eventID: eventID, entries: rows})
	})
}

// FindByID gets a waitlist entry by ID
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*WaitEntry, error) {
	var entry WaitEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return &entry, nil
}

// FindActive gets the user's active entry, nil when there is none
func (r *repository) FindActive(ctx context.Context, eventID, userID uuid.UUID) (*WaitEntry, error) {
	var entries []WaitEntry
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND status IN ?", eventID, userID, ActiveStatuses).
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// ListByEvent lists waitlist entries for an event with optional status filter
func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID, statuses ...WaitlistStatus) ([]WaitEntry, error) {
	var entries []WaitEntry
	query := r.db.WithContext(ctx).Where("event_id = ?", eventID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	err := query.Order("position ASC, join_date ASC, id ASC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	// closed entries keep stale positions
	SortListing(entries)
	return entries, nil
}

// ListByUser lists every waitlist entry of a user
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]WaitEntry, error) {
	var entries []WaitEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("join_date ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user waitlist entries: %w", err)
	}
	return entries, nil
}

// CountByEvent counts waitlist entries for an event with optional status filter
func (r *repository) CountByEvent(ctx context.Context, eventID uuid.UUID, statuses ...WaitlistStatus) (int, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&WaitEntry{}).Where("event_id = ?", eventID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count waitlist entries: %w", err)
	}
	return int(count), nil
}

// ListExpiredOffers gets notified entries whose response window has passed
func (r *repository) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]WaitEntry, error) {
	var entries []WaitEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND response_deadline IS NOT NULL AND response_deadline < ?", StatusNotified, now).
		Order("response_deadline ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get expired offers: %w", err)
	}
	return entries, nil
}

// ListOffersDueBefore gets notified entries without a reminder expiring in (now, until]
func (r *repository) ListOffersDueBefore(ctx context.Context, now, until time.Time, limit int) ([]WaitEntry, error) {
	var entries []WaitEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ? AND response_deadline > ? AND response_deadline <= ?",
			StatusNotified, false, now, until).
		Order("response_deadline ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get offers due for reminder: %w", err)
	}
	return entries, nil
}

// gormTx is the EventTx of one Postgres transaction
type gormTx struct {
	db      *gorm.DB
	eventID uuid.UUID
	entries []WaitEntry
}

func (t *gormTx) Entries() []WaitEntry {
	out := make([]WaitEntry, len(t.entries))
	copy(out, t.entries)
	SortQueue(out)
	return out
}

func (t *gormTx) Insert(ctx context.Context, entry *WaitEntry) error {
	if entry.EventID != t.eventID {
		return fmt.Errorf("entry belongs to event %s, unit of work is for %s", entry.EventID, t.eventID)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	err := t.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateActiveEntry
		}
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}

	t.entries = append(t.entries, *entry)
	return nil
}

func (t *gormTx) Update(ctx context.Context, entry *WaitEntry) error {
	idx := t.indexOf(entry.ID)
	if idx < 0 {
		return fmt.Errorf("waitlist entry %s: %w", entry.ID, ErrNotFound)
	}

	entry.UpdatedAt = time.Now()
	err := t.db.WithContext(ctx).
		Model(&WaitEntry{}).
		Where("id = ?", entry.ID).
		Select("*").
		Omit("id", "event_id", "user_id", "join_date", "notes", "created_at").
		Updates(entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateActiveEntry
		}
		return fmt.Errorf("failed to update waitlist entry: %w", err)
	}

	t.entries[idx] = *entry
	return nil
}

func (t *gormTx) Delete(ctx context.Context, id uuid.UUID) error {
	idx := t.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
	}

	err := t.db.WithContext(ctx).Where("id = ?", id).Delete(&WaitEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete waitlist entry: %w", err)
	}

	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
	return nil
}

func (t *gormTx) indexOf(id uuid.UUID) int {
	for i := range t.entries {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}
