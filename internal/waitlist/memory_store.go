package waitlist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Each event's entries live in their own
// bucket so units of work on different events never wait on each other.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[uuid.UUID]*eventBucket
	index   map[uuid.UUID]uuid.UUID // entry id -> event id
}

type eventBucket struct {
	mu      sync.Mutex
	entries map[uuid.UUID]WaitEntry
}

// NewMemoryStore creates an empty in-memory waitlist store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[uuid.UUID]*eventBucket),
		index:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *MemoryStore) bucket(eventID uuid.UUID) *eventBucket {
	m.mu.RLock()
	b, ok := m.buckets[eventID]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.buckets[eventID]; !ok {
		b = &eventBucket{entries: make(map[uuid.UUID]WaitEntry)}
		m.buckets[eventID] = b
	}
	return b
}

// Atomic runs fn on a copy of the event's entries and swaps the copy in on success
func (m *MemoryStore) Atomic(ctx context.Context, eventID uuid.UUID, fn func(ctx context.Context, tx EventTx) error) error {
	b := m.bucket(eventID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{eventID: eventID, working: make(map[uuid.UUID]WaitEntry, len(b.entries))}
	for id, e := range b.entries {
		tx.working[id] = e
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	for id := range b.entries {
		if _, kept := tx.working[id]; !kept {
			delete(m.index, id)
		}
	}
	for id := range tx.working {
		m.index[id] = eventID
	}
	m.mu.Unlock()

	b.entries = tx.working
	return nil
}

// FindByID gets a waitlist entry by ID
func (m *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*WaitEntry, error) {
	m.mu.RLock()
	eventID, ok := m.index[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
	}

	b := m.bucket(eventID)
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
	}
	return &e, nil
}

// FindActive gets the user's active entry for an event, nil when absent
func (m *MemoryStore) FindActive(ctx context.Context, eventID, userID uuid.UUID) (*WaitEntry, error) {
	for _, e := range m.snapshot(eventID) {
		if e.UserID == userID && e.IsActive() {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

// ListByEvent lists entries for an event in queue order with optional status
// filter. Closed entries follow the queue in join order.
func (m *MemoryStore) ListByEvent(ctx context.Context, eventID uuid.UUID, statuses ...WaitlistStatus) ([]WaitEntry, error) {
	entries := filterStatus(m.snapshot(eventID), statuses)
	SortListing(entries)
	return entries, nil
}

// ListByUser lists all entries of a user across events, oldest first
func (m *MemoryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]WaitEntry, error) {
	var result []WaitEntry
	for _, eventID := range m.eventIDs() {
		for _, e := range m.snapshot(eventID) {
			if e.UserID == userID {
				result = append(result, e)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].JoinDate.Before(result[j].JoinDate)
	})
	return result, nil
}

// CountByEvent counts entries for an event with optional status filter
func (m *MemoryStore) CountByEvent(ctx context.Context, eventID uuid.UUID, statuses ...WaitlistStatus) (int, error) {
	return len(filterStatus(m.snapshot(eventID), statuses)), nil
}

// ListExpiredOffers gets NOTIFIED entries whose deadline has passed
func (m *MemoryStore) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]WaitEntry, error) {
	return m.scan(limit, func(e WaitEntry) bool {
		return e.OfferExpired(now)
	}), nil
}

// ListOffersDueBefore gets NOTIFIED entries without a reminder expiring in (now, until]
func (m *MemoryStore) ListOffersDueBefore(ctx context.Context, now, until time.Time, limit int) ([]WaitEntry, error) {
	return m.scan(limit, func(e WaitEntry) bool {
		return e.Status == StatusNotified && !e.ReminderSent && e.ResponseDeadline != nil &&
			e.ResponseDeadline.After(now) && !e.ResponseDeadline.After(until)
	}), nil
}

func (m *MemoryStore) scan(limit int, match func(WaitEntry) bool) []WaitEntry {
	var result []WaitEntry
	for _, eventID := range m.eventIDs() {
		for _, e := range m.snapshot(eventID) {
			if !match(e) {
				continue
			}
			result = append(result, e)
			if limit > 0 && len(result) >= limit {
				return result
			}
		}
	}
	return result
}

func (m *MemoryStore) eventIDs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.buckets))
	for id := range m.buckets {
		ids = append(ids, id)
	}
	return ids
}

func (m *MemoryStore) snapshot(eventID uuid.UUID) []WaitEntry {
	b := m.bucket(eventID)
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedValues(b.entries)
}

type memoryTx struct {
	eventID uuid.UUID
	working map[uuid.UUID]WaitEntry
}

func (t *memoryTx) Entries() []WaitEntry {
	return sortedValues(t.working)
}

func (t *memoryTx) Insert(ctx context.Context, entry *WaitEntry) error {
	if entry.EventID != t.eventID {
		return fmt.Errorf("entry belongs to event %s, unit of work is for %s", entry.EventID, t.eventID)
	}
	if entry.IsActive() {
		for _, e := range t.working {
			if e.UserID == entry.UserID && e.IsActive() {
				return ErrDuplicateActiveEntry
			}
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	t.working[entry.ID] = *entry
	return nil
}

func (t *memoryTx) Update(ctx context.Context, entry *WaitEntry) error {
	if _, ok := t.working[entry.ID]; !ok {
		return fmt.Errorf("waitlist entry %s: %w", entry.ID, ErrNotFound)
	}
	entry.UpdatedAt = time.Now()
	t.working[entry.ID] = *entry
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.working[id]; !ok {
		return fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
	}
	delete(t.working, id)
	return nil
}

func sortedValues(m map[uuid.UUID]WaitEntry) []WaitEntry {
	entries := make([]WaitEntry, 0, len(m))
	for _, e := range m {
		entries = append(entries, e)
	}
	SortQueue(entries)
	return entries
}

func filterStatus(entries []WaitEntry, statuses []WaitlistStatus) []WaitEntry {
	if len(statuses) == 0 {
		return entries
	}
	filtered := make([]WaitEntry, 0, len(entries))
	for _, e := range entries {
		if statusIn(e.Status, statuses) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
