package waitlist

import (
	"context"
	"log/slog"
	"time"

	"waitline/internal/shared/constants"
	"waitline/pkg/cache"
	"waitline/pkg/logger"

	"github.com/google/uuid"
)

// DefaultStatsTTL is how long cached waitlist statistics stay valid
const DefaultStatsTTL = constants.TTL_WAITLIST_STATS

// Stats is the per-status breakdown of an event's waitlist
type Stats struct {
	EventID   uuid.UUID              `json:"event_id"`
	Active    int                    `json:"active"`
	Total     int                    `json:"total"`
	ByStatus  map[WaitlistStatus]int `json:"by_status"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Queries is the read-only view over the waitlist consumed by controllers
type Queries struct {
	store    Store
	cache    cache.Service
	statsTTL time.Duration
	log      *logger.Logger
}

// NewQueries creates the query facade. cache may be nil.
func NewQueries(store Store, cacheService cache.Service, statsTTL time.Duration) *Queries {
	if statsTTL <= 0 {
		statsTTL = DefaultStatsTTL
	}
	return &Queries{store: store, cache: cacheService, statsTTL: statsTTL, log: logger.GetDefault()}
}

// ListByEvent returns the event's queue in position order followed by its
// closed entries in join order
func (q *Queries) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]WaitEntry, error) {
	return q.store.ListByEvent(ctx, eventID)
}

// ListByUser returns every entry of the user across events
func (q *Queries) ListByUser(ctx context.Context, userID uuid.UUID) ([]WaitEntry, error) {
	return q.store.ListByUser(ctx, userID)
}

// ListByEventAndStatus returns the event's entries in one status, in position order
func (q *Queries) ListByEventAndStatus(ctx context.Context, eventID uuid.UUID, status WaitlistStatus) ([]WaitEntry, error) {
	return q.store.ListByEvent(ctx, eventID, status)
}

// CountByEventAndStatus counts the event's entries in one status
func (q *Queries) CountByEventAndStatus(ctx context.Context, eventID uuid.UUID, status WaitlistStatus) (int, error) {
	return q.store.CountByEvent(ctx, eventID, status)
}

// Get returns one entry by id
func (q *Queries) Get(ctx context.Context, id uuid.UUID) (*WaitEntry, error) {
	return q.store.FindByID(ctx, id)
}

// Find returns the user's active entry for the event, or nil
func (q *Queries) Find(ctx context.Context, eventID, userID uuid.UUID) (*WaitEntry, error) {
	return q.store.FindActive(ctx, eventID, userID)
}

// Stats returns per-status counts, served from cache when available
func (q *Queries) Stats(ctx context.Context, eventID uuid.UUID) (*Stats, error) {
	if q.cache == nil {
		return q.computeStats(ctx, eventID)
	}

	// A snapshot computed before a commit can land after that commit's
	// invalidation; it is then stale until statsTTL runs out.
	var stats Stats
	err := q.cache.GetOrSet(ctx, GetStatsKey(eventID), q.statsTTL, func() (interface{}, error) {
		return q.computeStats(ctx, eventID)
	}, &stats)
	if err == nil {
		return &stats, nil
	}

	// a broken cache must not take the read path down with it
	q.log.WarnContext(ctx, "Waitlist stats cache unavailable",
		slog.String("event_id", eventID.String()),
		slog.String("error", err.Error()),
	)
	return q.computeStats(ctx, eventID)
}

func (q *Queries) computeStats(ctx context.Context, eventID uuid.UUID) (*Stats, error) {
	entries, err := q.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		EventID:   eventID,
		Total:     len(entries),
		ByStatus:  make(map[WaitlistStatus]int),
		UpdatedAt: time.Now(),
	}
	for _, e := range entries {
		stats.ByStatus[e.Status]++
		if e.IsActive() {
			stats.Active++
		}
	}
	return stats, nil
}
