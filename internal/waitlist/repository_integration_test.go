package waitlist_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"waitline/internal/events"
	"waitline/internal/participation"
	"waitline/internal/shared/database"
	"waitline/internal/waitlist"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB connects to the database named by WAITLIST_TEST_DATABASE_DSN and
// skips the test when it is unset.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("WAITLIST_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("WAITLIST_TEST_DATABASE_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.MigrateConstraints(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newPostgresService(t *testing.T, db *gorm.DB) (waitlist.Service, waitlist.Store, events.Repository) {
	t.Helper()
	store := waitlist.NewRepository(db)
	eventRepo := events.NewRepository(db)
	svc := waitlist.NewService(waitlist.Dependencies{
		Store:        store,
		Events:       eventRepo,
		Participants: participation.NewRepository(db),
	}, nil)
	return svc, store, eventRepo
}

func createEvent(t *testing.T, repo events.Repository, capacity int) uuid.UUID {
	t.Helper()
	event := &events.Event{
		Name:          "Integration " + uuid.NewString()[:8],
		Venue:         "Test Hall",
		DateTime:      time.Now().Add(48 * time.Hour),
		TotalCapacity: capacity,
		Status:        events.EventStatusPublished,
		CreatedBy:     uuid.New(),
	}
	require.NoError(t, repo.Create(context.Background(), event))
	return event.ID
}

func TestPostgres_ConcurrentJoinsStayDense(t *testing.T) {
	db := openTestDB(t)
	svc, store, eventRepo := newPostgresService(t, db)
	ctx := context.Background()
	eventID := createEvent(t, eventRepo, 5)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddToWaitingList(ctx, eventID, uuid.New(), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := store.ListByEvent(ctx, eventID, waitlist.ActiveStatuses...)
	require.NoError(t, err)
	require.Len(t, entries, 20)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
	}
}

func TestPostgres_DuplicateActiveEntryRejected(t *testing.T) {
	db := openTestDB(t)
	svc, _, eventRepo := newPostgresService(t, db)
	ctx := context.Background()
	eventID := createEvent(t, eventRepo, 5)
	userID := uuid.New()

	_, err := svc.AddToWaitingList(ctx, eventID, userID, "")
	require.NoError(t, err)

	_, err = svc.AddToWaitingList(ctx, eventID, userID, "")
	assert.ErrorIs(t, err, waitlist.ErrDuplicateActiveEntry)
}

func TestPostgres_PromoteCommitsWithParticipation(t *testing.T) {
	db := openTestDB(t)
	svc, store, eventRepo := newPostgresService(t, db)
	ctx := context.Background()
	eventID := createEvent(t, eventRepo, 2)

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, u := range users {
		_, err := svc.AddToWaitingList(ctx, eventID, u, "")
		require.NoError(t, err)
	}

	promoted, err := svc.AutoPromoteFromWaitingList(ctx, eventID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)

	count, err := participation.NewRepository(db).CountConfirmed(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	active, err := store.ListByEvent(ctx, eventID, waitlist.ActiveStatuses...)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, users[2], active[0].UserID)
	assert.Equal(t, 1, active[0].Position)

	// promoting again neither writes nor fails
	again, err := svc.PromoteToParticipant(ctx, eventID, users[0])
	require.NoError(t, err)
	assert.False(t, again)
}
