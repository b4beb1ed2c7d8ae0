package waitlist

import (
	"context"
	"testing"

	"waitline/pkg/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueries_Stats(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.events.add(10)
	entries := env.join(t, eventID, 4)

	_, err := env.service.NotifyWaitlistForAvailableSlots(context.Background(), eventID, 2, 24)
	require.NoError(t, err)
	_, err = env.service.RespondToOffer(context.Background(), entries[0].ID, false)
	require.NoError(t, err)

	queries := NewQueries(env.store, nil, 0)
	stats, err := queries.Stats(context.Background(), eventID)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 2, stats.ByStatus[StatusWaiting])
	assert.Equal(t, 1, stats.ByStatus[StatusNotified])
	assert.Equal(t, 1, stats.ByStatus[StatusDeclined])
}

func TestQueries_StatsCachedAndInvalidated(t *testing.T) {
	mr, client := newTestRedis(t)
	cacheService := cache.NewService(client)

	env := newTestEnv(t)
	eventID := env.events.add(10)
	svc := NewService(Dependencies{
		Store:        env.store,
		Events:       env.events,
		Participants: env.participants,
		Cache:        cacheService,
		Logger:       newTestLogger(),
	}, nil)
	queries := NewQueries(env.store, cacheService, 0)
	ctx := context.Background()

	_, err := svc.AddToWaitingList(ctx, eventID, uuid.New(), "")
	require.NoError(t, err)

	stats, err := queries.Stats(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Active)
	assert.True(t, mr.Exists(GetStatsKey(eventID)))

	// a write through the engine drops the cached copy
	_, err = svc.AddToWaitingList(ctx, eventID, uuid.New(), "")
	require.NoError(t, err)
	assert.False(t, mr.Exists(GetStatsKey(eventID)))

	stats, err = queries.Stats(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Active)
}

func TestQueries_StatsFallsBackWhenCacheDown(t *testing.T) {
	mr, client := newTestRedis(t)
	env := newTestEnv(t)
	eventID := env.events.add(10)
	env.join(t, eventID, 2)
	mr.Close()

	queries := NewQueries(env.store, cache.NewService(client), 0)
	stats, err := queries.Stats(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Active)
}

func TestQueries_Reads(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.events.add(10)
	entries := env.join(t, eventID, 3)
	_, err := env.service.NotifyWaitlistForAvailableSlots(context.Background(), eventID, 1, 24)
	require.NoError(t, err)

	queries := NewQueries(env.store, nil, 0)
	ctx := context.Background()

	all, err := queries.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	waiting, err := queries.ListByEventAndStatus(ctx, eventID, StatusWaiting)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{entries[1].UserID, entries[2].UserID}, usersOf(waiting))

	count, err := queries.CountByEventAndStatus(ctx, eventID, StatusNotified)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mine, err := queries.ListByUser(ctx, entries[0].UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	got, err := queries.Get(ctx, entries[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Position)

	found, err := queries.Find(ctx, eventID, entries[1].UserID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.Position)

	none, err := queries.Find(ctx, eventID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestQueries_ListByEventPutsClosedEntriesLast(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	eventID := env.events.add(10)
	entries := env.join(t, eventID, 3)

	_, err := env.service.NotifyWaitlistForAvailableSlots(ctx, eventID, 1, 24)
	require.NoError(t, err)
	_, err = env.service.RespondToOffer(ctx, entries[0].ID, false)
	require.NoError(t, err)
	env.join(t, eventID, 1)

	// the declined entry still holds position 1, as does the new queue head
	all, err := NewQueries(env.store, nil, 0).ListByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []WaitlistStatus{StatusWaiting, StatusWaiting, StatusWaiting, StatusDeclined},
		[]WaitlistStatus{all[0].Status, all[1].Status, all[2].Status, all[3].Status})
	assert.Equal(t, entries[1].UserID, all[0].UserID)
	assert.Equal(t, entries[0].ID, all[3].ID)
}
