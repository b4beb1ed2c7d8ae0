package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJobs(env *testEnv, refill bool) *JobProcessor {
	return NewJobProcessor(env.service, &JobConfig{
		ExpiryCheckInterval: time.Minute,
		ReminderInterval:    time.Minute,
		ReminderWindow:      2 * time.Hour,
		RefillOnExpiry:      refill,
		Now:                 env.clock.Now,
	})
}

func TestJobProcessor_RunExpiryRefills(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.events.add(10)
	entries := env.join(t, eventID, 4)

	_, err := env.service.NotifyWaitlistForAvailableSlots(context.Background(), eventID, 2, 1)
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)

	jobs := newTestJobs(env, true)
	assert.Equal(t, 2, jobs.RunExpiry(context.Background()))

	// the two freed slots went to the next two in line
	active := env.active(t, eventID)
	require.Len(t, active, 2)
	assert.Equal(t, []uuid.UUID{entries[2].UserID, entries[3].UserID}, usersOf(active))
	for _, e := range active {
		assert.Equal(t, StatusNotified, e.Status)
	}

	assert.Zero(t, jobs.RunExpiry(context.Background()))
}

func TestJobProcessor_RunExpiryWithoutRefill(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.events.add(10)
	env.join(t, eventID, 3)

	_, err := env.service.NotifyWaitlistForAvailableSlots(context.Background(), eventID, 1, 1)
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)

	jobs := newTestJobs(env, false)
	assert.Equal(t, 1, jobs.RunExpiry(context.Background()))

	for _, e := range env.active(t, eventID) {
		assert.Equal(t, StatusWaiting, e.Status)
	}
}

func TestJobProcessor_RunReminders(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.events.add(10)
	env.join(t, eventID, 2)

	_, err := env.service.NotifyWaitlistForAvailableSlots(context.Background(), eventID, 2, 1)
	require.NoError(t, err)

	jobs := newTestJobs(env, true)
	assert.Equal(t, 2, jobs.RunReminders(context.Background()))
	assert.Zero(t, jobs.RunReminders(context.Background()))
}

func TestJobProcessor_StartStop(t *testing.T) {
	env := newTestEnv(t)
	eventID := env.events.add(10)
	env.join(t, eventID, 1)

	_, err := env.service.NotifyWaitlistForAvailableSlots(context.Background(), eventID, 1, 1)
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)

	jobs := NewJobProcessor(env.service, &JobConfig{
		ExpiryCheckInterval: 5 * time.Millisecond,
		Now:                 env.clock.Now,
	})
	jobs.Start(context.Background())

	assert.Eventually(t, func() bool {
		n, err := env.store.CountByEvent(context.Background(), eventID, ActiveStatuses...)
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	jobs.Stop()
	jobs.Stop()
}

func TestJobProcessor_GetJobStatus(t *testing.T) {
	env := newTestEnv(t)
	status := newTestJobs(env, true).GetJobStatus()
	assert.Equal(t, "1m0s", status["expiry_check_interval"])
	assert.Equal(t, true, status["refill_on_expiry"])
}
