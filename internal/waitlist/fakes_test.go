package waitlist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"waitline/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	return logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
}

// fakeEvents is an in-memory EventStore
type fakeEvents struct {
	mu         sync.Mutex
	capacities map[uuid.UUID]int
	err        error
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{capacities: make(map[uuid.UUID]int)}
}

func (f *fakeEvents) add(capacity int) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.capacities[id] = capacity
	return id
}

func (f *fakeEvents) GetCapacity(ctx context.Context, eventID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	capacity, ok := f.capacities[eventID]
	if !ok {
		return 0, eventNotFound(eventID)
	}
	return capacity, nil
}

func (f *fakeEvents) Exists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.capacities[eventID]
	return ok, nil
}

// fakeParticipants is an in-memory ParticipationStore that counts writes
type fakeParticipants struct {
	mu         sync.Mutex
	confirmed  map[uuid.UUID]map[uuid.UUID]bool
	writes     int
	confirmErr error
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{confirmed: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (f *fakeParticipants) seed(eventID uuid.UUID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmed[eventID] == nil {
		f.confirmed[eventID] = make(map[uuid.UUID]bool)
	}
	for i := 0; i < n; i++ {
		f.confirmed[eventID][uuid.New()] = true
	}
}

func (f *fakeParticipants) CountConfirmed(ctx context.Context, eventID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmed[eventID]), nil
}

func (f *fakeParticipants) IsConfirmed(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmed[eventID][userID], nil
}

func (f *fakeParticipants) Confirm(ctx context.Context, eventID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	if f.confirmed[eventID] == nil {
		f.confirmed[eventID] = make(map[uuid.UUID]bool)
	}
	f.confirmed[eventID][userID] = true
	f.writes++
	return nil
}

func (f *fakeParticipants) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// recordingNotifier captures every message it is asked to send
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Message
	fail map[uuid.UUID]bool
}

func (n *recordingNotifier) Send(ctx context.Context, userID uuid.UUID, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[userID] {
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent...)
}

// mockNotifier is a testify mock for asserting exact notifier calls
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, userID uuid.UUID, msg Message) error {
	args := m.Called(ctx, userID, msg)
	return args.Error(0)
}

// failingStore wraps a Store and fails the nth Update inside Atomic
type failingStore struct {
	Store
	failOnUpdate int
}

func (f *failingStore) Atomic(ctx context.Context, eventID uuid.UUID, fn func(ctx context.Context, tx EventTx) error) error {
	return f.Store.Atomic(ctx, eventID, func(ctx context.Context, tx EventTx) error {
		return fn(ctx, &failingTx{EventTx: tx, failOn: f.failOnUpdate})
	})
}

type failingTx struct {
	EventTx
	failOn  int
	updates int
}

var errStoreDown = errors.New("store unavailable")

func (t *failingTx) Update(ctx context.Context, entry *WaitEntry) error {
	t.updates++
	if t.updates == t.failOn {
		return errStoreDown
	}
	return t.EventTx.Update(ctx, entry)
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	service      Service
	store        *MemoryStore
	events       *fakeEvents
	participants *fakeParticipants
	notifier     *recordingNotifier
	clock        *testClock
}

func newTestEnv(t *testing.T, opts ...func(*ServiceConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		store:        NewMemoryStore(),
		events:       newFakeEvents(),
		participants: newFakeParticipants(),
		notifier:     &recordingNotifier{fail: make(map[uuid.UUID]bool)},
		clock:        newTestClock(),
	}
	config := DefaultServiceConfig()
	config.Now = env.clock.Now
	for _, opt := range opts {
		opt(config)
	}
	env.service = NewService(Dependencies{
		Store:        env.store,
		Events:       env.events,
		Participants: env.participants,
		Notifier:     env.notifier,
		Logger:       newTestLogger(),
	}, config)
	return env
}

// join adds n users to the event, advancing the clock between joins
func (env *testEnv) join(t *testing.T, eventID uuid.UUID, n int) []WaitEntry {
	t.Helper()
	entries := make([]WaitEntry, 0, n)
	for i := 0; i < n; i++ {
		entry, err := env.service.AddToWaitingList(context.Background(), eventID, uuid.New(), "")
		require.NoError(t, err)
		entries = append(entries, *entry)
		env.clock.Advance(time.Second)
	}
	return entries
}

func (env *testEnv) active(t *testing.T, eventID uuid.UUID) []WaitEntry {
	t.Helper()
	entries, err := env.store.ListByEvent(context.Background(), eventID, ActiveStatuses...)
	require.NoError(t, err)
	return entries
}

func positionsOf(entries []WaitEntry) []int {
	positions := make([]int, 0, len(entries))
	for _, e := range entries {
		positions = append(positions, e.Position)
	}
	return positions
}

func usersOf(entries []WaitEntry) []uuid.UUID {
	users := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		users = append(users, e.UserID)
	}
	return users
}
