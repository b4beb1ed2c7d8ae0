package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"waitline/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides the per-event serialization boundary. Locks on different
// events never contend.
type Locker interface {
	Lock(ctx context.Context, eventID uuid.UUID) (unlock func(), err error)
}

// MutexLocker serializes callers within one process
type MutexLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// NewMutexLocker creates an in-process per-event locker
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[uuid.UUID]*refMutex)}
}

// Lock blocks until the event's mutex is held or ctx is done
func (l *MutexLocker) Lock(ctx context.Context, eventID uuid.UUID) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[eventID]
	if !ok {
		m = &refMutex{}
		l.locks[eventID] = m
	}
	m.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { l.release(eventID, m) }, nil
	case <-ctx.Done():
		// the goroutine still gets the mutex eventually; hand it straight back
		go func() {
			<-acquired
			l.release(eventID, m)
		}()
		return nil, fmt.Errorf("failed to lock waitlist for event %s: %w", eventID, ctx.Err())
	}
}

func (l *MutexLocker) release(eventID uuid.UUID, m *refMutex) {
	m.Unlock()
	l.mu.Lock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, eventID)
	}
	l.mu.Unlock()
}

// ErrLockTimeout is returned when a distributed lock could not be acquired in time
var ErrLockTimeout = errors.New("timed out waiting for waitlist lock")

// Lua script releasing the lock only when the caller still owns it
const luaCompareAndDelete = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLockerConfig contains configuration for the Redis locker
type RedisLockerConfig struct {
	TTL          time.Duration // lease; must exceed the longest unit of work
	WaitTimeout  time.Duration // how long Lock keeps retrying
	RetryBackoff time.Duration
}

// DefaultRedisLockerConfig returns default Redis locker configuration
func DefaultRedisLockerConfig() *RedisLockerConfig {
	return &RedisLockerConfig{
		TTL:          10 * time.Second,
		WaitTimeout:  5 * time.Second,
		RetryBackoff: 25 * time.Millisecond,
	}
}

// RedisLocker serializes callers across service instances sharing one Redis
type RedisLocker struct {
	redis   *redis.Client
	config  *RedisLockerConfig
	release *redis.Script
	log     *logger.Logger
}

// NewRedisLocker creates a Redis-backed per-event locker
func NewRedisLocker(client *redis.Client, config *RedisLockerConfig) *RedisLocker {
	if config == nil {
		config = DefaultRedisLockerConfig()
	}
	return &RedisLocker{
		redis:   client,
		config:  config,
		release: redis.NewScript(luaCompareAndDelete),
		log:     logger.GetDefault(),
	}
}

// Lock retries SET NX until it wins, WaitTimeout elapses or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, eventID uuid.UUID) (func(), error) {
	key := GetLockKey(eventID)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.config.WaitTimeout)
	defer cancel()

	for {
		ok, err := l.redis.SetNX(waitCtx, key, token, l.config.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("failed to acquire lock for event %s: %w", eventID, err)
		}
		if ok {
			return func() {
				// release on a fresh context so a cancelled caller still frees the lock
				releaseCtx, done := context.WithTimeout(context.Background(), time.Second)
				defer done()
				if err := l.release.Run(releaseCtx, l.redis, []string{key}, token).Err(); err != nil {
					// the lease TTL frees the key eventually
					l.log.WithError(err).WarnContext(releaseCtx, "Failed to release event lock",
						slog.String("event_id", eventID.String()),
					)
				}
			}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("failed to acquire lock for event %s: %w", eventID, ctx.Err())
			}
			return nil, fmt.Errorf("event %s: %w", eventID, ErrLockTimeout)
		case <-time.After(l.config.RetryBackoff):
		}
	}
}
