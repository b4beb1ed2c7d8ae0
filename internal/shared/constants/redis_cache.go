package constants

import (
	"time"
)

// Redis Key Configuration
// Pattern: waitline:{module}:{operation}:{identifier}

const (
	CACHE_PREFIX = "waitline"
)

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_WAITLIST_STATS = 30 * time.Second // counts shift on every join/leave
)

// ================== WAITLIST MODULE ==================

const (
	CACHE_KEY_WAITLIST_STATS = CACHE_PREFIX + ":waitlist:stats:event:" // + event-id
	LOCK_KEY_WAITLIST_EVENT  = CACHE_PREFIX + ":waitlist:lock:event:"  // + event-id
)

// ================== RATE LIMITING ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit"
)

// ================== KEY BUILDERS ==================

func BuildWaitlistStatsKey(eventID string) string {
	return CACHE_KEY_WAITLIST_STATS + eventID
}

func BuildWaitlistLockKey(eventID string) string {
	return LOCK_KEY_WAITLIST_EVENT + eventID
}
