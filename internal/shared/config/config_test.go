package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_HOST", "KAFKA_BROKERS", "WAITLIST_LOCK_BACKEND", "WAITLIST_DEFAULT_DEADLINE_HOURS", "REDIS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, ":8080", cfg.GetServerAddress())
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.True(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "memory", cfg.Waitlist.LockBackend)
	assert.Equal(t, 24, cfg.Waitlist.DefaultResponseDeadlineHours)
	assert.True(t, cfg.Waitlist.RefillOnExpiry)
	assert.Contains(t, cfg.Database.DSN, "host=localhost")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("WAITLIST_MAX_SIZE", "500")
	t.Setenv("WAITLIST_RETAIN_REMOVED", "true")
	t.Setenv("WAITLIST_EXPIRY_INTERVAL", "30s")
	t.Setenv("JWT_EXPIRES_IN", "120")
	t.Setenv("RATE_LIMIT_WHITELISTED_IPS", "10.0.0.1,10.0.0.2")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 500, cfg.Waitlist.MaxSize)
	assert.True(t, cfg.Waitlist.RetainRemoved)
	assert.Equal(t, 30*time.Second, cfg.Waitlist.ExpiryCheckInterval)
	assert.Equal(t, 2*time.Minute, cfg.JWT.JWTExpiresIn)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.RateLimit.WhitelistedIPs)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("WAITLIST_MAX_SIZE", "lots")
	t.Setenv("WAITLIST_LOCK_TTL", "soon")
	t.Setenv("REDIS_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 0, cfg.Waitlist.MaxSize)
	assert.Equal(t, 10*time.Second, cfg.Waitlist.LockTTL)
	assert.True(t, cfg.Redis.Enabled)
}
