package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("PORT", "")

	cfg := Load()
	assert.Equal(t, "5000", cfg.HTTPPort)
	assert.Equal(t, LockBackendLocal, cfg.Lock.Backend)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "admin123", cfg.Bootstrap.AdminPassword)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "REDIS")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("QUEUE_LOCK_TTL", "2s")
	t.Setenv("QUEUE_TIMEZONE", "Asia/Jakarta")
	t.Setenv("LOGIN_RATE_LIMIT_ENABLED", "off")

	cfg := Load()
	assert.Equal(t, LockBackendRedis, cfg.Lock.Backend)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "Asia/Jakarta", cfg.Queue.TimeZone)
	assert.False(t, cfg.RateLimit.LoginEnabled)
}

func TestGetenvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("QUEUE_LOCK_TTL", "soon")
	assert.Equal(t, time.Second, getenvDuration("QUEUE_LOCK_TTL", time.Second))
}
