package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis when REDIS_TEST_ADDR is set.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisAcquireRelease(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedis(client, 5*time.Second)
	ctx := context.Background()
	key := "queueline:test:" + uuid.NewString()

	release, err := l.Acquire(ctx, key, time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, 60*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, key, time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedis(client, 5*time.Second)
	ctx := context.Background()
	key := "queueline:test:" + uuid.NewString()

	require.NoError(t, client.Set(ctx, key, "someone-else", time.Minute).Err())
	require.NoError(t, l.release(ctx, key, "mine"))

	val, err := client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestNilRedisLocker(t *testing.T) {
	var l *Redis
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, NewRedis(nil, time.Second))
}
