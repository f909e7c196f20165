package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	queuedomain "github.com/smallbiznis/queueline/internal/queue/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Empty(t, c.entries)
}

func TestTTLCacheIgnoresNonPositiveTTL(t *testing.T) {
	c := newTTLCache[string, int](time.Now)
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("b", 2, time.Minute)
	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestProfileCache(t *testing.T) {
	c := NewProfileCache()

	c.SetProfile(0, queuedomain.Profile{FullName: "nobody"})
	_, ok := c.GetProfile(0)
	assert.False(t, ok)

	c.SetProfile(snowflake.ID(7), queuedomain.Profile{FullName: "Ana", PhoneNumber: "0800"})
	p, ok := c.GetProfile(snowflake.ID(7))
	assert.True(t, ok)
	assert.Equal(t, "Ana", p.FullName)
}
