package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	queuedomain "github.com/smallbiznis/queueline/internal/queue/domain"
)

const defaultProfileTTL = 5 * time.Minute

// ProfileCache holds display fields for queue listings. Roles are never
// cached; authorization always reads them fresh.
type ProfileCache interface {
	GetProfile(userID snowflake.ID) (queuedomain.Profile, bool)
	SetProfile(userID snowflake.ID, profile queuedomain.Profile)
}

type profileCache struct {
	profiles Cache[snowflake.ID, queuedomain.Profile]
	ttl      time.Duration
}

func NewProfileCache() ProfileCache {
	return &profileCache{
		profiles: NewTTLCache[snowflake.ID, queuedomain.Profile](),
		ttl:      defaultProfileTTL,
	}
}

func (c *profileCache) GetProfile(userID snowflake.ID) (queuedomain.Profile, bool) {
	return c.profiles.Get(userID)
}

func (c *profileCache) SetProfile(userID snowflake.ID, profile queuedomain.Profile) {
	if userID == 0 {
		return
	}
	c.profiles.Set(userID, profile, c.ttl)
}
