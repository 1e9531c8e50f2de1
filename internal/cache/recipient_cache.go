package cache

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const defaultRecipientTTL = 10 * time.Minute

// RecipientCache memoizes POC email to user id lookups for notification
// fan-out. Entries expire so role or account changes are picked up.
type RecipientCache interface {
	GetUserID(email string) (snowflake.ID, bool)
	SetUserID(email string, userID snowflake.ID)
	Invalidate(email string)
}

type recipientCache struct {
	users Cache[string, snowflake.ID]
	ttl   time.Duration
}

// NewRecipientCache returns an in-memory cache tuned for notification sends.
func NewRecipientCache() RecipientCache {
	return &recipientCache{
		users: NewTTLCache[string, snowflake.ID](),
		ttl:   defaultRecipientTTL,
	}
}

func (c *recipientCache) GetUserID(email string) (snowflake.ID, bool) {
	key := recipientKey(email)
	if key == "" {
		return 0, false
	}
	return c.users.Get(key)
}

func (c *recipientCache) SetUserID(email string, userID snowflake.ID) {
	key := recipientKey(email)
	if key == "" || userID == 0 {
		return
	}
	c.users.Set(key, userID, c.ttl)
}

func (c *recipientCache) Invalidate(email string) {
	key := recipientKey(email)
	if key == "" {
		return
	}
	c.users.Delete(key)
}

func recipientKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
