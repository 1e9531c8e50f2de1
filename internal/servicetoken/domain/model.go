package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// ServiceToken stores hashed machine credentials for non-interactive callers
// such as the cron trigger for scheduled jobs. Only the hash is persisted;
// the plain token is shown once at creation.
type ServiceToken struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	KeyID            string         `gorm:"column:key_id;type:text;not null;uniqueIndex:ux_service_tokens_key_id"`
	Name             string         `gorm:"type:text;not null"`
	Scopes           pq.StringArray `gorm:"type:text[];not null"`
	KeyHash          string         `gorm:"column:key_hash;type:text;not null"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt       *time.Time     `gorm:"column:last_used_at"`
	ExpiresAt        *time.Time     `gorm:"column:expires_at"`
	RotatedFromKeyID *string        `gorm:"column:rotated_from_key_id;type:text"`
}

// TableName sets the database table name.
func (ServiceToken) TableName() string { return "service_tokens" }

// HasScope reports whether the token carries the given scope.
func (t *ServiceToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the token has expired as of now.
func (t *ServiceToken) ExpiredAt(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return now.After(*t.ExpiresAt)
}
