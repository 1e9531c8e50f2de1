package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows cursor-paginated listings.
type ListFilter struct {
	Status       SubscriptionStatus
	DepartmentID snowflake.ID
	Cursor       *snowflake.ID
	Limit        int
}

// Repository persists subscriptions. UpdateStatus asserts the expected prior
// status and reports the number of rows matched.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Subscription, error)
	ListActive(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*Subscription, error)
	ListActiveEndingBefore(ctx context.Context, db *gorm.DB, today time.Time, afterID snowflake.ID, limit int) ([]*Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, next SubscriptionStatus, reason *string, now time.Time) (int64, error)
}
