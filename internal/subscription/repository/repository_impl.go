package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, tool_name, vendor, department_id, poc_email, billing_frequency,
	 start_date, end_date, status, rejection_reason, metadata, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE id = ?
		 FOR UPDATE`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter subscriptiondomain.ListFilter) ([]*subscriptiondomain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE 1=1`
	args := make([]interface{}, 0, 4)

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.DepartmentID != 0 {
		query += ` AND department_id = ?`
		args = append(args, filter.DepartmentID)
	}
	if filter.Cursor != nil {
		query += ` AND id > ?`
		args = append(args, *filter.Cursor)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, filter.Limit)

	var subscriptions []*subscriptiondomain.Subscription
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*subscriptiondomain.Subscription, error) {
	var subscriptions []*subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status = ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		subscriptiondomain.SubscriptionStatusActive,
		afterID,
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) ListActiveEndingBefore(ctx context.Context, db *gorm.DB, today time.Time, afterID snowflake.ID, limit int) ([]*subscriptiondomain.Subscription, error) {
	var subscriptions []*subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status = ? AND end_date IS NOT NULL AND end_date < ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		subscriptiondomain.SubscriptionStatusActive,
		today,
		afterID,
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected, next subscriptiondomain.SubscriptionStatus, reason *string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, rejection_reason = COALESCE(?, rejection_reason), updated_at = ?
		 WHERE id = ? AND status = ?`,
		next,
		reason,
		now,
		id,
		expected,
	)
	return result.RowsAffected, result.Error
}
