package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PaymentUpdate carries the column values for a payment recording write.
type PaymentUpdate struct {
	NextStatus       CycleStatus
	PaymentStatus    PaymentStatus
	AccountingStatus AccountingStatus
	PaymentUTR       *string
	MandateID        *string
	RecordedBy       *snowflake.ID
	RecordedAt       *time.Time
}

// Repository persists payment cycles. Mutating methods return the number of
// rows matched so callers can detect a lost compare-and-swap.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cycle *PaymentCycle) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentCycle, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentCycle, error)
	FindLatestBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*PaymentCycle, error)
	ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*PaymentCycle, error)
	ListPendingApprovalByDepartment(ctx context.Context, db *gorm.DB, departmentID snowflake.ID) ([]*PaymentCycle, error)
	ClaimOverdue(ctx context.Context, db *gorm.DB, today time.Time, limit int) ([]*PaymentCycle, error)

	UpdateApprove(ctx context.Context, db *gorm.DB, id, approvedBy snowflake.ID, now time.Time) (int64, error)
	UpdateDecline(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, expected CycleStatus, update PaymentUpdate, now time.Time) (int64, error)
	UpdateInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, next CycleStatus, fileID snowflake.ID, now time.Time) (int64, error)
	CancelOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error)
}
