// internal/scheduler/testing/helper.go
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/clock"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	"gorm.io/gorm"
)

// TimeAccelerator rewrites cycle dates so scheduled jobs fire without
// waiting out real calendar time. "Yesterday" and "today" come from the
// injected clock, matching whatever clock the sweeps run on.
type TimeAccelerator struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewTimeAccelerator(db *gorm.DB, clk clock.Clock) *TimeAccelerator {
	return &TimeAccelerator{db: db, clock: clk}
}

// FastForwardDeadline moves the invoice deadline to yesterday so the next
// cancellation sweep picks the cycle up.
func (ta *TimeAccelerator) FastForwardDeadline(ctx context.Context, cycleID snowflake.ID) error {
	now := ta.clock.Now().UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET invoice_deadline = ?, updated_at = ?
		 WHERE id = ? AND cycle_status = ? AND invoice_file_id IS NULL`,
		cycledomain.NormalizeDate(now).AddDate(0, 0, -1),
		now,
		cycleID,
		cycledomain.CycleStatusPaymentRecorded,
	).Error
}

// FastForwardAllAwaitingInvoice expires the deadline on every cycle still
// waiting for an invoice upload.
func (ta *TimeAccelerator) FastForwardAllAwaitingInvoice(ctx context.Context) (int64, error) {
	now := ta.clock.Now().UTC()
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET invoice_deadline = ?, updated_at = ?
		 WHERE cycle_status = ? AND invoice_file_id IS NULL AND invoice_deadline >= ?`,
		cycledomain.NormalizeDate(now).AddDate(0, 0, -1),
		now,
		cycledomain.CycleStatusPaymentRecorded,
		cycledomain.NormalizeDate(now),
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FastForwardSubscriptionDeadlines expires deadlines for one subscription.
func (ta *TimeAccelerator) FastForwardSubscriptionDeadlines(ctx context.Context, subscriptionID snowflake.ID) error {
	now := ta.clock.Now().UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET invoice_deadline = ?, updated_at = ?
		 WHERE subscription_id = ? AND cycle_status = ? AND invoice_file_id IS NULL`,
		cycledomain.NormalizeDate(now).AddDate(0, 0, -1),
		now,
		subscriptionID,
		cycledomain.CycleStatusPaymentRecorded,
	).Error
}

// SetCyclePeriod rewrites the cycle dates. Pulling the end date close to
// today pulls the next renewal into the creation window.
func (ta *TimeAccelerator) SetCyclePeriod(ctx context.Context, cycleID snowflake.ID, startDate, endDate time.Time) error {
	startDate = cycledomain.NormalizeDate(startDate)
	endDate = cycledomain.NormalizeDate(endDate)
	return ta.db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET cycle_start_date = ?, cycle_end_date = ?, invoice_deadline = ?, updated_at = ?
		 WHERE id = ?`,
		startDate,
		endDate,
		endDate,
		ta.clock.Now().UTC(),
		cycleID,
	).Error
}

// CycleInfo shows current cycle status for debugging
type CycleInfo struct {
	ID                snowflake.ID
	Status            cycledomain.CycleStatus
	CycleStartDate    time.Time
	CycleEndDate      time.Time
	InvoiceDeadline   time.Time
	DaysUntilDeadline int
	Cancellable       bool
}

func (ta *TimeAccelerator) GetCycleInfo(ctx context.Context, cycleID snowflake.ID) (*CycleInfo, error) {
	var cycle struct {
		ID              snowflake.ID
		CycleStatus     cycledomain.CycleStatus
		CycleStartDate  time.Time
		CycleEndDate    time.Time
		InvoiceDeadline time.Time
		InvoiceFileID   *snowflake.ID
	}

	result := ta.db.WithContext(ctx).Raw(
		`SELECT id, cycle_status, cycle_start_date, cycle_end_date, invoice_deadline, invoice_file_id
		 FROM payment_cycles
		 WHERE id = ?`,
		cycleID,
	).Scan(&cycle)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	today := cycledomain.NormalizeDate(ta.clock.Now().UTC())
	info := &CycleInfo{
		ID:                cycle.ID,
		Status:            cycle.CycleStatus,
		CycleStartDate:    cycle.CycleStartDate,
		CycleEndDate:      cycle.CycleEndDate,
		InvoiceDeadline:   cycle.InvoiceDeadline,
		DaysUntilDeadline: cycledomain.DaysBetween(today, cycle.InvoiceDeadline),
		Cancellable: cycle.CycleStatus == cycledomain.CycleStatusPaymentRecorded &&
			cycle.InvoiceFileID == nil &&
			cycledomain.NormalizeDate(cycle.InvoiceDeadline).Before(today),
	}

	return info, nil
}

// GetAwaitingInvoice returns every cycle still waiting for an upload,
// soonest deadline first.
func (ta *TimeAccelerator) GetAwaitingInvoice(ctx context.Context) ([]CycleInfo, error) {
	var cycles []struct {
		ID              snowflake.ID
		CycleStatus     cycledomain.CycleStatus
		CycleStartDate  time.Time
		CycleEndDate    time.Time
		InvoiceDeadline time.Time
	}

	err := ta.db.WithContext(ctx).Raw(
		`SELECT id, cycle_status, cycle_start_date, cycle_end_date, invoice_deadline
		 FROM payment_cycles
		 WHERE cycle_status = ? AND invoice_file_id IS NULL
		 ORDER BY invoice_deadline ASC`,
		cycledomain.CycleStatusPaymentRecorded,
	).Scan(&cycles).Error
	if err != nil {
		return nil, err
	}

	today := cycledomain.NormalizeDate(ta.clock.Now().UTC())
	infos := make([]CycleInfo, 0, len(cycles))
	for _, cycle := range cycles {
		infos = append(infos, CycleInfo{
			ID:                cycle.ID,
			Status:            cycle.CycleStatus,
			CycleStartDate:    cycle.CycleStartDate,
			CycleEndDate:      cycle.CycleEndDate,
			InvoiceDeadline:   cycle.InvoiceDeadline,
			DaysUntilDeadline: cycledomain.DaysBetween(today, cycle.InvoiceDeadline),
			Cancellable:       cycledomain.NormalizeDate(cycle.InvoiceDeadline).Before(today),
		})
	}

	return infos, nil
}

// ReinstateCancelled moves an auto-cancelled cycle back to awaiting invoice
// (dangerous, for testing only!)
func (ta *TimeAccelerator) ReinstateCancelled(ctx context.Context, cycleID snowflake.ID) error {
	now := ta.clock.Now().UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET cycle_status = ?,
		     poc_rejection_reason = NULL,
		     updated_at = ?
		 WHERE id = ? AND cycle_status = ?`,
		cycledomain.CycleStatusPaymentRecorded,
		now,
		cycleID,
		cycledomain.CycleStatusCancelled,
	).Error
}
