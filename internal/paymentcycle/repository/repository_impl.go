package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const cycleColumns = `id, subscription_id, cycle_number, cycle_start_date, cycle_end_date,
	 invoice_deadline, cycle_status, poc_approval_status, payment_status, accounting_status,
	 payment_utr, mandate_id, invoice_file_id, poc_rejection_reason,
	 payment_recorded_by, payment_recorded_at, poc_approved_by, poc_approved_at,
	 invoice_uploaded_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cycle *domain.PaymentCycle) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_cycles (
			id, subscription_id, cycle_number, cycle_start_date, cycle_end_date,
			invoice_deadline, cycle_status, poc_approval_status, payment_status, accounting_status,
			payment_utr, mandate_id, invoice_file_id, poc_rejection_reason,
			payment_recorded_by, payment_recorded_at, poc_approved_by, poc_approved_at,
			invoice_uploaded_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cycle.ID,
		cycle.SubscriptionID,
		cycle.CycleNumber,
		cycle.CycleStartDate,
		cycle.CycleEndDate,
		cycle.InvoiceDeadline,
		cycle.CycleStatus,
		cycle.POCApprovalStatus,
		cycle.PaymentStatus,
		cycle.AccountingStatus,
		cycle.PaymentUTR,
		cycle.MandateID,
		cycle.InvoiceFileID,
		cycle.POCRejectionReason,
		cycle.PaymentRecordedBy,
		cycle.PaymentRecordedAt,
		cycle.POCApprovedBy,
		cycle.POCApprovedAt,
		cycle.InvoiceUploadedAt,
		cycle.CreatedAt,
		cycle.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentCycle, error) {
	var cycle domain.PaymentCycle
	err := db.WithContext(ctx).Raw(
		`SELECT `+cycleColumns+`
		 FROM payment_cycles WHERE id = ?`,
		id,
	).Scan(&cycle).Error
	if err != nil {
		return nil, err
	}
	if cycle.ID == 0 {
		return nil, nil
	}
	return &cycle, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentCycle, error) {
	var cycle domain.PaymentCycle
	err := db.WithContext(ctx).Raw(
		`SELECT `+cycleColumns+`
		 FROM payment_cycles WHERE id = ?
		 FOR UPDATE`,
		id,
	).Scan(&cycle).Error
	if err != nil {
		return nil, err
	}
	if cycle.ID == 0 {
		return nil, nil
	}
	return &cycle, nil
}

func (r *repo) FindLatestBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*domain.PaymentCycle, error) {
	var cycle domain.PaymentCycle
	err := db.WithContext(ctx).Raw(
		`SELECT `+cycleColumns+`
		 FROM payment_cycles
		 WHERE subscription_id = ?
		 ORDER BY cycle_number DESC
		 LIMIT 1`,
		subscriptionID,
	).Scan(&cycle).Error
	if err != nil {
		return nil, err
	}
	if cycle.ID == 0 {
		return nil, nil
	}
	return &cycle, nil
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*domain.PaymentCycle, error) {
	var cycles []*domain.PaymentCycle
	err := db.WithContext(ctx).Raw(
		`SELECT `+cycleColumns+`
		 FROM payment_cycles
		 WHERE subscription_id = ?
		 ORDER BY cycle_number ASC`,
		subscriptionID,
	).Scan(&cycles).Error
	if err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *repo) ListPendingApprovalByDepartment(ctx context.Context, db *gorm.DB, departmentID snowflake.ID) ([]*domain.PaymentCycle, error) {
	var cycles []*domain.PaymentCycle
	err := db.WithContext(ctx).Raw(
		`SELECT pc.id, pc.subscription_id, pc.cycle_number, pc.cycle_start_date, pc.cycle_end_date,
		        pc.invoice_deadline, pc.cycle_status, pc.poc_approval_status, pc.payment_status, pc.accounting_status,
		        pc.payment_utr, pc.mandate_id, pc.invoice_file_id, pc.poc_rejection_reason,
		        pc.payment_recorded_by, pc.payment_recorded_at, pc.poc_approved_by, pc.poc_approved_at,
		        pc.invoice_uploaded_at, pc.created_at, pc.updated_at
		 FROM payment_cycles pc
		 JOIN subscriptions s ON s.id = pc.subscription_id
		 WHERE s.department_id = ? AND pc.cycle_status = ?
		 ORDER BY pc.cycle_start_date ASC, pc.id ASC`,
		departmentID,
		domain.CycleStatusPendingApproval,
	).Scan(&cycles).Error
	if err != nil {
		return nil, err
	}
	return cycles, nil
}

// ClaimOverdue locks the batch of overdue cycles for this worker. SKIP LOCKED
// lets concurrent job runs split the backlog instead of serializing on it.
func (r *repo) ClaimOverdue(ctx context.Context, db *gorm.DB, today time.Time, limit int) ([]*domain.PaymentCycle, error) {
	var cycles []*domain.PaymentCycle
	err := db.WithContext(ctx).Raw(
		`SELECT `+cycleColumns+`
		 FROM payment_cycles
		 WHERE cycle_status = ? AND invoice_file_id IS NULL AND invoice_deadline < ?
		 ORDER BY invoice_deadline ASC, id ASC
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		domain.CycleStatusPaymentRecorded,
		domain.NormalizeDate(today),
		limit,
	).Scan(&cycles).Error
	if err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *repo) UpdateApprove(ctx context.Context, db *gorm.DB, id, approvedBy snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET cycle_status = ?, poc_approval_status = ?, poc_approved_by = ?, poc_approved_at = ?, updated_at = ?
		 WHERE id = ? AND cycle_status = ?`,
		domain.CycleStatusPendingPayment,
		domain.ApprovalStatusApproved,
		approvedBy,
		now,
		now,
		id,
		domain.CycleStatusPendingApproval,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateDecline(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET cycle_status = ?, poc_approval_status = ?, poc_rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND cycle_status = ?`,
		domain.CycleStatusRejected,
		domain.ApprovalStatusRejected,
		reason,
		now,
		id,
		domain.CycleStatusPendingApproval,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, expected domain.CycleStatus, update domain.PaymentUpdate, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET cycle_status = ?, payment_status = ?, accounting_status = ?, payment_utr = ?,
		     mandate_id = ?, payment_recorded_by = ?, payment_recorded_at = ?, updated_at = ?
		 WHERE id = ? AND cycle_status = ?`,
		update.NextStatus,
		update.PaymentStatus,
		update.AccountingStatus,
		update.PaymentUTR,
		update.MandateID,
		update.RecordedBy,
		update.RecordedAt,
		now,
		id,
		expected,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, next domain.CycleStatus, fileID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET cycle_status = ?, invoice_file_id = ?, invoice_uploaded_at = ?, updated_at = ?
		 WHERE id = ? AND cycle_status = ? AND invoice_file_id IS NULL`,
		next,
		fileID,
		now,
		now,
		id,
		domain.CycleStatusPaymentRecorded,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) CancelOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_cycles
		 SET cycle_status = ?, poc_rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND cycle_status = ? AND invoice_file_id IS NULL`,
		domain.CycleStatusCancelled,
		reason,
		now,
		id,
		domain.CycleStatusPaymentRecorded,
	)
	return result.RowsAffected, result.Error
}
