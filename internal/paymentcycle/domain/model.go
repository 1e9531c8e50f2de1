// Package domain contains the payment cycle lifecycle model: one row per
// billing period, advanced by POC approval, finance payment recording,
// invoice upload, and the scheduled creation/cancellation jobs.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CycleStatus is the primary lifecycle state of a payment cycle.
type CycleStatus string

const (
	CycleStatusPendingPayment  CycleStatus = "PENDING_PAYMENT"
	CycleStatusPaymentRecorded CycleStatus = "PAYMENT_RECORDED"
	CycleStatusPendingApproval CycleStatus = "PENDING_APPROVAL"
	CycleStatusApproved        CycleStatus = "APPROVED"
	CycleStatusRejected        CycleStatus = "REJECTED"
	CycleStatusInvoiceUploaded CycleStatus = "INVOICE_UPLOADED"
	CycleStatusCompleted       CycleStatus = "COMPLETED"
	CycleStatusCancelled       CycleStatus = "CANCELLED"
)

func (s CycleStatus) Valid() bool {
	switch s {
	case CycleStatusPendingPayment,
		CycleStatusPaymentRecorded,
		CycleStatusPendingApproval,
		CycleStatusApproved,
		CycleStatusRejected,
		CycleStatusInvoiceUploaded,
		CycleStatusCompleted,
		CycleStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition may leave the state.
func (s CycleStatus) IsTerminal() bool {
	switch s {
	case CycleStatusCompleted, CycleStatusRejected, CycleStatusCancelled:
		return true
	default:
		return false
	}
}

// ApprovalStatus tracks the POC's renewal decision independently of the
// primary lifecycle state.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks the finance-side payment outcome.
type PaymentStatus string

const (
	PaymentStatusPaid       PaymentStatus = "PAID"
	PaymentStatusInProgress PaymentStatus = "IN_PROGRESS"
	PaymentStatusDeclined   PaymentStatus = "DECLINED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusInProgress, PaymentStatusDeclined:
		return true
	default:
		return false
	}
}

// AccountingStatus tracks whether finance has reconciled the cycle.
type AccountingStatus string

const (
	AccountingStatusPending AccountingStatus = "PENDING"
	AccountingStatusDone    AccountingStatus = "DONE"
)

func (s AccountingStatus) Valid() bool {
	switch s {
	case AccountingStatusPending, AccountingStatusDone:
		return true
	default:
		return false
	}
}

// AutoCancelReason is stored verbatim when the cancellation job closes an
// overdue cycle. Downstream tooling matches on the exact string.
const AutoCancelReason = "Invoice not uploaded by deadline - auto-cancelled"

// PaymentCycle is one billing period's approval/payment/invoice record.
// Dates are calendar days normalized to midnight UTC.
type PaymentCycle struct {
	ID                 snowflake.ID     `gorm:"primaryKey" json:"id"`
	SubscriptionID     snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_payment_cycles_subscription_number" json:"subscription_id"`
	CycleNumber        int              `gorm:"not null;uniqueIndex:ux_payment_cycles_subscription_number" json:"cycle_number"`
	CycleStartDate     time.Time        `gorm:"type:date;not null" json:"cycle_start_date"`
	CycleEndDate       time.Time        `gorm:"type:date;not null" json:"cycle_end_date"`
	InvoiceDeadline    time.Time        `gorm:"type:date;not null" json:"invoice_deadline"`
	CycleStatus        CycleStatus      `gorm:"type:text;not null" json:"cycle_status"`
	POCApprovalStatus  ApprovalStatus   `gorm:"column:poc_approval_status;type:text;not null" json:"poc_approval_status"`
	PaymentStatus      PaymentStatus    `gorm:"type:text;not null" json:"payment_status"`
	AccountingStatus   AccountingStatus `gorm:"type:text;not null" json:"accounting_status"`
	PaymentUTR         *string          `gorm:"column:payment_utr" json:"payment_utr,omitempty"`
	MandateID          *string          `gorm:"column:mandate_id" json:"mandate_id,omitempty"`
	InvoiceFileID      *snowflake.ID    `gorm:"column:invoice_file_id" json:"invoice_file_id,omitempty"`
	POCRejectionReason *string          `gorm:"column:poc_rejection_reason" json:"poc_rejection_reason,omitempty"`
	PaymentRecordedBy  *snowflake.ID    `gorm:"" json:"payment_recorded_by,omitempty"`
	PaymentRecordedAt  *time.Time       `gorm:"" json:"payment_recorded_at,omitempty"`
	POCApprovedBy      *snowflake.ID    `gorm:"column:poc_approved_by" json:"poc_approved_by,omitempty"`
	POCApprovedAt      *time.Time       `gorm:"column:poc_approved_at" json:"poc_approved_at,omitempty"`
	InvoiceUploadedAt  *time.Time       `gorm:"" json:"invoice_uploaded_at,omitempty"`
	CreatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PaymentCycle) TableName() string { return "payment_cycles" }

// HasInvoice reports whether an invoice file has been attached.
func (c *PaymentCycle) HasInvoice() bool {
	return c != nil && c.InvoiceFileID != nil && *c.InvoiceFileID != 0
}

// FullChainPresent reports whether approval, payment, and invoice are all in
// place, the condition for landing on COMPLETED.
func (c *PaymentCycle) FullChainPresent() bool {
	if c == nil {
		return false
	}
	return c.POCApprovalStatus == ApprovalStatusApproved &&
		c.PaymentStatus == PaymentStatusPaid &&
		c.HasInvoice()
}

// NormalizeDate truncates to midnight UTC so day arithmetic is exact.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative when b
// precedes a). Both arguments are normalized first.
func DaysBetween(a, b time.Time) int {
	a = NormalizeDate(a)
	b = NormalizeDate(b)
	return int(b.Sub(a).Hours() / 24)
}
