package domain

import "errors"

var (
	// ErrCycleNotFound marks lookups for a cycle that does not exist.
	ErrCycleNotFound = errors.New("payment_cycle_not_found")

	// ErrInvalidTransition marks a (state, action) pair outside the table.
	ErrInvalidTransition = errors.New("invalid_cycle_transition")

	// ErrCycleStateChanged marks a conditional update that matched zero rows
	// because another writer advanced the cycle first.
	ErrCycleStateChanged = errors.New("cycle_state_changed")

	// ErrInvoiceAlreadyUploaded marks a second upload attempt.
	ErrInvoiceAlreadyUploaded = errors.New("invoice_already_uploaded")

	// ErrRejectionReasonRequired marks a decline without an adequate reason.
	ErrRejectionReasonRequired = errors.New("rejection_reason_required")

	ErrInvalidPaymentStatus    = errors.New("invalid_payment_status")
	ErrInvalidAccountingStatus = errors.New("invalid_accounting_status")
	ErrInvalidCycle            = errors.New("invalid_cycle")
	ErrInvalidID               = errors.New("invalid_id")
)
