package domain

import "context"

// MinRejectionReasonLength is enforced before any decline mutation.
const MinRejectionReasonLength = 10

type ApproveCycleRequest struct {
	ID string
	// Comments are carried into the audit trail only; the schema has no
	// column for approval comments.
	Comments string
}

type DeclineCycleRequest struct {
	ID     string
	Reason string
}

type RecordPaymentRequest struct {
	ID               string
	PaymentStatus    string
	AccountingStatus string
	PaymentUTR       string
	MandateID        string
}

type UploadInvoiceRequest struct {
	ID            string
	InvoiceFileID string
}

type GetCycleRequest struct {
	ID string
}

type ListCyclesRequest struct {
	SubscriptionID string
}

type ListPendingApprovalRequest struct {
	DepartmentID string
}

// CycleView pairs a cycle with the actions its current state accepts.
type CycleView struct {
	PaymentCycle
	AllowedActions []Action `json:"allowed_actions"`
}

type Service interface {
	Approve(context.Context, ApproveCycleRequest) (PaymentCycle, error)
	Decline(context.Context, DeclineCycleRequest) (PaymentCycle, error)
	RecordPayment(context.Context, RecordPaymentRequest) (PaymentCycle, error)
	UploadInvoice(context.Context, UploadInvoiceRequest) (PaymentCycle, error)
	GetByID(context.Context, GetCycleRequest) (CycleView, error)
	ListBySubscription(context.Context, ListCyclesRequest) ([]PaymentCycle, error)
	ListPendingApproval(context.Context, ListPendingApprovalRequest) ([]PaymentCycle, error)
}
