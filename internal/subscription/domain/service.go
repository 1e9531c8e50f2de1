package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/subtrack/pkg/db/pagination"
)

// MinRejectionReasonLength is enforced before any reject mutation.
const MinRejectionReasonLength = 10

type GetSubscriptionRequest struct {
	ID string
}

type ListSubscriptionsRequest struct {
	pagination.Request
	Status       string
	DepartmentID string
}

type ListSubscriptionsResponse struct {
	pagination.PageInfo
	Subscriptions []*Subscription `json:"subscriptions"`
}

type ActivateSubscriptionRequest struct {
	ID string
}

type RejectSubscriptionRequest struct {
	ID     string
	Reason string
}

type CancelSubscriptionRequest struct {
	ID string
}

type Service interface {
	GetByID(context.Context, GetSubscriptionRequest) (Subscription, error)
	List(context.Context, ListSubscriptionsRequest) (ListSubscriptionsResponse, error)
	Activate(context.Context, ActivateSubscriptionRequest) (Subscription, error)
	Reject(context.Context, RejectSubscriptionRequest) (Subscription, error)
	Cancel(context.Context, CancelSubscriptionRequest) (Subscription, error)
}

var (
	ErrSubscriptionNotFound      = errors.New("subscription_not_found")
	ErrInvalidSubscription       = errors.New("invalid_subscription")
	ErrInvalidSubscriptionStatus = errors.New("invalid_subscription_status")
	ErrSubscriptionStateChanged  = errors.New("subscription_state_changed")
	ErrRejectionReasonRequired   = errors.New("rejection_reason_required")
)
