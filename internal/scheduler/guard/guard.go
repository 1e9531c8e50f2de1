// Package guard holds the pure preconditions the scheduled jobs check before
// touching a row. Keeping them free of database access makes the window and
// overdue rules directly testable.
package guard

import (
	"errors"
	"time"

	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
)

var (
	ErrSubscriptionNotActive = errors.New("subscription_not_active")
	ErrNoCycleHistory        = errors.New("subscription_has_no_cycles")
	ErrOutsideCreationWindow = errors.New("cycle_outside_creation_window")
	ErrCycleNotOverdue       = errors.New("cycle_not_overdue")
	ErrSubscriptionNotEnded  = errors.New("subscription_not_ended")
)

// EnsureSubscriptionCanSpawnCycle admits only active subscriptions into the
// cycle creation path. Listing already filters on status; this re-checks the
// row that was actually fetched.
func EnsureSubscriptionCanSpawnCycle(status subscriptiondomain.SubscriptionStatus) error {
	if status != subscriptiondomain.SubscriptionStatusActive {
		return ErrSubscriptionNotActive
	}
	return nil
}

// EnsureCycleWithinCreationWindow checks that the next cycle start falls
// within [today, today+windowDays]. Starts in the past are outside the
// window as well.
func EnsureCycleWithinCreationWindow(today, nextStart time.Time, windowDays int) error {
	days := cycledomain.DaysBetween(today, nextStart)
	if days < 0 || days > windowDays {
		return ErrOutsideCreationWindow
	}
	return nil
}

// EnsureCycleOverdue reports whether a cycle qualifies for auto-cancellation:
// payment recorded, no invoice attached, and the deadline strictly before
// today. A cycle is not overdue on the deadline day itself.
func EnsureCycleOverdue(cycle *cycledomain.PaymentCycle, today time.Time) error {
	if cycle == nil {
		return ErrCycleNotOverdue
	}
	if cycle.CycleStatus != cycledomain.CycleStatusPaymentRecorded {
		return ErrCycleNotOverdue
	}
	if cycle.HasInvoice() {
		return ErrCycleNotOverdue
	}
	deadline := cycledomain.NormalizeDate(cycle.InvoiceDeadline)
	if !deadline.Before(cycledomain.NormalizeDate(today)) {
		return ErrCycleNotOverdue
	}
	return nil
}

// EnsureSubscriptionExpired reports whether a subscription's end date has
// strictly passed. Open-ended subscriptions never expire.
func EnsureSubscriptionExpired(endDate *time.Time, today time.Time) error {
	if endDate == nil {
		return ErrSubscriptionNotEnded
	}
	if !cycledomain.NormalizeDate(*endDate).Before(cycledomain.NormalizeDate(today)) {
		return ErrSubscriptionNotEnded
	}
	return nil
}
