// Package domain contains the subscription model and its lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillingFrequency determines the fixed length of each payment cycle.
type BillingFrequency string

const (
	BillingFrequencyMonthly    BillingFrequency = "MONTHLY"
	BillingFrequencyQuarterly  BillingFrequency = "QUARTERLY"
	BillingFrequencyYearly     BillingFrequency = "YEARLY"
	BillingFrequencyUsageBased BillingFrequency = "USAGE_BASED"
)

func (f BillingFrequency) Valid() bool {
	switch f {
	case BillingFrequencyMonthly, BillingFrequencyQuarterly, BillingFrequencyYearly, BillingFrequencyUsageBased:
		return true
	}
	return false
}

// CycleLengthDays returns the fixed cycle duration in days. Durations are
// day-counts, not calendar months; a MONTHLY cycle drifts against month
// boundaries over time.
func (f BillingFrequency) CycleLengthDays() int {
	switch f {
	case BillingFrequencyQuarterly:
		return 90
	case BillingFrequencyYearly:
		return 365
	default:
		return 30
	}
}

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusRejected  SubscriptionStatus = "REJECTED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusRejected,
		SubscriptionStatusExpired, SubscriptionStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further status changes are permitted.
func (s SubscriptionStatus) IsTerminal() bool {
	switch s {
	case SubscriptionStatusRejected, SubscriptionStatusExpired, SubscriptionStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a status change is one of the allowed pairs.
func CanTransition(from, to SubscriptionStatus) bool {
	switch from {
	case SubscriptionStatusPending:
		return to == SubscriptionStatusActive || to == SubscriptionStatusRejected
	case SubscriptionStatusActive:
		return to == SubscriptionStatusExpired || to == SubscriptionStatusCancelled
	}
	return false
}

// Subscription is a recurring agreement for a software tool. Payment cycles
// are only generated while Status is ACTIVE.
type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey"`
	ToolName         string             `gorm:"type:text;not null"`
	Vendor           string             `gorm:"type:text"`
	DepartmentID     snowflake.ID       `gorm:"not null;index"`
	POCEmail         string             `gorm:"column:poc_email;type:text;not null"`
	BillingFrequency BillingFrequency   `gorm:"type:text;not null"`
	StartDate        time.Time          `gorm:"type:date;not null"`
	EndDate          *time.Time         `gorm:"type:date"`
	Status           SubscriptionStatus `gorm:"type:text;not null;index"`
	RejectionReason  *string            `gorm:"type:text"`
	Metadata         datatypes.JSONMap  `gorm:"type:jsonb"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
