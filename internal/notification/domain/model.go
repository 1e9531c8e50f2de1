// Package domain defines the notification rows written for lifecycle events.
// The rows are consumed by the UI elsewhere; nothing here reads them back.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type NotificationType string

const NotificationTypePaymentUpdate NotificationType = "PAYMENT_UPDATE"

type Notification struct {
	ID             snowflake.ID     `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID     `gorm:"not null;index" json:"user_id"`
	Type           NotificationType `gorm:"type:text;not null" json:"type"`
	Title          string           `gorm:"type:text;not null" json:"title"`
	Message        string           `gorm:"type:text;not null" json:"message"`
	SubscriptionID *snowflake.ID    `gorm:"index" json:"subscription_id,omitempty"`
	IsRead         bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }
