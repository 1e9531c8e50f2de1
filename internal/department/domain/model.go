package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Department struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	Code       string        `gorm:"uniqueIndex;not null" json:"code"`
	Name       string        `gorm:"uniqueIndex;not null" json:"name"`
	HeadUserID *snowflake.ID `gorm:"column:head_user_id" json:"head_user_id,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
