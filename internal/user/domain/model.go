package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role partitions users into the groups the approval flow cares about.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleFinance Role = "FINANCE"
	RoleHOD     Role = "HOD"
	RolePOC     Role = "POC"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFinance, RoleHOD, RolePOC:
		return true
	default:
		return false
	}
}

type User struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email        string        `gorm:"uniqueIndex;not null" json:"email"`
	Name         string        `gorm:"not null" json:"name"`
	Role         Role          `gorm:"not null" json:"role"`
	DepartmentID *snowflake.ID `gorm:"index" json:"department_id,omitempty"`
	IsActive     bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
