package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListUserFilter struct {
	Role         Role
	DepartmentID snowflake.ID
	ActiveOnly   bool
	Cursor       *snowflake.ID
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	ListByRole(ctx context.Context, db *gorm.DB, role Role) ([]*User, error)
	List(ctx context.Context, db *gorm.DB, filter ListUserFilter) ([]*User, error)
}
