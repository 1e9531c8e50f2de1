package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, department *Department) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Department, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Department, error)
	List(ctx context.Context, db *gorm.DB) ([]*Department, error)
}
