package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *ServiceToken) error
	Update(ctx context.Context, db *gorm.DB, token *ServiceToken) error
	FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*ServiceToken, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*ServiceToken, error)
	List(ctx context.Context, db *gorm.DB) ([]ServiceToken, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
}
