package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/department/domain"
	"github.com/smallbiznis/subtrack/pkg/db/option"
	store "github.com/smallbiznis/subtrack/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// departments binds the generic store to the caller's handle so service-layer
// transactions carry through.
func departments(db *gorm.DB) store.Repository[domain.Department] {
	return store.ProvideStore[domain.Department](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, department *domain.Department) error {
	return departments(db).Create(ctx, department)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Department, error) {
	return departments(db).FindOne(ctx, &domain.Department{ID: id})
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Department, error) {
	return departments(db).FindOne(ctx, &domain.Department{Code: code})
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Department, error) {
	return departments(db).Find(ctx, &domain.Department{}, option.WithOrder("name asc, id asc"))
}
