package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/user/domain"
	"github.com/smallbiznis/subtrack/pkg/db/option"
	store "github.com/smallbiznis/subtrack/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func users(db *gorm.DB) store.Repository[domain.User] {
	return store.ProvideStore[domain.User](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return users(db).Create(ctx, user)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return users(db).FindOne(ctx, &domain.User{ID: id})
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return users(db).FindOne(ctx, &domain.User{},
		option.WithFilter("LOWER(email) = LOWER(?)", strings.TrimSpace(email)),
	)
}

func (r *repo) ListByRole(ctx context.Context, db *gorm.DB, role domain.Role) ([]*domain.User, error) {
	return users(db).Find(ctx, &domain.User{Role: role},
		option.WithFilter("is_active = TRUE"),
		option.WithOrder("id asc"),
	)
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListUserFilter) ([]*domain.User, error) {
	opts := []option.QueryOption{
		option.WithOrder("id asc"),
		option.WithLimit(filter.Limit),
	}
	if filter.Role != "" {
		opts = append(opts, option.WithFilter("role = ?", filter.Role))
	}
	if filter.DepartmentID != 0 {
		opts = append(opts, option.WithFilter("department_id = ?", filter.DepartmentID))
	}
	if filter.ActiveOnly {
		opts = append(opts, option.WithFilter("is_active = TRUE"))
	}
	if filter.Cursor != nil {
		opts = append(opts, option.WithFilter("id > ?", *filter.Cursor))
	}

	return users(db).Find(ctx, &domain.User{}, opts...)
}
