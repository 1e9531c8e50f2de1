package repository

import (
	"context"

	"github.com/smallbiznis/subtrack/internal/notification/domain"
	store "github.com/smallbiznis/subtrack/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return store.ProvideStore[domain.Notification](db).Create(ctx, notification)
}
