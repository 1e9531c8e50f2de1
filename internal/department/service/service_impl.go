package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/subtrack/internal/department/domain"
	"github.com/smallbiznis/subtrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("department.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateDepartmentRequest) (domain.Department, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Department{}, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	} else {
		code = slug.Make(code)
	}

	now := time.Now().UTC()
	department := domain.Department{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &department); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Department{}, domain.ErrDuplicateCode
		}
		return domain.Department{}, err
	}

	return department, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetDepartmentRequest) (domain.Department, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.Department{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Department{}, err
	}
	if item == nil {
		return domain.Department{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Department, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	departments := make([]domain.Department, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		departments = append(departments, *item)
	}
	return departments, nil
}
