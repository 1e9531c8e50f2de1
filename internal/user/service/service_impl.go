package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/user/domain"
	"github.com/smallbiznis/subtrack/pkg/db"
	"github.com/smallbiznis/subtrack/pkg/db/pagination"
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
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.User{}, domain.ErrInvalidName
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}

	var departmentID *snowflake.ID
	if raw := strings.TrimSpace(req.DepartmentID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil || parsed == 0 {
			return domain.User{}, domain.ErrInvalidDepartment
		}
		departmentID = &parsed
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		Name:         name,
		Role:         role,
		DepartmentID: departmentID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrDuplicateEmail
		}
		return domain.User{}, err
	}

	return user, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetUserRequest) (domain.User, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.User{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if item == nil {
		return domain.User{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, domain.ErrInvalidEmail
	}

	item, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.User{}, err
	}
	if item == nil {
		return domain.User{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	items, err := s.repo.ListByRole(ctx, s.db, role)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return users, nil
}

func (s *Service) List(ctx context.Context, req domain.ListUserRequest) (domain.ListUserResponse, error) {
	filter := domain.ListUserFilter{}
	if raw := strings.ToUpper(strings.TrimSpace(req.Role)); raw != "" {
		role := domain.Role(raw)
		if !role.Valid() {
			return domain.ListUserResponse{}, domain.ErrInvalidRole
		}
		filter.Role = role
	}
	if raw := strings.TrimSpace(req.DepartmentID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil || parsed == 0 {
			return domain.ListUserResponse{}, domain.ErrInvalidDepartment
		}
		filter.DepartmentID = parsed
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListUserResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil || cursorID == 0 {
			return domain.ListUserResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &cursorID
	}

	limit := pagination.Request{PageSize: int(req.PageSize)}.Limit()
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListUserResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, limit, func(user *domain.User) string {
		return user.ID.String()
	})

	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}

	return domain.ListUserResponse{PageInfo: pageInfo, Users: users}, nil
}
