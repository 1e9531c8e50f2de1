package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/subtrack/pkg/db/pagination"
)

type CreateUserRequest struct {
	Email        string
	Name         string
	Role         string
	DepartmentID string
}

type GetUserRequest struct {
	ID string
}

type ListUserRequest struct {
	PageToken    string
	PageSize     int32
	Role         string
	DepartmentID string
}

type ListUserResponse struct {
	pagination.PageInfo
	Users []User `json:"users"`
}

type Service interface {
	Create(context.Context, CreateUserRequest) (User, error)
	GetByID(context.Context, GetUserRequest) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ListByRole(ctx context.Context, role Role) ([]User, error)
	List(context.Context, ListUserRequest) (ListUserResponse, error)
}

var (
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidRole       = errors.New("invalid_role")
	ErrInvalidDepartment = errors.New("invalid_department")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrDuplicateEmail    = errors.New("duplicate_email")
	ErrNotFound          = errors.New("not_found")
)
