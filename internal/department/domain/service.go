package domain

import (
	"context"
	"errors"
)

type CreateDepartmentRequest struct {
	Name string
	Code string
}

type GetDepartmentRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateDepartmentRequest) (Department, error)
	GetByID(context.Context, GetDepartmentRequest) (Department, error)
	List(context.Context) ([]Department, error)
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidID     = errors.New("invalid_id")
	ErrDuplicateCode = errors.New("duplicate_code")
	ErrNotFound      = errors.New("not_found")
)
