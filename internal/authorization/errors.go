package authorization

import "errors"

var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidActor      = errors.New("invalid_actor")
	ErrInvalidDepartment = errors.New("invalid_department")
	ErrInvalidObject     = errors.New("invalid_object")
	ErrInvalidAction     = errors.New("invalid_action")
)
