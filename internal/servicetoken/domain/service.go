package domain

import (
	"context"
	"errors"
	"time"
)

const (
	ScopeJobsTrigger = "jobs:trigger"
)

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Rotate(ctx context.Context, keyID string) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error

	// Validate resolves a raw bearer token to an active, unexpired record
	// and touches its last-used timestamp. Every failure mode returns
	// ErrInvalidToken so callers cannot distinguish unknown from revoked.
	Validate(ctx context.Context, raw string) (*ServiceToken, error)
}

type CreateRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type Response struct {
	KeyID            string     `json:"key_id"`
	Name             string     `json:"name"`
	Scopes           []string   `json:"scopes"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RotatedFromKeyID *string    `json:"rotated_from_key_id"`
}

type SecretResponse struct {
	KeyID string `json:"key_id"`
	Token string `json:"token"`
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidScope  = errors.New("invalid_scope")
	ErrInvalidExpiry = errors.New("invalid_expiry")
	ErrInvalidKeyID  = errors.New("invalid_key_id")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrNotFound      = errors.New("service_token_not_found")
)
