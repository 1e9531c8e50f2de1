package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	servicetokendomain "github.com/smallbiznis/subtrack/internal/servicetoken/domain"
	"gorm.io/gorm"
)

const tokenColumns = `id, key_id, name, scopes, key_hash, is_active, created_at, updated_at, last_used_at, expires_at, rotated_from_key_id`

type repo struct{}

func Provide() servicetokendomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *servicetokendomain.ServiceToken) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO service_tokens (`+tokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.KeyID,
		token.Name,
		token.Scopes,
		token.KeyHash,
		token.IsActive,
		token.CreatedAt,
		token.UpdatedAt,
		token.LastUsedAt,
		token.ExpiresAt,
		token.RotatedFromKeyID,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, token *servicetokendomain.ServiceToken) error {
	return db.WithContext(ctx).Exec(
		`UPDATE service_tokens
		 SET name = ?, scopes = ?, key_hash = ?, is_active = ?, updated_at = ?, last_used_at = ?, expires_at = ?, rotated_from_key_id = ?
		 WHERE key_id = ?`,
		token.Name,
		token.Scopes,
		token.KeyHash,
		token.IsActive,
		token.UpdatedAt,
		token.LastUsedAt,
		token.ExpiresAt,
		token.RotatedFromKeyID,
		token.KeyID,
	).Error
}

func (r *repo) FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*servicetokendomain.ServiceToken, error) {
	var token servicetokendomain.ServiceToken
	err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+` FROM service_tokens WHERE key_id = ?`,
		keyID,
	).Scan(&token).Error
	if err != nil {
		return nil, err
	}
	if token.ID == 0 {
		return nil, nil
	}
	return &token, nil
}

func (r *repo) FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*servicetokendomain.ServiceToken, error) {
	var token servicetokendomain.ServiceToken
	err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+` FROM service_tokens WHERE key_hash = ? AND is_active = TRUE LIMIT 1`,
		hash,
	).Scan(&token).Error
	if err != nil {
		return nil, err
	}
	if token.ID == 0 {
		return nil, nil
	}
	return &token, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]servicetokendomain.ServiceToken, error) {
	var tokens []servicetokendomain.ServiceToken
	err := db.WithContext(ctx).Raw(
		`SELECT ` + tokenColumns + ` FROM service_tokens ORDER BY created_at DESC`,
	).Scan(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE service_tokens SET last_used_at = ? WHERE id = ?`,
		now,
		id,
	).Error
}
