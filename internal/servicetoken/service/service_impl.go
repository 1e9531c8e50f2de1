package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/actorcontext"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	auditmasking "github.com/smallbiznis/subtrack/internal/audit/masking"
	"github.com/smallbiznis/subtrack/internal/authorization"
	servicetokendomain "github.com/smallbiznis/subtrack/internal/servicetoken/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	tokenPrefix              = "st_live_key_"
	tokenSecretBytes         = 32
	tokenRotationGracePeriod = 24 * time.Hour
)

var allowedScopes = map[string]struct{}{
	servicetokendomain.ScopeJobsTrigger: {},
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     servicetokendomain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     servicetokendomain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service
}

func New(p Params) servicetokendomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("servicetoken.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context) ([]servicetokendomain.Response, error) {
	if err := s.authorizeManage(ctx); err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list service tokens: %w", err)
	}

	resp := make([]servicetokendomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req servicetokendomain.CreateRequest) (*servicetokendomain.SecretResponse, error) {
	if err := s.authorizeManage(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, servicetokendomain.ErrInvalidName
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, servicetokendomain.ErrInvalidExpiry
	}

	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := generateToken(keyID)
	if err != nil {
		return nil, err
	}

	token := &servicetokendomain.ServiceToken{
		ID:        id,
		KeyID:     keyID,
		Name:      name,
		Scopes:    scopes,
		KeyHash:   hash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.repo.Insert(ctx, s.db, token); err != nil {
		return nil, fmt.Errorf("create service token: %w", err)
	}

	s.audit(ctx, "service_token.create", keyID, map[string]any{
		"name":         name,
		"scopes":       []string(scopes),
		"masked_token": auditmasking.MaskSecret(plain),
	})
	return &servicetokendomain.SecretResponse{KeyID: keyID, Token: plain}, nil
}

func (s *Service) Rotate(ctx context.Context, keyID string) (*servicetokendomain.SecretResponse, error) {
	if err := s.authorizeManage(ctx); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return nil, servicetokendomain.ErrInvalidKeyID
	}

	var result *servicetokendomain.SecretResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByKeyID(ctx, tx, trimmed)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if current == nil || !current.IsActive || current.ExpiredAt(now) {
			return servicetokendomain.ErrNotFound
		}

		// The old token stays valid for a grace period so the caller can
		// swap credentials without an outage.
		expiry := now.Add(tokenRotationGracePeriod)
		current.ExpiresAt = &expiry
		current.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return err
		}

		id := s.genID.Generate()
		nextKeyID := newKeyID(id)
		plain, hash, err := generateToken(nextKeyID)
		if err != nil {
			return err
		}

		rotatedFrom := current.KeyID
		next := &servicetokendomain.ServiceToken{
			ID:               id,
			KeyID:            nextKeyID,
			Name:             current.Name,
			Scopes:           current.Scopes,
			KeyHash:          hash,
			IsActive:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
			RotatedFromKeyID: &rotatedFrom,
		}
		if err := s.repo.Insert(ctx, tx, next); err != nil {
			return err
		}

		result = &servicetokendomain.SecretResponse{KeyID: next.KeyID, Token: plain}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "service_token.rotate", result.KeyID, map[string]any{
		"rotated_from": trimmed,
		"masked_token": auditmasking.MaskSecret(result.Token),
	})
	return result, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	if err := s.authorizeManage(ctx); err != nil {
		return err
	}

	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return servicetokendomain.ErrInvalidKeyID
	}

	token, err := s.repo.FindByKeyID(ctx, s.db, trimmed)
	if err != nil {
		return err
	}
	if token == nil {
		return servicetokendomain.ErrNotFound
	}

	now := time.Now().UTC()
	token.IsActive = false
	token.UpdatedAt = now
	if token.ExpiresAt == nil || token.ExpiresAt.After(now) {
		token.ExpiresAt = &now
	}
	if err := s.repo.Update(ctx, s.db, token); err != nil {
		return err
	}

	s.audit(ctx, "service_token.revoke", trimmed, nil)
	return nil
}

func (s *Service) Validate(ctx context.Context, raw string) (*servicetokendomain.ServiceToken, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.HasPrefix(trimmed, tokenPrefix) {
		return nil, servicetokendomain.ErrInvalidToken
	}

	token, err := s.repo.FindActiveByHash(ctx, s.db, servicetokendomain.HashToken(trimmed))
	if err != nil {
		return nil, fmt.Errorf("find service token: %w", err)
	}
	now := time.Now().UTC()
	if token == nil || token.ExpiredAt(now) {
		return nil, servicetokendomain.ErrInvalidToken
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, token.ID, now); err != nil {
		s.log.Warn("service token last-used update failed",
			zap.String("key_id", token.KeyID),
			zap.Error(err),
		)
	}
	return token, nil
}

func (s *Service) authorizeManage(ctx context.Context) error {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok || actor.UserID == 0 {
		return authorization.ErrInvalidActor
	}
	subject := fmt.Sprintf("user:%s", actor.UserID.String())
	return s.authz.Authorize(ctx, subject, "*", authorization.ObjectServiceToken, authorization.ActionTokenManage)
}

func (s *Service) audit(ctx context.Context, action, keyID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorType := "system"
	var actorID *string
	if actor, ok := actorcontext.ActorFromContext(ctx); ok && actor.UserID != 0 {
		actorType = "user"
		id := actor.UserID.String()
		actorID = &id
	}
	targetID := keyID
	if err := s.auditSvc.AuditLog(ctx, actorType, actorID, action, "service_token", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func toResponse(token *servicetokendomain.ServiceToken) servicetokendomain.Response {
	return servicetokendomain.Response{
		KeyID:            token.KeyID,
		Name:             token.Name,
		Scopes:           token.Scopes,
		IsActive:         token.IsActive,
		CreatedAt:        token.CreatedAt,
		LastUsedAt:       token.LastUsedAt,
		ExpiresAt:        token.ExpiresAt,
		RotatedFromKeyID: token.RotatedFromKeyID,
	}
}

func normalizeScopes(scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return nil, servicetokendomain.ErrInvalidScope
	}
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if _, ok := allowedScopes[trimmed]; !ok {
			return nil, servicetokendomain.ErrInvalidScope
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out, nil
}

func generateToken(keyID string) (string, string, error) {
	secret := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	secretPart := hex.EncodeToString(secret)
	trimmed := strings.TrimPrefix(keyID, "key_")
	plain := fmt.Sprintf("%s%s_%s", tokenPrefix, trimmed, secretPart)
	return plain, servicetokendomain.HashToken(plain), nil
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}
