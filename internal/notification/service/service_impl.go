package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/cache"
	"github.com/smallbiznis/subtrack/internal/cloudmetrics"
	"github.com/smallbiznis/subtrack/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/subtrack/internal/observability/metrics"
	userdomain "github.com/smallbiznis/subtrack/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Users      userdomain.Service
	Recipients cache.RecipientCache `optional:"true"`
	Metrics    *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	users      userdomain.Service
	recipients cache.RecipientCache
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("notification.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		users:      p.Users,
		recipients: p.Recipients,
		metrics:    p.Metrics,
	}
}

func (s *Service) Notify(ctx context.Context, userID snowflake.ID, title, message string, subscriptionID *snowflake.ID) error {
	if userID == 0 {
		return domain.ErrRecipientNotFound
	}

	notification := domain.Notification{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Type:           domain.NotificationTypePaymentUpdate,
		Title:          title,
		Message:        message,
		SubscriptionID: subscriptionID,
		IsRead:         false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &notification); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	s.record(ctx, "user")
	return nil
}

// NotifyPOC resolves the stored POC email to a user row and writes one
// notification. Unknown or inactive emails surface ErrRecipientNotFound.
func (s *Service) NotifyPOC(ctx context.Context, pocEmail, title, message string, subscriptionID *snowflake.ID) error {
	email := strings.TrimSpace(pocEmail)
	if email == "" {
		return domain.ErrRecipientNotFound
	}

	userID, err := s.resolveRecipient(ctx, email)
	if err != nil {
		return err
	}

	notification := domain.Notification{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Type:           domain.NotificationTypePaymentUpdate,
		Title:          title,
		Message:        message,
		SubscriptionID: subscriptionID,
		IsRead:         false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &notification); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	s.record(ctx, "poc")
	return nil
}

// NotifyFinanceTeam fans out to every active FINANCE user. Individual send
// failures are collected; the returned count covers successful writes only.
func (s *Service) NotifyFinanceTeam(ctx context.Context, title, message string, subscriptionID *snowflake.ID) (int, error) {
	team, err := s.users.ListByRole(ctx, userdomain.RoleFinance)
	if err != nil {
		return 0, fmt.Errorf("list finance users: %w", err)
	}

	sent := 0
	var errs []error
	for _, member := range team {
		notification := domain.Notification{
			ID:             s.genID.Generate(),
			UserID:         member.ID,
			Type:           domain.NotificationTypePaymentUpdate,
			Title:          title,
			Message:        message,
			SubscriptionID: subscriptionID,
			IsRead:         false,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.repo.Insert(ctx, s.db, &notification); err != nil {
			s.log.Warn("finance notification failed",
				zap.String("user_id", member.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("notify user %s: %w", member.ID, err))
			continue
		}
		sent++
		s.record(ctx, "finance")
	}

	return sent, errors.Join(errs...)
}

func (s *Service) resolveRecipient(ctx context.Context, email string) (snowflake.ID, error) {
	if s.recipients != nil {
		if userID, ok := s.recipients.GetUserID(email); ok {
			return userID, nil
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userdomain.ErrNotFound) {
			return 0, domain.ErrRecipientNotFound
		}
		return 0, fmt.Errorf("resolve recipient: %w", err)
	}
	if !user.IsActive {
		return 0, domain.ErrRecipientNotFound
	}

	if s.recipients != nil {
		s.recipients.SetUserID(email, user.ID)
	}
	return user.ID, nil
}

func (s *Service) record(ctx context.Context, audience string) {
	cloudmetrics.RecordNotificationSent(audience)
	if s.metrics == nil {
		return
	}
	s.metrics.RecordNotification(ctx, audience)
}
