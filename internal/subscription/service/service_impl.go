package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subtrack/internal/actorcontext"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	"github.com/smallbiznis/subtrack/internal/auditcontext"
	"github.com/smallbiznis/subtrack/internal/authorization"
	notificationdomain "github.com/smallbiznis/subtrack/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/subtrack/internal/observability/metrics"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	"github.com/smallbiznis/subtrack/internal/subscription/domain"
	"github.com/smallbiznis/subtrack/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeSuccess  = "success"
	outcomeConflict = "conflict"
	outcomeDenied   = "denied"
	outcomeError    = "error"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	CycleRepo cycledomain.Repository
	Authz     authorization.Service
	AuditSvc  auditdomain.Service        `optional:"true"`
	Notifier  notificationdomain.Service `optional:"true"`
	Metrics   *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	cycleRepo cycledomain.Repository
	authz     authorization.Service
	auditSvc  auditdomain.Service
	notifier  notificationdomain.Service
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("subscription.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		cycleRepo: p.CycleRepo,
		authz:     p.Authz,
		auditSvc:  p.AuditSvc,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

func (s *Service) GetByID(ctx context.Context, req domain.GetSubscriptionRequest) (domain.Subscription, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Subscription{}, err
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}

	subscription, err := s.load(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}
	if err := s.authorize(ctx, actor, subscription.DepartmentID.String(), authorization.ActionSubscriptionView); err != nil {
		return domain.Subscription{}, err
	}
	return *subscription, nil
}

// List pages subscriptions by ascending id. Listings without a department
// filter are org-wide and pass authorization only for org-wide roles;
// department-scoped callers must filter by their own department.
func (s *Service) List(ctx context.Context, req domain.ListSubscriptionsRequest) (domain.ListSubscriptionsResponse, error) {
	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.ListSubscriptionsResponse{}, err
	}

	filter := domain.ListFilter{}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		parsed := domain.SubscriptionStatus(status)
		if !parsed.Valid() {
			return domain.ListSubscriptionsResponse{}, domain.ErrInvalidSubscriptionStatus
		}
		filter.Status = parsed
	}

	scope := "*"
	if dept := strings.TrimSpace(req.DepartmentID); dept != "" {
		departmentID, err := snowflake.ParseString(dept)
		if err != nil || departmentID == 0 {
			return domain.ListSubscriptionsResponse{}, domain.ErrInvalidSubscription
		}
		filter.DepartmentID = departmentID
		scope = departmentID.String()
	}
	if err := s.authorize(ctx, actor, scope, authorization.ActionSubscriptionView); err != nil {
		return domain.ListSubscriptionsResponse{}, err
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListSubscriptionsResponse{}, domain.ErrInvalidSubscription
	}
	if cursor != nil {
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListSubscriptionsResponse{}, domain.ErrInvalidSubscription
		}
		filter.Cursor = &cursorID
	}

	limit := req.Limit()
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListSubscriptionsResponse{}, fmt.Errorf("list subscriptions: %w", err)
	}

	items, pageInfo := pagination.BuildPageInfo(items, limit, func(item *domain.Subscription) string {
		return item.ID.String()
	})
	return domain.ListSubscriptionsResponse{
		PageInfo:      pageInfo,
		Subscriptions: items,
	}, nil
}

// Activate moves a pending subscription into service and opens its first
// payment cycle in the same transaction. The first cycle spans the
// subscription start date plus the billing frequency length, with the
// invoice deadline on the cycle end date.
func (s *Service) Activate(ctx context.Context, req domain.ActivateSubscriptionRequest) (domain.Subscription, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Subscription{}, err
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}

	subscription, err := s.load(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}
	ctx = auditcontext.WithSubscriptionID(ctx, subscription.ID.String())

	if err := s.authorize(ctx, actor, subscription.DepartmentID.String(), authorization.ActionSubscriptionActivate); err != nil {
		s.observe(ctx, "activate", outcomeDenied)
		return domain.Subscription{}, err
	}

	now := time.Now().UTC()
	var updated *domain.Subscription
	var bootstrapped *cycledomain.PaymentCycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransition(current.Status, domain.SubscriptionStatusActive) {
			return domain.ErrInvalidSubscriptionStatus
		}

		rows, err := s.repo.UpdateStatus(ctx, tx, id, current.Status, domain.SubscriptionStatusActive, nil, now)
		if err != nil {
			return fmt.Errorf("activate subscription: %w", err)
		}
		if rows == 0 {
			return domain.ErrSubscriptionStateChanged
		}

		bootstrapped, err = s.bootstrapFirstCycle(ctx, tx, current, now)
		if err != nil {
			return err
		}

		updated, err = s.reload(ctx, tx, id)
		return err
	})
	if err != nil {
		s.observe(ctx, "activate", outcomeFor(err))
		return domain.Subscription{}, err
	}

	s.observe(ctx, "activate", outcomeSuccess)
	s.audit(ctx, actor, "subscription.activate", id, map[string]any{
		"tool_name":   updated.ToolName,
		"from_status": string(subscription.Status),
		"to_status":   string(updated.Status),
	})
	if bootstrapped != nil {
		s.notifyRenewalPending(ctx, updated, bootstrapped)
	}
	return *updated, nil
}

// Reject declines a pending subscription. The reason is validated before
// anything is read or written.
func (s *Service) Reject(ctx context.Context, req domain.RejectSubscriptionRequest) (domain.Subscription, error) {
	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) < domain.MinRejectionReasonLength {
		return domain.Subscription{}, domain.ErrRejectionReasonRequired
	}

	id, err := parseID(req.ID)
	if err != nil {
		return domain.Subscription{}, err
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}

	subscription, err := s.load(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}
	ctx = auditcontext.WithSubscriptionID(ctx, subscription.ID.String())

	if err := s.authorize(ctx, actor, subscription.DepartmentID.String(), authorization.ActionSubscriptionReject); err != nil {
		s.observe(ctx, "reject", outcomeDenied)
		return domain.Subscription{}, err
	}

	now := time.Now().UTC()
	var updated *domain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransition(current.Status, domain.SubscriptionStatusRejected) {
			return domain.ErrInvalidSubscriptionStatus
		}

		rows, err := s.repo.UpdateStatus(ctx, tx, id, current.Status, domain.SubscriptionStatusRejected, &reason, now)
		if err != nil {
			return fmt.Errorf("reject subscription: %w", err)
		}
		if rows == 0 {
			return domain.ErrSubscriptionStateChanged
		}

		updated, err = s.reload(ctx, tx, id)
		return err
	})
	if err != nil {
		s.observe(ctx, "reject", outcomeFor(err))
		return domain.Subscription{}, err
	}

	s.observe(ctx, "reject", outcomeSuccess)
	s.audit(ctx, actor, "subscription.reject", id, map[string]any{
		"tool_name":   updated.ToolName,
		"from_status": string(subscription.Status),
		"to_status":   string(updated.Status),
		"reason":      reason,
	})
	return *updated, nil
}

// Cancel ends an active subscription. Already-created cycles keep running
// their own lifecycle; no further cycles are created for it.
func (s *Service) Cancel(ctx context.Context, req domain.CancelSubscriptionRequest) (domain.Subscription, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Subscription{}, err
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}

	subscription, err := s.load(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}
	ctx = auditcontext.WithSubscriptionID(ctx, subscription.ID.String())

	if err := s.authorize(ctx, actor, subscription.DepartmentID.String(), authorization.ActionSubscriptionCancel); err != nil {
		s.observe(ctx, "cancel", outcomeDenied)
		return domain.Subscription{}, err
	}

	now := time.Now().UTC()
	var updated *domain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransition(current.Status, domain.SubscriptionStatusCancelled) {
			return domain.ErrInvalidSubscriptionStatus
		}

		rows, err := s.repo.UpdateStatus(ctx, tx, id, current.Status, domain.SubscriptionStatusCancelled, nil, now)
		if err != nil {
			return fmt.Errorf("cancel subscription: %w", err)
		}
		if rows == 0 {
			return domain.ErrSubscriptionStateChanged
		}

		updated, err = s.reload(ctx, tx, id)
		return err
	})
	if err != nil {
		s.observe(ctx, "cancel", outcomeFor(err))
		return domain.Subscription{}, err
	}

	s.observe(ctx, "cancel", outcomeSuccess)
	s.audit(ctx, actor, "subscription.cancel", id, map[string]any{
		"tool_name":   updated.ToolName,
		"from_status": string(subscription.Status),
		"to_status":   string(updated.Status),
	})
	return *updated, nil
}

func (s *Service) bootstrapFirstCycle(ctx context.Context, tx *gorm.DB, subscription *domain.Subscription, now time.Time) (*cycledomain.PaymentCycle, error) {
	latest, err := s.cycleRepo.FindLatestBySubscription(ctx, tx, subscription.ID)
	if err != nil {
		return nil, fmt.Errorf("find latest cycle: %w", err)
	}
	if latest != nil {
		return nil, nil
	}

	start := cycledomain.NormalizeDate(subscription.StartDate)
	end := start.AddDate(0, 0, subscription.BillingFrequency.CycleLengthDays()-1)
	cycle := &cycledomain.PaymentCycle{
		ID:                s.genID.Generate(),
		SubscriptionID:    subscription.ID,
		CycleNumber:       1,
		CycleStartDate:    start,
		CycleEndDate:      end,
		InvoiceDeadline:   end,
		CycleStatus:       cycledomain.CycleStatusPendingApproval,
		POCApprovalStatus: cycledomain.ApprovalStatusPending,
		PaymentStatus:     cycledomain.PaymentStatusInProgress,
		AccountingStatus:  cycledomain.AccountingStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.cycleRepo.Insert(ctx, tx, cycle); err != nil {
		return nil, fmt.Errorf("create first cycle: %w", err)
	}
	return cycle, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if subscription == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock subscription: %w", err)
	}
	if current == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return current, nil
}

func (s *Service) reload(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	updated, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("reload subscription: %w", err)
	}
	if updated == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return updated, nil
}

func (s *Service) authorize(ctx context.Context, actor actorcontext.Actor, departmentID, action string) error {
	subject := fmt.Sprintf("user:%s", actor.UserID.String())
	return s.authz.Authorize(ctx, subject, departmentID, authorization.ObjectSubscription, action)
}

func (s *Service) audit(ctx context.Context, actor actorcontext.Actor, action string, subscriptionID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := actor.UserID.String()
	targetID := subscriptionID.String()
	if err := s.auditSvc.AuditLog(ctx, "user", &actorID, action, "subscription", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) notifyRenewalPending(ctx context.Context, subscription *domain.Subscription, cycle *cycledomain.PaymentCycle) {
	if s.notifier == nil {
		return
	}
	subscriptionID := subscription.ID
	message := fmt.Sprintf("%s cycle #%d (%s to %s) is awaiting your approval.",
		subscription.ToolName,
		cycle.CycleNumber,
		cycle.CycleStartDate.Format("2006-01-02"),
		cycle.CycleEndDate.Format("2006-01-02"),
	)
	if err := s.notifier.NotifyPOC(ctx, subscription.POCEmail, "Subscription renewal pending", message, &subscriptionID); err != nil {
		s.log.Warn("poc notification failed",
			zap.String("subscription_id", subscription.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) observe(ctx context.Context, action, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSubscriptionTransition(ctx, action, outcome)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrInvalidSubscriptionStatus),
		errors.Is(err, domain.ErrSubscriptionStateChanged):
		return outcomeConflict
	case errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor):
		return outcomeDenied
	default:
		return outcomeError
	}
}

func callerFromContext(ctx context.Context) (actorcontext.Actor, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok || actor.UserID == 0 {
		return actorcontext.Actor{}, authorization.ErrInvalidActor
	}
	return actor, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidSubscription
	}
	return id, nil
}
