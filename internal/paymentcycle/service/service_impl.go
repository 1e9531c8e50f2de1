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
	"github.com/smallbiznis/subtrack/internal/cloudmetrics"
	notificationdomain "github.com/smallbiznis/subtrack/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/subtrack/internal/observability/metrics"
	"github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
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

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	SubRepo  subscriptiondomain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service        `optional:"true"`
	Notifier notificationdomain.Service `optional:"true"`
	Metrics  *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	subRepo  subscriptiondomain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service
	notifier notificationdomain.Service
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("paymentcycle.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		subRepo:  p.SubRepo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// Approve moves a pending cycle toward payment recording. The POC decision is
// stamped on the row; the conditional update loses against any concurrent
// transition and surfaces that as a state conflict.
func (s *Service) Approve(ctx context.Context, req domain.ApproveCycleRequest) (domain.PaymentCycle, error) {
	cycleID, err := parseID(req.ID)
	if err != nil {
		return domain.PaymentCycle{}, domain.ErrInvalidID
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.PaymentCycle{}, err
	}

	cycle, subscription, err := s.loadCycleContext(ctx, cycleID)
	if err != nil {
		return domain.PaymentCycle{}, err
	}
	ctx = withAuditTargets(ctx, subscription, cycle)

	if err := s.authorize(ctx, actor, subscription.DepartmentID, authorization.ActionCycleApprove); err != nil {
		s.observe(ctx, domain.ActionApprove, outcomeDenied)
		return domain.PaymentCycle{}, err
	}

	now := time.Now().UTC()
	var updated *domain.PaymentCycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCycle(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		if _, err := domain.Next(current.CycleStatus, domain.ActionApprove); err != nil {
			return err
		}

		rows, err := s.repo.UpdateApprove(ctx, tx, cycleID, actor.UserID, now)
		if err != nil {
			return fmt.Errorf("approve cycle: %w", err)
		}
		if rows == 0 {
			return domain.ErrCycleStateChanged
		}

		updated, err = s.reloadCycle(ctx, tx, cycleID)
		return err
	})
	if err != nil {
		s.observe(ctx, domain.ActionApprove, outcomeFor(err))
		return domain.PaymentCycle{}, err
	}

	s.observe(ctx, domain.ActionApprove, outcomeSuccess)
	s.audit(ctx, actor, "payment_cycle.approve", cycleID, map[string]any{
		"subscription_id": subscription.ID.String(),
		"cycle_number":    updated.CycleNumber,
		"from_status":     string(cycle.CycleStatus),
		"to_status":       string(updated.CycleStatus),
		"comments":        strings.TrimSpace(req.Comments),
	})
	return *updated, nil
}

// Decline rejects the renewal. The reason is validated before anything is
// read or written.
func (s *Service) Decline(ctx context.Context, req domain.DeclineCycleRequest) (domain.PaymentCycle, error) {
	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) < domain.MinRejectionReasonLength {
		return domain.PaymentCycle{}, domain.ErrRejectionReasonRequired
	}

	cycleID, err := parseID(req.ID)
	if err != nil {
		return domain.PaymentCycle{}, domain.ErrInvalidID
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.PaymentCycle{}, err
	}

	cycle, subscription, err := s.loadCycleContext(ctx, cycleID)
	if err != nil {
		return domain.PaymentCycle{}, err
	}
	ctx = withAuditTargets(ctx, subscription, cycle)

	if err := s.authorize(ctx, actor, subscription.DepartmentID, authorization.ActionCycleDecline); err != nil {
		s.observe(ctx, domain.ActionDecline, outcomeDenied)
		return domain.PaymentCycle{}, err
	}

	now := time.Now().UTC()
	var updated *domain.PaymentCycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCycle(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		if _, err := domain.Next(current.CycleStatus, domain.ActionDecline); err != nil {
			return err
		}

		rows, err := s.repo.UpdateDecline(ctx, tx, cycleID, reason, now)
		if err != nil {
			return fmt.Errorf("decline cycle: %w", err)
		}
		if rows == 0 {
			return domain.ErrCycleStateChanged
		}

		updated, err = s.reloadCycle(ctx, tx, cycleID)
		return err
	})
	if err != nil {
		s.observe(ctx, domain.ActionDecline, outcomeFor(err))
		return domain.PaymentCycle{}, err
	}

	s.observe(ctx, domain.ActionDecline, outcomeSuccess)
	s.audit(ctx, actor, "payment_cycle.decline", cycleID, map[string]any{
		"subscription_id": subscription.ID.String(),
		"cycle_number":    updated.CycleNumber,
		"from_status":     string(cycle.CycleStatus),
		"to_status":       string(updated.CycleStatus),
		"reason":          reason,
	})
	return *updated, nil
}

// RecordPayment attaches the finance outcome to a cycle awaiting payment.
// The cycle advances to PAYMENT_RECORDED only on a PAID outcome with the POC
// approval in place; IN_PROGRESS and DECLINED leave it re-recordable.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.PaymentCycle, error) {
	cycleID, err := parseID(req.ID)
	if err != nil {
		return domain.PaymentCycle{}, domain.ErrInvalidID
	}

	paymentStatus := domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.PaymentStatus)))
	if !paymentStatus.Valid() {
		return domain.PaymentCycle{}, domain.ErrInvalidPaymentStatus
	}
	accountingStatus := domain.AccountingStatus(strings.ToUpper(strings.TrimSpace(req.AccountingStatus)))
	if !accountingStatus.Valid() {
		return domain.PaymentCycle{}, domain.ErrInvalidAccountingStatus
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.PaymentCycle{}, err
	}

	cycle, subscription, err := s.loadCycleContext(ctx, cycleID)
	if err != nil {
		return domain.PaymentCycle{}, err
	}
	ctx = withAuditTargets(ctx, subscription, cycle)

	if err := s.authorize(ctx, actor, subscription.DepartmentID, authorization.ActionCycleRecordPayment); err != nil {
		s.observe(ctx, domain.ActionRecordPayment, outcomeDenied)
		return domain.PaymentCycle{}, err
	}

	now := time.Now().UTC()
	var updated *domain.PaymentCycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCycle(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		advanced, err := domain.Next(current.CycleStatus, domain.ActionRecordPayment)
		if err != nil {
			return err
		}

		target := current.CycleStatus
		var recordedBy *snowflake.ID
		var recordedAt *time.Time
		if paymentStatus == domain.PaymentStatusPaid || paymentStatus == domain.PaymentStatusDeclined {
			recordedBy = &actor.UserID
			recordedAt = &now
		}
		if paymentStatus == domain.PaymentStatusPaid && current.POCApprovalStatus == domain.ApprovalStatusApproved {
			target = advanced
		}

		update := domain.PaymentUpdate{
			NextStatus:       target,
			PaymentStatus:    paymentStatus,
			AccountingStatus: accountingStatus,
			PaymentUTR:       optionalString(req.PaymentUTR),
			MandateID:        optionalString(req.MandateID),
			RecordedBy:       recordedBy,
			RecordedAt:       recordedAt,
		}
		rows, err := s.repo.UpdatePayment(ctx, tx, cycleID, current.CycleStatus, update, now)
		if err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
		if rows == 0 {
			return domain.ErrCycleStateChanged
		}

		updated, err = s.reloadCycle(ctx, tx, cycleID)
		return err
	})
	if err != nil {
		s.observe(ctx, domain.ActionRecordPayment, outcomeFor(err))
		return domain.PaymentCycle{}, err
	}

	s.observe(ctx, domain.ActionRecordPayment, outcomeSuccess)
	s.audit(ctx, actor, "payment_cycle.record_payment", cycleID, map[string]any{
		"subscription_id":   subscription.ID.String(),
		"cycle_number":      updated.CycleNumber,
		"from_status":       string(cycle.CycleStatus),
		"to_status":         string(updated.CycleStatus),
		"payment_status":    string(paymentStatus),
		"accounting_status": string(accountingStatus),
	})

	if paymentStatus == domain.PaymentStatusPaid {
		s.notifyPaymentRecorded(ctx, subscription, updated)
	}
	return *updated, nil
}

// UploadInvoice attaches the invoice file reference. With approval and a PAID
// payment already on the row this lands on COMPLETED; otherwise the cycle
// parks on INVOICE_UPLOADED.
func (s *Service) UploadInvoice(ctx context.Context, req domain.UploadInvoiceRequest) (domain.PaymentCycle, error) {
	cycleID, err := parseID(req.ID)
	if err != nil {
		return domain.PaymentCycle{}, domain.ErrInvalidID
	}
	fileID, err := parseID(req.InvoiceFileID)
	if err != nil {
		return domain.PaymentCycle{}, domain.ErrInvalidID
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.PaymentCycle{}, err
	}

	cycle, subscription, err := s.loadCycleContext(ctx, cycleID)
	if err != nil {
		return domain.PaymentCycle{}, err
	}
	ctx = withAuditTargets(ctx, subscription, cycle)

	if err := s.authorize(ctx, actor, subscription.DepartmentID, authorization.ActionCycleUploadInvoice); err != nil {
		s.observe(ctx, domain.ActionUploadInvoice, outcomeDenied)
		return domain.PaymentCycle{}, err
	}

	now := time.Now().UTC()
	var updated *domain.PaymentCycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCycle(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		if current.HasInvoice() {
			return domain.ErrInvoiceAlreadyUploaded
		}
		next, err := domain.Next(current.CycleStatus, domain.ActionUploadInvoice)
		if err != nil {
			return err
		}

		probe := *current
		probe.InvoiceFileID = &fileID
		if probe.FullChainPresent() {
			completed, err := domain.Next(next, domain.ActionComplete)
			if err != nil {
				return err
			}
			next = completed
		}

		rows, err := s.repo.UpdateInvoice(ctx, tx, cycleID, next, fileID, now)
		if err != nil {
			return fmt.Errorf("upload invoice: %w", err)
		}
		if rows == 0 {
			return domain.ErrCycleStateChanged
		}

		updated, err = s.reloadCycle(ctx, tx, cycleID)
		return err
	})
	if err != nil {
		s.observe(ctx, domain.ActionUploadInvoice, outcomeFor(err))
		return domain.PaymentCycle{}, err
	}

	s.observe(ctx, domain.ActionUploadInvoice, outcomeSuccess)
	s.audit(ctx, actor, "payment_cycle.upload_invoice", cycleID, map[string]any{
		"subscription_id": subscription.ID.String(),
		"cycle_number":    updated.CycleNumber,
		"from_status":     string(cycle.CycleStatus),
		"to_status":       string(updated.CycleStatus),
		"invoice_file_id": fileID.String(),
	})
	return *updated, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCycleRequest) (domain.CycleView, error) {
	cycleID, err := parseID(req.ID)
	if err != nil {
		return domain.CycleView{}, domain.ErrInvalidID
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return domain.CycleView{}, err
	}

	cycle, subscription, err := s.loadCycleContext(ctx, cycleID)
	if err != nil {
		return domain.CycleView{}, err
	}
	if err := s.authorize(ctx, actor, subscription.DepartmentID, authorization.ActionCycleView); err != nil {
		return domain.CycleView{}, err
	}

	return domain.CycleView{
		PaymentCycle:   *cycle,
		AllowedActions: domain.AllowedActions(cycle.CycleStatus),
	}, nil
}

func (s *Service) ListBySubscription(ctx context.Context, req domain.ListCyclesRequest) ([]domain.PaymentCycle, error) {
	subscriptionID, err := parseID(req.SubscriptionID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	subscription, err := s.subRepo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	if err := s.authorize(ctx, actor, subscription.DepartmentID, authorization.ActionCycleView); err != nil {
		return nil, err
	}

	cycles, err := s.repo.ListBySubscription(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	return collect(cycles), nil
}

func (s *Service) ListPendingApproval(ctx context.Context, req domain.ListPendingApprovalRequest) ([]domain.PaymentCycle, error) {
	departmentID, err := parseID(req.DepartmentID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	actor, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, departmentID, authorization.ActionCycleView); err != nil {
		return nil, err
	}

	cycles, err := s.repo.ListPendingApprovalByDepartment(ctx, s.db, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return collect(cycles), nil
}

func (s *Service) loadCycleContext(ctx context.Context, id snowflake.ID) (*domain.PaymentCycle, *subscriptiondomain.Subscription, error) {
	cycle, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, nil, fmt.Errorf("find cycle: %w", err)
	}
	if cycle == nil {
		return nil, nil, domain.ErrCycleNotFound
	}

	subscription, err := s.subRepo.FindByID(ctx, s.db, cycle.SubscriptionID)
	if err != nil {
		return nil, nil, fmt.Errorf("find subscription: %w", err)
	}
	if subscription == nil {
		return nil, nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return cycle, subscription, nil
}

func (s *Service) lockCycle(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.PaymentCycle, error) {
	current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock cycle: %w", err)
	}
	if current == nil {
		return nil, domain.ErrCycleNotFound
	}
	return current, nil
}

func (s *Service) reloadCycle(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.PaymentCycle, error) {
	updated, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("reload cycle: %w", err)
	}
	if updated == nil {
		return nil, domain.ErrCycleNotFound
	}
	return updated, nil
}

func (s *Service) authorize(ctx context.Context, actor actorcontext.Actor, departmentID snowflake.ID, action string) error {
	subject := fmt.Sprintf("user:%s", actor.UserID.String())
	return s.authz.Authorize(ctx, subject, departmentID.String(), authorization.ObjectPaymentCycle, action)
}

func (s *Service) audit(ctx context.Context, actor actorcontext.Actor, action string, cycleID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := actor.UserID.String()
	targetID := cycleID.String()
	if err := s.auditSvc.AuditLog(ctx, "user", &actorID, action, "payment_cycle", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) notifyPaymentRecorded(ctx context.Context, subscription *subscriptiondomain.Subscription, cycle *domain.PaymentCycle) {
	if s.notifier == nil {
		return
	}
	subscriptionID := subscription.ID
	message := fmt.Sprintf("Payment for %s cycle #%d has been recorded. Upload the invoice before %s.",
		subscription.ToolName,
		cycle.CycleNumber,
		cycle.InvoiceDeadline.Format("2006-01-02"),
	)
	if err := s.notifier.NotifyPOC(ctx, subscription.POCEmail, "Payment recorded", message, &subscriptionID); err != nil {
		s.log.Warn("poc notification failed",
			zap.String("subscription_id", subscription.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) observe(ctx context.Context, action domain.Action, outcome string) {
	if outcome == outcomeSuccess {
		cloudmetrics.RecordCycleEvent(string(action))
	}
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCycleTransition(ctx, string(action), outcome)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCycleStateChanged),
		errors.Is(err, domain.ErrInvoiceAlreadyUploaded):
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

func withAuditTargets(ctx context.Context, subscription *subscriptiondomain.Subscription, cycle *domain.PaymentCycle) context.Context {
	ctx = auditcontext.WithSubscriptionID(ctx, subscription.ID.String())
	return auditcontext.WithPaymentCycleID(ctx, cycle.ID.String())
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func collect(cycles []*domain.PaymentCycle) []domain.PaymentCycle {
	out := make([]domain.PaymentCycle, 0, len(cycles))
	for _, cycle := range cycles {
		if cycle == nil {
			continue
		}
		out = append(out, *cycle)
	}
	return out
}
