package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/subtrack/internal/actorcontext"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	"github.com/smallbiznis/subtrack/internal/authorization"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	cyclerepo "github.com/smallbiznis/subtrack/internal/paymentcycle/repository"
	"github.com/smallbiznis/subtrack/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/subtrack/internal/subscription/repository"
	"github.com/smallbiznis/subtrack/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubAuthz struct {
	denied map[string]error
	calls  []string
}

func (s *stubAuthz) Authorize(ctx context.Context, actor, departmentID, object, action string) error {
	s.calls = append(s.calls, action)
	if err, ok := s.denied[action]; ok {
		return err
	}
	return nil
}

func (s *stubAuthz) deny(action string, err error) {
	if s.denied == nil {
		s.denied = make(map[string]error)
	}
	s.denied[action] = err
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	a.actions = append(a.actions, action)
	return nil
}

func (a *recordingAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type recordingNotifier struct {
	pocTitles []string
}

func (n *recordingNotifier) Notify(ctx context.Context, userID snowflake.ID, title, message string, subscriptionID *snowflake.ID) error {
	return nil
}

func (n *recordingNotifier) NotifyPOC(ctx context.Context, pocEmail, title, message string, subscriptionID *snowflake.ID) error {
	n.pocTitles = append(n.pocTitles, title)
	return nil
}

func (n *recordingNotifier) NotifyFinanceTeam(ctx context.Context, title, message string, subscriptionID *snowflake.ID) (int, error) {
	return 0, nil
}

func openSubDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// sqlite has no row locks; drop the FOR UPDATE suffix on lock reads.
	err = db.Callback().Query().Before("gorm:query").Register("test:strip_row_locks", func(tx *gorm.DB) {
		sql := tx.Statement.SQL.String()
		if !strings.Contains(sql, "FOR UPDATE") {
			return
		}
		sql = strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
		sql = strings.ReplaceAll(sql, "FOR UPDATE", "")
		tx.Statement.SQL.Reset()
		tx.Statement.SQL.WriteString(sql)
	})
	require.NoError(t, err)
	err = db.Callback().Row().Before("gorm:row").Register("test:strip_row_locks_row", func(tx *gorm.DB) {
		sql := tx.Statement.SQL.String()
		if !strings.Contains(sql, "FOR UPDATE") {
			return
		}
		sql = strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
		sql = strings.ReplaceAll(sql, "FOR UPDATE", "")
		tx.Statement.SQL.Reset()
		tx.Statement.SQL.WriteString(sql)
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&domain.Subscription{}, &cycledomain.PaymentCycle{}))
	return db
}

type subHarness struct {
	db    *gorm.DB
	node  *snowflake.Node
	authz *stubAuthz
	audit *recordingAudit
	notes *recordingNotifier
	svc   domain.Service
}

func newSubHarness(t *testing.T) *subHarness {
	db := openSubDB(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	h := &subHarness{
		db:    db,
		node:  node,
		authz: &stubAuthz{},
		audit: &recordingAudit{},
		notes: &recordingNotifier{},
	}
	h.svc = New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      subscriptionrepo.Provide(),
		CycleRepo: cyclerepo.Provide(),
		Authz:     h.authz,
		AuditSvc:  h.audit,
		Notifier:  h.notes,
	})
	return h
}

func (h *subHarness) seed(t *testing.T, status domain.SubscriptionStatus, frequency domain.BillingFrequency) *domain.Subscription {
	now := time.Now().UTC()
	sub := &domain.Subscription{
		ID:               h.node.Generate(),
		ToolName:         "Datadog",
		Vendor:           "Datadog Inc",
		DepartmentID:     h.node.Generate(),
		POCEmail:         "poc@example.com",
		BillingFrequency: frequency,
		StartDate:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, h.db.Create(sub).Error)
	return sub
}

func (h *subHarness) ctx() context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{
		UserID: h.node.Generate(),
		Role:   "ADMIN",
	})
}

func (h *subHarness) cyclesOf(t *testing.T, subID snowflake.ID) []cycledomain.PaymentCycle {
	var cycles []cycledomain.PaymentCycle
	require.NoError(t, h.db.Where("subscription_id = ?", subID).Order("cycle_number ASC").Find(&cycles).Error)
	return cycles
}

func paging(size int) pagination.Request {
	return pagination.Request{PageSize: size}
}

func TestActivateOpensFirstCycle(t *testing.T) {
	h := newSubHarness(t)
	sub := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyMonthly)

	updated, err := h.svc.Activate(h.ctx(), domain.ActivateSubscriptionRequest{ID: sub.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, updated.Status)

	cycles := h.cyclesOf(t, sub.ID)
	require.Len(t, cycles, 1)
	first := cycles[0]
	assert.Equal(t, 1, first.CycleNumber)
	assert.Equal(t, cycledomain.CycleStatusPendingApproval, first.CycleStatus)
	assert.Equal(t, cycledomain.ApprovalStatusPending, first.POCApprovalStatus)
	assert.Equal(t, cycledomain.PaymentStatusInProgress, first.PaymentStatus)
	assert.Equal(t, cycledomain.AccountingStatusPending, first.AccountingStatus)
	// A 30 day cycle from the subscription start date, deadline on the end.
	assert.Equal(t, "2025-02-01", first.CycleStartDate.Format("2006-01-02"))
	assert.Equal(t, "2025-03-02", first.CycleEndDate.Format("2006-01-02"))
	assert.Equal(t, "2025-03-02", first.InvoiceDeadline.Format("2006-01-02"))

	assert.Contains(t, h.audit.actions, "subscription.activate")
	require.Len(t, h.notes.pocTitles, 1)
	assert.Equal(t, "Subscription renewal pending", h.notes.pocTitles[0])
}

func TestActivateQuarterlySpansNinetyDays(t *testing.T) {
	h := newSubHarness(t)
	sub := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyQuarterly)

	_, err := h.svc.Activate(h.ctx(), domain.ActivateSubscriptionRequest{ID: sub.ID.String()})
	require.NoError(t, err)

	cycles := h.cyclesOf(t, sub.ID)
	require.Len(t, cycles, 1)
	assert.Equal(t, "2025-02-01", cycles[0].CycleStartDate.Format("2006-01-02"))
	assert.Equal(t, "2025-05-01", cycles[0].CycleEndDate.Format("2006-01-02"))
}

func TestActivateSkipsBootstrapWhenCycleExists(t *testing.T) {
	h := newSubHarness(t)
	sub := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyMonthly)
	now := time.Now().UTC()
	require.NoError(t, h.db.Create(&cycledomain.PaymentCycle{
		ID:                h.node.Generate(),
		SubscriptionID:    sub.ID,
		CycleNumber:       1,
		CycleStartDate:    sub.StartDate,
		CycleEndDate:      sub.StartDate.AddDate(0, 0, 29),
		InvoiceDeadline:   sub.StartDate.AddDate(0, 0, 29),
		CycleStatus:       cycledomain.CycleStatusPendingApproval,
		POCApprovalStatus: cycledomain.ApprovalStatusPending,
		PaymentStatus:     cycledomain.PaymentStatusInProgress,
		AccountingStatus:  cycledomain.AccountingStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}).Error)

	updated, err := h.svc.Activate(h.ctx(), domain.ActivateSubscriptionRequest{ID: sub.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, updated.Status)
	assert.Len(t, h.cyclesOf(t, sub.ID), 1)
	// Nothing new was bootstrapped, so no renewal notice either.
	assert.Empty(t, h.notes.pocTitles)
}

func TestActivateRejectsNonPending(t *testing.T) {
	h := newSubHarness(t)
	for _, status := range []domain.SubscriptionStatus{
		domain.SubscriptionStatusActive,
		domain.SubscriptionStatusRejected,
		domain.SubscriptionStatusCancelled,
	} {
		sub := h.seed(t, status, domain.BillingFrequencyMonthly)
		_, err := h.svc.Activate(h.ctx(), domain.ActivateSubscriptionRequest{ID: sub.ID.String()})
		assert.ErrorIs(t, err, domain.ErrInvalidSubscriptionStatus, "status %s", status)
	}
}

func TestActivateDeniedLeavesSubscriptionPending(t *testing.T) {
	h := newSubHarness(t)
	h.authz.deny(authorization.ActionSubscriptionActivate, authorization.ErrForbidden)
	sub := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyMonthly)

	_, err := h.svc.Activate(h.ctx(), domain.ActivateSubscriptionRequest{ID: sub.ID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	var got domain.Subscription
	require.NoError(t, h.db.Where("id = ?", sub.ID).First(&got).Error)
	assert.Equal(t, domain.SubscriptionStatusPending, got.Status)
	assert.Empty(t, h.cyclesOf(t, sub.ID))
}

func TestRejectRequiresSubstantiveReason(t *testing.T) {
	h := newSubHarness(t)

	_, err := h.svc.Reject(h.ctx(), domain.RejectSubscriptionRequest{
		ID:     h.node.Generate().String(),
		Reason: "too pricy",
	})
	assert.ErrorIs(t, err, domain.ErrRejectionReasonRequired)
	assert.Empty(t, h.authz.calls)
}

func TestRejectPersistsReason(t *testing.T) {
	h := newSubHarness(t)
	sub := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyMonthly)

	updated, err := h.svc.Reject(h.ctx(), domain.RejectSubscriptionRequest{
		ID:     sub.ID.String(),
		Reason: "Duplicate of the existing observability contract",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusRejected, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "Duplicate of the existing observability contract", *updated.RejectionReason)
	assert.Contains(t, h.audit.actions, "subscription.reject")

	// REJECTED is terminal.
	_, err = h.svc.Cancel(h.ctx(), domain.CancelSubscriptionRequest{ID: sub.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidSubscriptionStatus)
}

func TestCancelActiveSubscription(t *testing.T) {
	h := newSubHarness(t)
	sub := h.seed(t, domain.SubscriptionStatusActive, domain.BillingFrequencyMonthly)

	updated, err := h.svc.Cancel(h.ctx(), domain.CancelSubscriptionRequest{ID: sub.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, updated.Status)
	assert.Contains(t, h.audit.actions, "subscription.cancel")
}

func TestCancelPendingIsRejected(t *testing.T) {
	h := newSubHarness(t)
	sub := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyMonthly)

	_, err := h.svc.Cancel(h.ctx(), domain.CancelSubscriptionRequest{ID: sub.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidSubscriptionStatus)
}

func TestGetByIDErrors(t *testing.T) {
	h := newSubHarness(t)

	_, err := h.svc.GetByID(h.ctx(), domain.GetSubscriptionRequest{ID: h.node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	_, err = h.svc.GetByID(h.ctx(), domain.GetSubscriptionRequest{ID: "garbage"})
	assert.ErrorIs(t, err, domain.ErrInvalidSubscription)
}

func TestListPagesByAscendingID(t *testing.T) {
	h := newSubHarness(t)
	first := h.seed(t, domain.SubscriptionStatusActive, domain.BillingFrequencyMonthly)
	second := h.seed(t, domain.SubscriptionStatusActive, domain.BillingFrequencyMonthly)
	third := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyMonthly)

	resp, err := h.svc.List(h.ctx(), domain.ListSubscriptionsRequest{Request: paging(2)})
	require.NoError(t, err)
	require.Len(t, resp.Subscriptions, 2)
	assert.True(t, resp.HasMore)
	assert.Equal(t, first.ID, resp.Subscriptions[0].ID)
	assert.Equal(t, second.ID, resp.Subscriptions[1].ID)

	next, err := h.svc.List(h.ctx(), domain.ListSubscriptionsRequest{
		Request: pagination.Request{PageSize: 2, PageToken: resp.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, next.Subscriptions, 1)
	assert.False(t, next.HasMore)
	assert.Equal(t, third.ID, next.Subscriptions[0].ID)
}

func TestListFiltersByStatus(t *testing.T) {
	h := newSubHarness(t)
	h.seed(t, domain.SubscriptionStatusActive, domain.BillingFrequencyMonthly)
	pending := h.seed(t, domain.SubscriptionStatusPending, domain.BillingFrequencyMonthly)

	resp, err := h.svc.List(h.ctx(), domain.ListSubscriptionsRequest{
		Request: paging(10),
		Status:  "pending",
	})
	require.NoError(t, err)
	require.Len(t, resp.Subscriptions, 1)
	assert.Equal(t, pending.ID, resp.Subscriptions[0].ID)

	_, err = h.svc.List(h.ctx(), domain.ListSubscriptionsRequest{
		Request: paging(10),
		Status:  "FROZEN",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSubscriptionStatus)
}

func TestListFiltersByDepartment(t *testing.T) {
	h := newSubHarness(t)
	mine := h.seed(t, domain.SubscriptionStatusActive, domain.BillingFrequencyMonthly)
	h.seed(t, domain.SubscriptionStatusActive, domain.BillingFrequencyMonthly)

	resp, err := h.svc.List(h.ctx(), domain.ListSubscriptionsRequest{
		Request:      paging(10),
		DepartmentID: mine.DepartmentID.String(),
	})
	require.NoError(t, err)
	require.Len(t, resp.Subscriptions, 1)
	assert.Equal(t, mine.ID, resp.Subscriptions[0].ID)
}
