package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/subtrack/internal/authorization"
	"github.com/smallbiznis/subtrack/internal/clock"
	"github.com/smallbiznis/subtrack/internal/config"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	cyclerepo "github.com/smallbiznis/subtrack/internal/paymentcycle/repository"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/subtrack/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
)

type allowAuthz struct {
	err error
}

func (a *allowAuthz) Authorize(ctx context.Context, actor, departmentID, object, action string) error {
	return a.err
}

type sweepAudit struct {
	actions []string
}

func (a *sweepAudit) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	a.actions = append(a.actions, action)
	return nil
}

func (a *sweepAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type sweepNotifier struct {
	pocErr       error
	pocTitles    []string
	pocMessages  []string
	financeCalls int
	financeSize  int
}

func (n *sweepNotifier) Notify(ctx context.Context, userID snowflake.ID, title, message string, subscriptionID *snowflake.ID) error {
	return nil
}

func (n *sweepNotifier) NotifyPOC(ctx context.Context, pocEmail, title, message string, subscriptionID *snowflake.ID) error {
	if n.pocErr != nil {
		return n.pocErr
	}
	n.pocTitles = append(n.pocTitles, title)
	n.pocMessages = append(n.pocMessages, message)
	return nil
}

func (n *sweepNotifier) NotifyFinanceTeam(ctx context.Context, title, message string, subscriptionID *snowflake.ID) (int, error) {
	n.financeCalls++
	return n.financeSize, nil
}

func openSchedulerDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// sqlite has no row locks; drop the FOR UPDATE suffixes on claim reads.
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

	require.NoError(t, db.AutoMigrate(&subscriptiondomain.Subscription{}, &cycledomain.PaymentCycle{}))
	return db
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

type sweepHarness struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	authz *allowAuthz
	audit *sweepAudit
	notes *sweepNotifier
	jobs  *config.JobsConfigHolder
	sched *Scheduler
}

func newSweepHarness(t *testing.T) *sweepHarness {
	db := openSchedulerDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	h := &sweepHarness{
		db:    db,
		node:  node,
		clock: clock.NewFakeClock(day(2025, 3, 25)),
		authz: &allowAuthz{},
		audit: &sweepAudit{},
		notes: &sweepNotifier{financeSize: 3},
		jobs:  config.NewStaticJobsConfigHolder(config.DefaultJobsConfig()),
	}
	h.sched = h.build(t, cyclerepo.Provide())
	return h
}

func (h *sweepHarness) build(t *testing.T, repo cycledomain.Repository) *Scheduler {
	sched, err := New(Params{
		DB:               h.db,
		Log:              zap.NewNop(),
		GenID:            h.node,
		Clock:            h.clock,
		CycleRepo:        repo,
		SubscriptionRepo: subscriptionrepo.Provide(),
		AuthzSvc:         h.authz,
		AuditSvc:         h.audit,
		JobsConfig:       h.jobs,
		Notifier:         h.notes,
	})
	require.NoError(t, err)
	return sched
}

func (h *sweepHarness) seedSub(t *testing.T, frequency subscriptiondomain.BillingFrequency, status subscriptiondomain.SubscriptionStatus, endDate *time.Time) *subscriptiondomain.Subscription {
	now := time.Now().UTC()
	sub := &subscriptiondomain.Subscription{
		ID:               h.node.Generate(),
		ToolName:         "Miro",
		Vendor:           "Miro BV",
		DepartmentID:     h.node.Generate(),
		POCEmail:         "poc@example.com",
		BillingFrequency: frequency,
		StartDate:        day(2025, 1, 1),
		EndDate:          endDate,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, h.db.Create(sub).Error)
	return sub
}

func (h *sweepHarness) seedCycleRow(t *testing.T, subID snowflake.ID, number int, start, end time.Time, status cycledomain.CycleStatus) *cycledomain.PaymentCycle {
	now := time.Now().UTC()
	cycle := &cycledomain.PaymentCycle{
		ID:                h.node.Generate(),
		SubscriptionID:    subID,
		CycleNumber:       number,
		CycleStartDate:    start,
		CycleEndDate:      end,
		InvoiceDeadline:   end,
		CycleStatus:       status,
		POCApprovalStatus: cycledomain.ApprovalStatusPending,
		PaymentStatus:     cycledomain.PaymentStatusInProgress,
		AccountingStatus:  cycledomain.AccountingStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, h.db.Create(cycle).Error)
	return cycle
}

func (h *sweepHarness) cycleCount(t *testing.T, subID snowflake.ID) int64 {
	var count int64
	require.NoError(t, h.db.Model(&cycledomain.PaymentCycle{}).Where("subscription_id = ?", subID).Count(&count).Error)
	return count
}

func (h *sweepHarness) findCycle(t *testing.T, subID snowflake.ID, number int) cycledomain.PaymentCycle {
	var cycle cycledomain.PaymentCycle
	require.NoError(t, h.db.Where("subscription_id = ? AND cycle_number = ?", subID, number).First(&cycle).Error)
	return cycle
}

func TestCycleCreationOpensRenewalInsideWindow(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 3, day(2025, 3, 2), day(2025, 3, 31), cycledomain.CycleStatusCompleted)

	summary := h.sched.RunCycleCreation(context.Background(), day(2025, 3, 25))

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.TotalChecked)
	assert.Equal(t, 1, summary.CyclesCreated)
	require.Len(t, summary.Created, 1)
	assert.Equal(t, sub.ID.String(), summary.Created[0].SubscriptionID)
	assert.Equal(t, 4, summary.Created[0].CycleNumber)
	assert.Equal(t, "2025-04-01", summary.Created[0].StartDate)
	assert.Equal(t, "2025-04-30", summary.Created[0].EndDate)

	created := h.findCycle(t, sub.ID, 4)
	assert.Equal(t, cycledomain.CycleStatusPendingApproval, created.CycleStatus)
	assert.Equal(t, cycledomain.ApprovalStatusPending, created.POCApprovalStatus)
	assert.Equal(t, cycledomain.PaymentStatusInProgress, created.PaymentStatus)
	assert.Equal(t, cycledomain.AccountingStatusPending, created.AccountingStatus)
	assert.Equal(t, "2025-04-30", created.InvoiceDeadline.Format("2006-01-02"))

	assert.Contains(t, h.audit.actions, "payment_cycle.create")
	require.Len(t, h.notes.pocTitles, 1)
	assert.Equal(t, "Subscription renewal pending", h.notes.pocTitles[0])
	assert.Contains(t, h.notes.pocMessages[0], "cycle #4")
}

func TestCycleCreationWindowBoundaries(t *testing.T) {
	h := newSweepHarness(t)
	today := day(2025, 3, 25)

	// Next start exactly today and exactly ten days out are both in the
	// window; eleven days out and one day past are not.
	onToday := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, onToday.ID, 1, day(2025, 2, 23), day(2025, 3, 24), cycledomain.CycleStatusCompleted)

	tenOut := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, tenOut.ID, 1, day(2025, 3, 5), day(2025, 4, 3), cycledomain.CycleStatusCompleted)

	elevenOut := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, elevenOut.ID, 1, day(2025, 3, 6), day(2025, 4, 4), cycledomain.CycleStatusCompleted)

	missed := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, missed.ID, 1, day(2025, 2, 22), day(2025, 3, 23), cycledomain.CycleStatusCompleted)

	summary := h.sched.RunCycleCreation(context.Background(), today)

	assert.True(t, summary.Success)
	assert.Equal(t, 4, summary.TotalChecked)
	assert.Equal(t, 2, summary.CyclesCreated)
	assert.EqualValues(t, 2, h.cycleCount(t, onToday.ID))
	assert.EqualValues(t, 2, h.cycleCount(t, tenOut.ID))
	assert.EqualValues(t, 1, h.cycleCount(t, elevenOut.ID))
	assert.EqualValues(t, 1, h.cycleCount(t, missed.ID))
}

func TestCycleCreationRenewalsAreContiguous(t *testing.T) {
	h := newSweepHarness(t)
	today := day(2025, 6, 10)
	lengths := map[subscriptiondomain.BillingFrequency]int{
		subscriptiondomain.BillingFrequencyMonthly:    30,
		subscriptiondomain.BillingFrequencyQuarterly:  90,
		subscriptiondomain.BillingFrequencyYearly:     365,
		subscriptiondomain.BillingFrequencyUsageBased: 30,
	}

	subs := make(map[snowflake.ID]subscriptiondomain.BillingFrequency)
	for frequency := range lengths {
		sub := h.seedSub(t, frequency, subscriptiondomain.SubscriptionStatusActive, nil)
		// Last cycle ends yesterday, so the renewal starts today.
		h.seedCycleRow(t, sub.ID, 7, day(2025, 5, 11), day(2025, 6, 9), cycledomain.CycleStatusCompleted)
		subs[sub.ID] = frequency
	}

	summary := h.sched.RunCycleCreation(context.Background(), today)
	require.True(t, summary.Success)
	assert.Equal(t, len(lengths), summary.CyclesCreated)

	for subID, frequency := range subs {
		created := h.findCycle(t, subID, 8)
		assert.Equal(t, "2025-06-10", created.CycleStartDate.Format("2006-01-02"), "frequency %s", frequency)
		wantEnd := day(2025, 6, 10).AddDate(0, 0, lengths[frequency]-1)
		assert.Equal(t, wantEnd.Format("2006-01-02"), created.CycleEndDate.Format("2006-01-02"), "frequency %s", frequency)
		assert.Equal(t, created.CycleEndDate.Format("2006-01-02"), created.InvoiceDeadline.Format("2006-01-02"))
	}
}

func TestCycleCreationSkipsSubscriptionsWithoutHistory(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)

	summary := h.sched.RunCycleCreation(context.Background(), day(2025, 3, 25))

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.TotalChecked)
	assert.Equal(t, 0, summary.CyclesCreated)
	assert.EqualValues(t, 0, h.cycleCount(t, sub.ID))
}

func TestCycleCreationIgnoresInactiveSubscriptions(t *testing.T) {
	h := newSweepHarness(t)
	for _, status := range []subscriptiondomain.SubscriptionStatus{
		subscriptiondomain.SubscriptionStatusPending,
		subscriptiondomain.SubscriptionStatusCancelled,
		subscriptiondomain.SubscriptionStatusExpired,
	} {
		sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, status, nil)
		h.seedCycleRow(t, sub.ID, 1, day(2025, 2, 23), day(2025, 3, 24), cycledomain.CycleStatusCompleted)
	}

	summary := h.sched.RunCycleCreation(context.Background(), day(2025, 3, 25))

	assert.True(t, summary.Success)
	// Inactive subscriptions never reach the per-row checks.
	assert.Equal(t, 0, summary.TotalChecked)
	assert.Equal(t, 0, summary.CyclesCreated)
}

func TestCycleCreationSecondSweepIsIdempotent(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 3, day(2025, 3, 2), day(2025, 3, 31), cycledomain.CycleStatusCompleted)

	first := h.sched.RunCycleCreation(context.Background(), day(2025, 3, 25))
	require.Equal(t, 1, first.CyclesCreated)

	second := h.sched.RunCycleCreation(context.Background(), day(2025, 3, 25))
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.CyclesCreated)
	assert.EqualValues(t, 2, h.cycleCount(t, sub.ID))
}

// staleLatestRepo serves a stale latest-cycle read, modelling a concurrent
// sweep that created the same renewal between this sweep's read and insert.
type staleLatestRepo struct {
	cycledomain.Repository
	stale *cycledomain.PaymentCycle
}

func (r *staleLatestRepo) FindLatestBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*cycledomain.PaymentCycle, error) {
	return r.stale, nil
}

func TestCycleCreationToleratesConcurrentSweep(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	stale := h.seedCycleRow(t, sub.ID, 3, day(2025, 3, 2), day(2025, 3, 31), cycledomain.CycleStatusCompleted)
	// The competing sweep already inserted cycle #4.
	h.seedCycleRow(t, sub.ID, 4, day(2025, 4, 1), day(2025, 4, 30), cycledomain.CycleStatusPendingApproval)

	racing := h.build(t, &staleLatestRepo{Repository: cyclerepo.Provide(), stale: stale})
	summary := racing.RunCycleCreation(context.Background(), day(2025, 3, 25))

	// The duplicate insert is swallowed, not reported as a failure.
	assert.True(t, summary.Success)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 0, summary.CyclesCreated)
	assert.EqualValues(t, 2, h.cycleCount(t, sub.ID))
}

func TestCycleCreationStopsOnCancelledContext(t *testing.T) {
	h := newSweepHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := h.sched.RunCycleCreation(ctx, day(2025, 3, 25))
	assert.False(t, summary.Success)
	require.NotEmpty(t, summary.Errors)
	assert.Contains(t, summary.Errors[0], context.Canceled.Error())
}

func TestJobsRequireSystemGrant(t *testing.T) {
	h := newSweepHarness(t)
	h.authz.err = authorization.ErrForbidden
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 3, day(2025, 3, 2), day(2025, 3, 31), cycledomain.CycleStatusCompleted)

	summary := h.sched.RunCycleCreation(context.Background(), day(2025, 3, 25))
	assert.False(t, summary.Success)
	assert.Equal(t, 0, summary.TotalChecked)
	assert.EqualValues(t, 1, h.cycleCount(t, sub.ID))
}

func TestAutoCancellationRequiresStrictlyPastDeadline(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	cycle := h.seedCycleRow(t, sub.ID, 2, day(2024, 12, 12), day(2025, 1, 10), cycledomain.CycleStatusPaymentRecorded)

	// On the deadline day itself nothing is overdue.
	onDay := h.sched.RunAutoCancellation(context.Background(), day(2025, 1, 10))
	assert.True(t, onDay.Success)
	assert.Equal(t, 0, onDay.CancelledCount)
	assert.Equal(t, cycledomain.CycleStatusPaymentRecorded, h.findCycle(t, sub.ID, 2).CycleStatus)

	// One day later it is.
	after := h.sched.RunAutoCancellation(context.Background(), day(2025, 1, 11))
	assert.True(t, after.Success)
	assert.Equal(t, 1, after.TotalOverdue)
	assert.Equal(t, 1, after.CancelledCount)
	require.Len(t, after.Cancelled, 1)
	assert.Equal(t, cycle.ID.String(), after.Cancelled[0].CycleID)
	assert.Equal(t, "2025-01-10", after.Cancelled[0].InvoiceDeadline)

	got := h.findCycle(t, sub.ID, 2)
	assert.Equal(t, cycledomain.CycleStatusCancelled, got.CycleStatus)
	require.NotNil(t, got.POCRejectionReason)
	assert.Equal(t, cycledomain.AutoCancelReason, *got.POCRejectionReason)
	assert.Contains(t, h.audit.actions, "payment_cycle.auto_cancel")
}

func TestAutoCancellationNotifiesPOCAndFinance(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 2, day(2024, 12, 12), day(2025, 1, 10), cycledomain.CycleStatusPaymentRecorded)

	summary := h.sched.RunAutoCancellation(context.Background(), day(2025, 1, 11))

	// One POC row plus one per finance user.
	assert.Equal(t, 1+h.notes.financeSize, summary.NotificationsSent)
	require.Len(t, h.notes.pocTitles, 1)
	assert.Equal(t, "Payment cycle auto-cancelled", h.notes.pocTitles[0])
	assert.Contains(t, h.notes.pocMessages[0], "2025-01-10")
	assert.Equal(t, 1, h.notes.financeCalls)
}

func TestAutoCancellationFailedNotificationNeverUnwinds(t *testing.T) {
	h := newSweepHarness(t)
	h.notes.pocErr = errors.New("mail relay unavailable")
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 2, day(2024, 12, 12), day(2025, 1, 10), cycledomain.CycleStatusPaymentRecorded)

	summary := h.sched.RunAutoCancellation(context.Background(), day(2025, 1, 11))

	// The cancel sticks; only the finance rows count as sent.
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.CancelledCount)
	assert.Equal(t, h.notes.financeSize, summary.NotificationsSent)
	assert.Equal(t, cycledomain.CycleStatusCancelled, h.findCycle(t, sub.ID, 2).CycleStatus)
}

func TestAutoCancellationSkipsNonCandidates(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)

	// Invoice already on file.
	withInvoice := h.seedCycleRow(t, sub.ID, 1, day(2024, 11, 12), day(2024, 12, 11), cycledomain.CycleStatusPaymentRecorded)
	fileID := h.node.Generate()
	require.NoError(t, h.db.Model(&cycledomain.PaymentCycle{}).Where("id = ?", withInvoice.ID).Update("invoice_file_id", fileID).Error)

	// Still waiting on the payment itself.
	h.seedCycleRow(t, sub.ID, 2, day(2024, 12, 12), day(2025, 1, 10), cycledomain.CycleStatusPendingPayment)

	// Already closed.
	h.seedCycleRow(t, sub.ID, 3, day(2025, 1, 11), day(2025, 2, 9), cycledomain.CycleStatusCompleted)

	summary := h.sched.RunAutoCancellation(context.Background(), day(2025, 3, 1))

	assert.True(t, summary.Success)
	assert.Equal(t, 0, summary.TotalOverdue)
	assert.Equal(t, 0, summary.CancelledCount)
}

func TestSubscriptionExpiryStrictlyAfterEndDate(t *testing.T) {
	h := newSweepHarness(t)
	ended := day(2025, 3, 24)
	endsToday := day(2025, 3, 25)

	past := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, &ended)
	today := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, &endsToday)
	open := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)

	summary := h.sched.RunSubscriptionExpiry(context.Background(), day(2025, 3, 25))

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.TotalChecked)
	assert.Equal(t, 1, summary.ExpiredCount)

	var got subscriptiondomain.Subscription
	require.NoError(t, h.db.Where("id = ?", past.ID).First(&got).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusExpired, got.Status)
	require.NoError(t, h.db.Where("id = ?", today.ID).First(&got).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, got.Status)
	require.NoError(t, h.db.Where("id = ?", open.ID).First(&got).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, got.Status)
	assert.Contains(t, h.audit.actions, "subscription.expire")
}

func TestRunOnceHonorsJobToggles(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 3, day(2025, 3, 2), day(2025, 3, 31), cycledomain.CycleStatusCompleted)

	h.jobs.Store(config.JobsConfig{
		CycleCreation:      config.JobToggle{Enabled: false},
		AutoCancellation:   config.JobToggle{Enabled: false},
		SubscriptionExpiry: config.JobToggle{Enabled: false},
	})
	require.NoError(t, h.sched.RunOnce(context.Background()))
	assert.EqualValues(t, 1, h.cycleCount(t, sub.ID))

	h.jobs.Store(config.JobsConfig{
		CycleCreation:      config.JobToggle{Enabled: true},
		AutoCancellation:   config.JobToggle{Enabled: false},
		SubscriptionExpiry: config.JobToggle{Enabled: false},
	})
	require.NoError(t, h.sched.RunOnce(context.Background()))
	assert.EqualValues(t, 2, h.cycleCount(t, sub.ID))
}

// The whole renewal story: the sweep opens cycle #4 inside the ten day
// window, the POC approves and finance pays, nobody uploads the invoice,
// and the next cancellation sweep after the deadline closes it.
func TestRenewalLifecycleEndToEnd(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 3, day(2025, 3, 2), day(2025, 3, 31), cycledomain.CycleStatusCompleted)

	creation := h.sched.RunCycleCreation(context.Background(), day(2025, 3, 25))
	require.True(t, creation.Success)
	require.Equal(t, 1, creation.CyclesCreated)

	renewal := h.findCycle(t, sub.ID, 4)
	assert.Equal(t, "2025-04-01", renewal.CycleStartDate.Format("2006-01-02"))
	assert.Equal(t, "2025-04-30", renewal.InvoiceDeadline.Format("2006-01-02"))

	// Approval and payment land, the invoice never does.
	require.NoError(t, h.db.Exec(
		`UPDATE payment_cycles
		 SET cycle_status = ?, poc_approval_status = ?, payment_status = ?, accounting_status = ?
		 WHERE id = ?`,
		cycledomain.CycleStatusPaymentRecorded,
		cycledomain.ApprovalStatusApproved,
		cycledomain.PaymentStatusPaid,
		cycledomain.AccountingStatusDone,
		renewal.ID,
	).Error)

	// The deadline day passes untouched.
	onDeadline := h.sched.RunAutoCancellation(context.Background(), day(2025, 4, 30))
	require.Equal(t, 0, onDeadline.CancelledCount)

	cancellation := h.sched.RunAutoCancellation(context.Background(), day(2025, 5, 1))
	require.True(t, cancellation.Success)
	require.Equal(t, 1, cancellation.CancelledCount)

	closed := h.findCycle(t, sub.ID, 4)
	assert.Equal(t, cycledomain.CycleStatusCancelled, closed.CycleStatus)
	require.NotNil(t, closed.POCRejectionReason)
	assert.Equal(t, cycledomain.AutoCancelReason, *closed.POCRejectionReason)
	assert.Equal(t, 1+h.notes.financeSize, cancellation.NotificationsSent)
}

func TestSummaryError(t *testing.T) {
	assert.NoError(t, summaryError(nil))
	assert.NoError(t, summaryError([]string{}))

	err := summaryError([]string{"first failure", "second failure"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors")
	assert.Contains(t, err.Error(), "first failure")
}

func TestConfigDefaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{}.withDefaults())

	custom := Config{BatchSize: 5, LeaseKey: "subtrack:test:lease"}.withDefaults()
	assert.Equal(t, 5, custom.BatchSize)
	assert.Equal(t, "subtrack:test:lease", custom.LeaseKey)
	assert.Equal(t, time.Minute, custom.RunInterval)
	assert.Equal(t, 30*time.Second, custom.JobTimeout)
	assert.Equal(t, 10, custom.CreationWindowDays)
	assert.Equal(t, 5*time.Minute, custom.LeaseTTL)
}

func TestNewRequiresCoreDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunJobClassifiesTimeoutsAsSoft(t *testing.T) {
	h := newSweepHarness(t)

	err := h.sched.runJob(context.Background(), JobCycleCreation, 10, time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)

	err = h.sched.runJob(context.Background(), JobCycleCreation, 10, time.Second, func(ctx context.Context) error {
		return errors.New("list subscriptions: connection refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobCycleCreation)
}

func TestRunOnceSoftFailsWhenSweepInterrupted(t *testing.T) {
	h := newSweepHarness(t)
	sub := h.seedSub(t, subscriptiondomain.BillingFrequencyMonthly, subscriptiondomain.SubscriptionStatusActive, nil)
	h.seedCycleRow(t, sub.ID, 3, day(2025, 3, 2), day(2025, 3, 31), cycledomain.CycleStatusCompleted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The interrupted sweep counts as a timeout, not a failure; nothing is
	// created and nothing errors out of the run loop.
	require.NoError(t, h.sched.RunOnce(ctx))
	assert.EqualValues(t, 1, h.cycleCount(t, sub.ID))
}
