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
	"github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	cyclerepo "github.com/smallbiznis/subtrack/internal/paymentcycle/repository"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/subtrack/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stub authorizer: allow everything unless a specific action is denied.
type stubAuthz struct {
	denied map[string]error
	calls  []string
}

func (s *stubAuthz) Authorize(ctx context.Context, actor, departmentID, object, action string) error {
	s.calls = append(s.calls, actor+" "+departmentID+" "+object+" "+action)
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

type auditEntry struct {
	ActorType  string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type recordingAudit struct {
	entries []auditEntry
}

func (a *recordingAudit) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	entry := auditEntry{ActorType: actorType, Action: action, TargetType: targetType, Metadata: metadata}
	if actorID != nil {
		entry.ActorID = *actorID
	}
	if targetID != nil {
		entry.TargetID = *targetID
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (a *recordingAudit) byAction(action string) []auditEntry {
	var out []auditEntry
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	pocSends     []string
	financeSends []string
	financeSize  int
}

func (n *recordingNotifier) Notify(ctx context.Context, userID snowflake.ID, title, message string, subscriptionID *snowflake.ID) error {
	return nil
}

func (n *recordingNotifier) NotifyPOC(ctx context.Context, pocEmail, title, message string, subscriptionID *snowflake.ID) error {
	n.pocSends = append(n.pocSends, pocEmail+": "+title)
	return nil
}

func (n *recordingNotifier) NotifyFinanceTeam(ctx context.Context, title, message string, subscriptionID *snowflake.ID) (int, error) {
	n.financeSends = append(n.financeSends, title)
	return n.financeSize, nil
}

// sqlite has no row locks; drop the FOR UPDATE suffixes the postgres
// queries carry.
func stripRowLocks(t *testing.T, db *gorm.DB) {
	err := db.Callback().Query().Before("gorm:query").Register("test:strip_row_locks", func(tx *gorm.DB) {
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
}

func openCycleDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	stripRowLocks(t, db)

	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGINT PRIMARY KEY,
		tool_name TEXT NOT NULL,
		vendor TEXT,
		department_id BIGINT NOT NULL,
		poc_email TEXT NOT NULL,
		billing_frequency TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		status TEXT NOT NULL,
		rejection_reason TEXT,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error)

	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS payment_cycles (
		id BIGINT PRIMARY KEY,
		subscription_id BIGINT NOT NULL,
		cycle_number INTEGER NOT NULL,
		cycle_start_date DATE NOT NULL,
		cycle_end_date DATE NOT NULL,
		invoice_deadline DATE NOT NULL,
		cycle_status TEXT NOT NULL,
		poc_approval_status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		accounting_status TEXT NOT NULL,
		payment_utr TEXT,
		mandate_id TEXT,
		invoice_file_id BIGINT,
		poc_rejection_reason TEXT,
		payment_recorded_by BIGINT,
		payment_recorded_at TIMESTAMP,
		poc_approved_by BIGINT,
		poc_approved_at TIMESTAMP,
		invoice_uploaded_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_cycles_subscription_number
		 ON payment_cycles (subscription_id, cycle_number)`).Error)

	return db
}

type cycleHarness struct {
	db    *gorm.DB
	node  *snowflake.Node
	authz *stubAuthz
	audit *recordingAudit
	notes *recordingNotifier
	svc   domain.Service
}

func newCycleHarness(t *testing.T) *cycleHarness {
	db := openCycleDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	h := &cycleHarness{
		db:    db,
		node:  node,
		authz: &stubAuthz{},
		audit: &recordingAudit{},
		notes: &recordingNotifier{financeSize: 2},
	}
	h.svc = New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     cyclerepo.Provide(),
		SubRepo:  subscriptionrepo.Provide(),
		Authz:    h.authz,
		AuditSvc: h.audit,
		Notifier: h.notes,
	})
	return h
}

func (h *cycleHarness) seedSubscription(t *testing.T, deptID snowflake.ID) *subscriptiondomain.Subscription {
	now := time.Now().UTC()
	sub := &subscriptiondomain.Subscription{
		ID:               h.node.Generate(),
		ToolName:         "Figma",
		Vendor:           "Figma Inc",
		DepartmentID:     deptID,
		POCEmail:         "poc@example.com",
		BillingFrequency: subscriptiondomain.BillingFrequencyMonthly,
		StartDate:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:           subscriptiondomain.SubscriptionStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, h.db.Create(sub).Error)
	return sub
}

type cycleSpec struct {
	Number        int
	Status        domain.CycleStatus
	Approval      domain.ApprovalStatus
	Payment       domain.PaymentStatus
	Accounting    domain.AccountingStatus
	InvoiceFileID *snowflake.ID
}

func (h *cycleHarness) seedCycle(t *testing.T, sub *subscriptiondomain.Subscription, spec cycleSpec) *domain.PaymentCycle {
	if spec.Number == 0 {
		spec.Number = 1
	}
	if spec.Approval == "" {
		spec.Approval = domain.ApprovalStatusPending
	}
	if spec.Payment == "" {
		spec.Payment = domain.PaymentStatusInProgress
	}
	if spec.Accounting == "" {
		spec.Accounting = domain.AccountingStatusPending
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 30*(spec.Number-1))
	end := start.AddDate(0, 0, 29)
	now := time.Now().UTC()
	cycle := &domain.PaymentCycle{
		ID:                h.node.Generate(),
		SubscriptionID:    sub.ID,
		CycleNumber:       spec.Number,
		CycleStartDate:    start,
		CycleEndDate:      end,
		InvoiceDeadline:   end,
		CycleStatus:       spec.Status,
		POCApprovalStatus: spec.Approval,
		PaymentStatus:     spec.Payment,
		AccountingStatus:  spec.Accounting,
		InvoiceFileID:     spec.InvoiceFileID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, h.db.Create(cycle).Error)
	return cycle
}

func (h *cycleHarness) reload(t *testing.T, id snowflake.ID) domain.PaymentCycle {
	var cycle domain.PaymentCycle
	require.NoError(t, h.db.Where("id = ?", id).First(&cycle).Error)
	return cycle
}

func pocCtx(userID, deptID snowflake.ID) context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{
		UserID:       userID,
		Role:         "POC",
		DepartmentID: deptID,
		Email:        "poc@example.com",
	})
}

func financeCtx(userID snowflake.ID) context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{
		UserID: userID,
		Role:   "FINANCE",
		Email:  "finance@example.com",
	})
}

func TestApproveMovesCycleToPendingPayment(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{Status: domain.CycleStatusPendingApproval})
	actor := h.node.Generate()

	updated, err := h.svc.Approve(pocCtx(actor, dept), domain.ApproveCycleRequest{
		ID:       cycle.ID.String(),
		Comments: "renewal confirmed with vendor",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusPendingPayment, updated.CycleStatus)
	assert.Equal(t, domain.ApprovalStatusApproved, updated.POCApprovalStatus)
	require.NotNil(t, updated.POCApprovedBy)
	assert.Equal(t, actor, *updated.POCApprovedBy)
	assert.NotNil(t, updated.POCApprovedAt)

	entries := h.audit.byAction("payment_cycle.approve")
	require.Len(t, entries, 1)
	assert.Equal(t, cycle.ID.String(), entries[0].TargetID)
	assert.Equal(t, "renewal confirmed with vendor", entries[0].Metadata["comments"])
}

func TestApproveOutsidePendingApprovalConflicts(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{
		Status:   domain.CycleStatusPendingPayment,
		Approval: domain.ApprovalStatusApproved,
	})

	_, err := h.svc.Approve(pocCtx(h.node.Generate(), dept), domain.ApproveCycleRequest{ID: cycle.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// The row is untouched and no audit entry was written.
	assert.Equal(t, domain.CycleStatusPendingPayment, h.reload(t, cycle.ID).CycleStatus)
	assert.Empty(t, h.audit.byAction("payment_cycle.approve"))
}

func TestApproveDeniedLeavesCycleUntouched(t *testing.T) {
	h := newCycleHarness(t)
	h.authz.deny(authorization.ActionCycleApprove, authorization.ErrForbidden)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{Status: domain.CycleStatusPendingApproval})

	_, err := h.svc.Approve(pocCtx(h.node.Generate(), dept), domain.ApproveCycleRequest{ID: cycle.ID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	assert.Equal(t, domain.CycleStatusPendingApproval, h.reload(t, cycle.ID).CycleStatus)
	assert.Empty(t, h.audit.entries)
}

func TestApproveUnknownCycle(t *testing.T) {
	h := newCycleHarness(t)

	_, err := h.svc.Approve(pocCtx(h.node.Generate(), h.node.Generate()), domain.ApproveCycleRequest{
		ID: h.node.Generate().String(),
	})
	assert.ErrorIs(t, err, domain.ErrCycleNotFound)

	_, err = h.svc.Approve(pocCtx(h.node.Generate(), h.node.Generate()), domain.ApproveCycleRequest{ID: "not-a-number"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestApproveLostRaceSurfacesStateConflict(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{Status: domain.CycleStatusPendingApproval})

	// A competing writer flips the row between the read and the guarded
	// update; the conditional update then matches zero rows.
	svc := New(Params{
		DB:      h.db,
		Log:     zap.NewNop(),
		GenID:   h.node,
		Repo:    &racingRepo{Repository: cyclerepo.Provide(), loser: cycle.ID},
		SubRepo: subscriptionrepo.Provide(),
		Authz:   h.authz,
	})

	_, err := svc.Approve(pocCtx(h.node.Generate(), dept), domain.ApproveCycleRequest{ID: cycle.ID.String()})
	assert.ErrorIs(t, err, domain.ErrCycleStateChanged)
}

type racingRepo struct {
	domain.Repository
	loser snowflake.ID
}

func (r *racingRepo) UpdateApprove(ctx context.Context, db *gorm.DB, id, approvedBy snowflake.ID, now time.Time) (int64, error) {
	db.Exec("UPDATE payment_cycles SET cycle_status = ? WHERE id = ?", domain.CycleStatusPendingPayment, r.loser)
	return r.Repository.UpdateApprove(ctx, db, id, approvedBy, now)
}

func TestDeclineRequiresSubstantiveReason(t *testing.T) {
	h := newCycleHarness(t)

	_, err := h.svc.Decline(pocCtx(h.node.Generate(), h.node.Generate()), domain.DeclineCycleRequest{
		ID:     h.node.Generate().String(),
		Reason: "   nope    ",
	})
	assert.ErrorIs(t, err, domain.ErrRejectionReasonRequired)
	// Validation runs before any read or permission check.
	assert.Empty(t, h.authz.calls)
}

func TestDeclineMarksCycleRejected(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{Status: domain.CycleStatusPendingApproval})

	updated, err := h.svc.Decline(pocCtx(h.node.Generate(), dept), domain.DeclineCycleRequest{
		ID:     cycle.ID.String(),
		Reason: "Tool has been replaced by an internal build",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusRejected, updated.CycleStatus)
	assert.Equal(t, domain.ApprovalStatusRejected, updated.POCApprovalStatus)
	require.NotNil(t, updated.POCRejectionReason)
	assert.Equal(t, "Tool has been replaced by an internal build", *updated.POCRejectionReason)

	// Terminal: a second decline conflicts.
	_, err = h.svc.Decline(pocCtx(h.node.Generate(), dept), domain.DeclineCycleRequest{
		ID:     cycle.ID.String(),
		Reason: "Tool has been replaced by an internal build",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRecordPaymentPaidAdvancesApprovedCycle(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{
		Status:   domain.CycleStatusPendingPayment,
		Approval: domain.ApprovalStatusApproved,
	})
	finance := h.node.Generate()

	updated, err := h.svc.RecordPayment(financeCtx(finance), domain.RecordPaymentRequest{
		ID:               cycle.ID.String(),
		PaymentStatus:    "PAID",
		AccountingStatus: "DONE",
		PaymentUTR:       "UTR-2025-000123",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusPaymentRecorded, updated.CycleStatus)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, domain.AccountingStatusDone, updated.AccountingStatus)
	require.NotNil(t, updated.PaymentRecordedBy)
	assert.Equal(t, finance, *updated.PaymentRecordedBy)
	require.NotNil(t, updated.PaymentUTR)
	assert.Equal(t, "UTR-2025-000123", *updated.PaymentUTR)

	// The POC is told to upload the invoice.
	require.Len(t, h.notes.pocSends, 1)
	assert.Contains(t, h.notes.pocSends[0], sub.POCEmail)
}

func TestRecordPaymentInProgressKeepsCycleRecordable(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{
		Status:   domain.CycleStatusPendingPayment,
		Approval: domain.ApprovalStatusApproved,
	})

	updated, err := h.svc.RecordPayment(financeCtx(h.node.Generate()), domain.RecordPaymentRequest{
		ID:               cycle.ID.String(),
		PaymentStatus:    "IN_PROGRESS",
		AccountingStatus: "PENDING",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusPendingPayment, updated.CycleStatus)
	assert.Nil(t, updated.PaymentRecordedBy)
	assert.Empty(t, h.notes.pocSends)

	// Re-recording with the final outcome advances it.
	updated, err = h.svc.RecordPayment(financeCtx(h.node.Generate()), domain.RecordPaymentRequest{
		ID:               cycle.ID.String(),
		PaymentStatus:    "PAID",
		AccountingStatus: "DONE",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusPaymentRecorded, updated.CycleStatus)
}

func TestRecordPaymentPaidWithoutApprovalHolds(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{
		Status:   domain.CycleStatusPendingPayment,
		Approval: domain.ApprovalStatusPending,
	})

	updated, err := h.svc.RecordPayment(financeCtx(h.node.Generate()), domain.RecordPaymentRequest{
		ID:               cycle.ID.String(),
		PaymentStatus:    "PAID",
		AccountingStatus: "DONE",
	})
	require.NoError(t, err)

	// Paid but not approved: the payment fields land, the status holds.
	assert.Equal(t, domain.CycleStatusPendingPayment, updated.CycleStatus)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.NotNil(t, updated.PaymentRecordedBy)
}

func TestRecordPaymentValidatesEnums(t *testing.T) {
	h := newCycleHarness(t)

	_, err := h.svc.RecordPayment(financeCtx(h.node.Generate()), domain.RecordPaymentRequest{
		ID:               h.node.Generate().String(),
		PaymentStatus:    "REFUNDED",
		AccountingStatus: "DONE",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)

	_, err = h.svc.RecordPayment(financeCtx(h.node.Generate()), domain.RecordPaymentRequest{
		ID:               h.node.Generate().String(),
		PaymentStatus:    "PAID",
		AccountingStatus: "OPEN",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAccountingStatus)
}

func TestUploadInvoiceCompletesFullChain(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{
		Status:     domain.CycleStatusPaymentRecorded,
		Approval:   domain.ApprovalStatusApproved,
		Payment:    domain.PaymentStatusPaid,
		Accounting: domain.AccountingStatusDone,
	})
	fileID := h.node.Generate()

	updated, err := h.svc.UploadInvoice(pocCtx(h.node.Generate(), dept), domain.UploadInvoiceRequest{
		ID:            cycle.ID.String(),
		InvoiceFileID: fileID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusCompleted, updated.CycleStatus)
	require.NotNil(t, updated.InvoiceFileID)
	assert.Equal(t, fileID, *updated.InvoiceFileID)
	assert.NotNil(t, updated.InvoiceUploadedAt)
}

func TestUploadInvoiceParksWithoutFullChain(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	// Payment recorded but still awaiting the final paid confirmation.
	cycle := h.seedCycle(t, sub, cycleSpec{
		Status:   domain.CycleStatusPaymentRecorded,
		Approval: domain.ApprovalStatusApproved,
		Payment:  domain.PaymentStatusInProgress,
	})

	updated, err := h.svc.UploadInvoice(pocCtx(h.node.Generate(), dept), domain.UploadInvoiceRequest{
		ID:            cycle.ID.String(),
		InvoiceFileID: h.node.Generate().String(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusInvoiceUploaded, updated.CycleStatus)
}

func TestUploadInvoiceTwiceConflicts(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	existing := h.node.Generate()
	cycle := h.seedCycle(t, sub, cycleSpec{
		Status:        domain.CycleStatusPaymentRecorded,
		Approval:      domain.ApprovalStatusApproved,
		Payment:       domain.PaymentStatusPaid,
		InvoiceFileID: &existing,
	})

	_, err := h.svc.UploadInvoice(pocCtx(h.node.Generate(), dept), domain.UploadInvoiceRequest{
		ID:            cycle.ID.String(),
		InvoiceFileID: h.node.Generate().String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvoiceAlreadyUploaded)

	got := h.reload(t, cycle.ID)
	require.NotNil(t, got.InvoiceFileID)
	assert.Equal(t, existing, *got.InvoiceFileID)
}

func TestUploadInvoiceWrongState(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{Status: domain.CycleStatusPendingApproval})

	_, err := h.svc.UploadInvoice(pocCtx(h.node.Generate(), dept), domain.UploadInvoiceRequest{
		ID:            cycle.ID.String(),
		InvoiceFileID: h.node.Generate().String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestGetByIDReturnsAllowedActions(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	cycle := h.seedCycle(t, sub, cycleSpec{Status: domain.CycleStatusPendingApproval})

	view, err := h.svc.GetByID(pocCtx(h.node.Generate(), dept), domain.GetCycleRequest{ID: cycle.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, cycle.ID, view.ID)
	assert.Equal(t, []domain.Action{domain.ActionApprove, domain.ActionDecline}, view.AllowedActions)
}

func TestListBySubscriptionOrdersByCycleNumber(t *testing.T) {
	h := newCycleHarness(t)
	dept := h.node.Generate()
	sub := h.seedSubscription(t, dept)
	h.seedCycle(t, sub, cycleSpec{Number: 2, Status: domain.CycleStatusPendingApproval})
	h.seedCycle(t, sub, cycleSpec{Number: 1, Status: domain.CycleStatusCompleted})
	h.seedCycle(t, sub, cycleSpec{Number: 3, Status: domain.CycleStatusPendingApproval})

	cycles, err := h.svc.ListBySubscription(pocCtx(h.node.Generate(), dept), domain.ListCyclesRequest{
		SubscriptionID: sub.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{cycles[0].CycleNumber, cycles[1].CycleNumber, cycles[2].CycleNumber})
}

func TestListPendingApprovalScopedToDepartment(t *testing.T) {
	h := newCycleHarness(t)
	deptA := h.node.Generate()
	deptB := h.node.Generate()
	subA := h.seedSubscription(t, deptA)
	subB := h.seedSubscription(t, deptB)
	pending := h.seedCycle(t, subA, cycleSpec{Status: domain.CycleStatusPendingApproval})
	h.seedCycle(t, subA, cycleSpec{Number: 2, Status: domain.CycleStatusCompleted})
	h.seedCycle(t, subB, cycleSpec{Status: domain.CycleStatusPendingApproval})

	cycles, err := h.svc.ListPendingApproval(pocCtx(h.node.Generate(), deptA), domain.ListPendingApprovalRequest{
		DepartmentID: deptA.String(),
	})
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, pending.ID, cycles[0].ID)
}
