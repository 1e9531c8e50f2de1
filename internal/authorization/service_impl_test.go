package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestAuthorizePOCInOwnDepartment(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 10, "poc@acme.test", "POC", 1, true)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "user:10", "1", ObjectPaymentCycle, ActionCycleApprove)
	require.NoError(t, err)
}

func TestAuthorizePOCAcrossDepartmentsDenied(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 11, "poc@acme.test", "POC", 1, true)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "user:11", "2", ObjectPaymentCycle, ActionCycleApprove)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeFinanceOrgWide(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 20, "finance@acme.test", "FINANCE", 1, true)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "user:20", "2", ObjectPaymentCycle, ActionCycleRecordPayment)
	require.NoError(t, err)
}

func TestAuthorizeFinanceCannotApprove(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 21, "finance@acme.test", "FINANCE", 1, true)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "user:21", "1", ObjectPaymentCycle, ActionCycleApprove)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeAdminCannotApprove(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 30, "admin@acme.test", "ADMIN", 0, true)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "user:30", "1", ObjectPaymentCycle, ActionCycleApprove)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeAdminTriggersJobs(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 31, "admin@acme.test", "ADMIN", 0, true)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "user:31", "1", ObjectJob, ActionJobTrigger)
	require.NoError(t, err)
}

func TestAuthorizeHODViewOnly(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 40, "hod@acme.test", "HOD", 1, true)
	svc := newTestService(t, db)

	require.NoError(t, svc.Authorize(context.Background(), "user:40", "1", ObjectSubscription, ActionSubscriptionView))
	require.ErrorIs(t,
		svc.Authorize(context.Background(), "user:40", "1", ObjectPaymentCycle, ActionCycleUploadInvoice),
		ErrForbidden,
	)
}

func TestAuthorizeSystemActor(t *testing.T) {
	db := setupAuthzTestDB(t)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "system", "3", ObjectJob, ActionJobTrigger)
	require.NoError(t, err)
}

func TestAuthorizeInactiveUserDenied(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 50, "gone@acme.test", "POC", 1, false)
	svc := newTestService(t, db)

	err := svc.Authorize(context.Background(), "user:50", "1", ObjectPaymentCycle, ActionCycleApprove)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeRoleChangeReplacesGrouping(t *testing.T) {
	db := setupAuthzTestDB(t)
	insertUser(t, db, 60, "mover@acme.test", "POC", 1, true)
	svc := newTestService(t, db)

	ctx := context.Background()
	require.NoError(t, svc.Authorize(ctx, "user:60", "1", ObjectPaymentCycle, ActionCycleApprove))

	// Role changes to HOD; the old POC grouping must not keep granting.
	require.NoError(t, db.Exec(`UPDATE users SET role = 'HOD' WHERE id = 60`).Error)
	require.ErrorIs(t, svc.Authorize(ctx, "user:60", "1", ObjectPaymentCycle, ActionCycleApprove), ErrForbidden)
}

func TestAuthorizeMalformedActor(t *testing.T) {
	db := setupAuthzTestDB(t)
	svc := newTestService(t, db)

	require.ErrorIs(t,
		svc.Authorize(context.Background(), "robot:1", "1", ObjectJob, ActionJobTrigger),
		ErrInvalidActor,
	)
	require.ErrorIs(t,
		svc.Authorize(context.Background(), "user:1", "", ObjectJob, ActionJobTrigger),
		ErrInvalidDepartment,
	)
}

func newTestService(t *testing.T, db *gorm.DB) *ServiceImpl {
	t.Helper()
	enforcer, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	return &ServiceImpl{
		db:       db,
		log:      zap.NewNop(),
		enforcer: enforcer,
	}
}

func setupAuthzTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			department_id BIGINT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	).Error; err != nil {
		t.Fatalf("create users: %v", err)
	}
	if err := db.Exec(`DELETE FROM users`).Error; err != nil {
		t.Fatalf("reset users: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS casbin_rule (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ptype VARCHAR(100) NOT NULL,
			v0 VARCHAR(100),
			v1 VARCHAR(100),
			v2 VARCHAR(100),
			v3 VARCHAR(100),
			v4 VARCHAR(100),
			v5 VARCHAR(100)
		)`,
	).Error; err != nil {
		t.Fatalf("create casbin_rule: %v", err)
	}
	if err := db.Exec(`DELETE FROM casbin_rule`).Error; err != nil {
		t.Fatalf("reset casbin_rule: %v", err)
	}
	return db
}

func insertUser(t *testing.T, db *gorm.DB, id int64, email, role string, departmentID int64, active bool) {
	t.Helper()
	var dept interface{}
	if departmentID != 0 {
		dept = departmentID
	}
	if err := db.Exec(
		`INSERT INTO users (id, email, name, role, department_id, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		email,
		email,
		role,
		dept,
		active,
	).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
}
