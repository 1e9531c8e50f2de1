package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectSubscription = "subscription"
	ObjectPaymentCycle = "payment_cycle"
	ObjectJob          = "job"
	ObjectServiceToken = "service_token"
)

const (
	ActionSubscriptionView     = "subscription.view"
	ActionSubscriptionActivate = "subscription.activate"
	ActionSubscriptionReject   = "subscription.reject"
	ActionSubscriptionCancel   = "subscription.cancel"

	ActionCycleView          = "payment_cycle.view"
	ActionCycleApprove       = "payment_cycle.approve"
	ActionCycleDecline       = "payment_cycle.decline"
	ActionCycleRecordPayment = "payment_cycle.record_payment"
	ActionCycleUploadInvoice = "payment_cycle.upload_invoice"

	ActionJobTrigger = "job.trigger"

	ActionTokenManage = "service_token.manage"
)

// wildcardDomain grants a role in every department. ADMIN and FINANCE are
// org-wide; POC and HOD are scoped to their own department.
const wildcardDomain = "*"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, departmentID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	departmentID = strings.TrimSpace(departmentID)
	if departmentID == "" {
		return ErrInvalidDepartment
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, groupingDomain, actorType, actorID, err := s.resolveActor(ctx, actor)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, departmentID, object, action)
		return err
	}

	if err := s.ensureGrouping(subject, roleName, groupingDomain); err != nil {
		return err
	}

	domain := fmt.Sprintf("dept:%s", departmentID)
	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, departmentID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, departmentID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (string, string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", wildcardDomain, "system", nil, nil
	}
	if strings.HasPrefix(actor, "service_token:") {
		// Service tokens carry the system role; their reach is bounded by
		// the token scopes checked at the transport layer.
		tokenIDRaw := strings.TrimPrefix(actor, "service_token:")
		tokenID, err := snowflake.ParseString(tokenIDRaw)
		if err != nil || tokenID == 0 {
			return "", "", "", "", nil, ErrInvalidActor
		}
		tokenIDStr := tokenID.String()
		return actor, "role:system", wildcardDomain, "service_token", &tokenIDStr, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		role, homeDept, err := s.roleForUser(ctx, userID)
		if err != nil {
			return actor, "", "", "user", &userIDStr, err
		}
		roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
		groupingDomain := wildcardDomain
		if !orgWideRole(role) {
			if homeDept == nil || *homeDept == 0 {
				return actor, "", "", "user", &userIDStr, ErrForbidden
			}
			groupingDomain = fmt.Sprintf("dept:%s", homeDept.String())
		}
		return actor, roleName, groupingDomain, "user", &userIDStr, nil
	}
	return "", "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, userID snowflake.ID) (string, *snowflake.ID, error) {
	var row struct {
		Role         string        `gorm:"column:role"`
		DepartmentID *snowflake.ID `gorm:"column:department_id"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role, department_id
		 FROM users
		 WHERE id = ? AND is_active = TRUE
		 LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return "", nil, err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", nil, ErrForbidden
	}
	return role, row.DepartmentID, nil
}

func orgWideRole(role string) bool {
	switch strings.ToUpper(role) {
	case "ADMIN", "FINANCE":
		return true
	default:
		return false
	}
}

// ensureGrouping keeps exactly one grouping per subject. Role or department
// changes in the users table replace any stale grouping on the next check.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 3 {
			continue
		}
		if rule[1] != roleName || rule[2] != domain {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, departmentID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":        object,
		"action":        action,
		"actor":         actorType,
		"department_id": departmentID,
		"subject":       actorSubject(actorType, actorID),
	})
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, departmentID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, actorType, actorID, "authorization.granted", "authorization", &targetID, map[string]any{
		"object":        object,
		"action":        action,
		"actor":         actorType,
		"department_id": departmentID,
		"subject":       actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	case "service_token":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("service_token:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionCycleRecordPayment, ActionJobTrigger:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// POC: department approver for subscriptions and cycles
		{"role:poc", ObjectSubscription, ActionSubscriptionView},
		{"role:poc", ObjectSubscription, ActionSubscriptionActivate},
		{"role:poc", ObjectSubscription, ActionSubscriptionReject},
		{"role:poc", ObjectPaymentCycle, ActionCycleView},
		{"role:poc", ObjectPaymentCycle, ActionCycleApprove},
		{"role:poc", ObjectPaymentCycle, ActionCycleDecline},
		{"role:poc", ObjectPaymentCycle, ActionCycleUploadInvoice},

		// HOD: read-only over departmental subscriptions
		{"role:hod", ObjectSubscription, ActionSubscriptionView},
		{"role:hod", ObjectPaymentCycle, ActionCycleView},

		// Finance: payment recording, org-wide
		{"role:finance", ObjectSubscription, ActionSubscriptionView},
		{"role:finance", ObjectPaymentCycle, ActionCycleView},
		{"role:finance", ObjectPaymentCycle, ActionCycleRecordPayment},

		// Admin
		{"role:admin", ObjectSubscription, ActionSubscriptionView},
		{"role:admin", ObjectSubscription, ActionSubscriptionActivate},
		{"role:admin", ObjectSubscription, ActionSubscriptionReject},
		{"role:admin", ObjectSubscription, ActionSubscriptionCancel},
		{"role:admin", ObjectPaymentCycle, ActionCycleView},
		{"role:admin", ObjectPaymentCycle, ActionCycleRecordPayment},
		{"role:admin", ObjectJob, ActionJobTrigger},
		{"role:admin", ObjectServiceToken, ActionTokenManage},

		// System: scheduler internals and service tokens
		{"role:system", ObjectSubscription, ActionSubscriptionView},
		{"role:system", ObjectPaymentCycle, ActionCycleView},
		{"role:system", ObjectJob, ActionJobTrigger},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
