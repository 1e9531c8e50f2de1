package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	departmentdomain "github.com/smallbiznis/subtrack/internal/department/domain"
	userdomain "github.com/smallbiznis/subtrack/internal/user/domain"
	"gorm.io/gorm"
)

const (
	defaultFinanceDeptName = "Finance"
	defaultAdminName       = "Subtrack Admin"
	defaultFinanceEmail    = "finance@subtrack.local"
	defaultFinanceName     = "Finance Desk"
)

// EnsureDefaults seeds the rows a fresh install needs before anyone can log
// in: the Finance department, an admin, and one finance user. Every step is
// find-or-create, so re-running on startup is safe.
func EnsureDefaults(db *gorm.DB, adminEmail string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	adminEmail = strings.ToLower(strings.TrimSpace(adminEmail))
	if adminEmail == "" {
		return errors.New("seed admin email is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		finance, err := ensureDepartmentTx(ctx, tx, node, defaultFinanceDeptName)
		if err != nil {
			return err
		}

		if _, err := ensureUserTx(ctx, tx, node, adminEmail, defaultAdminName, userdomain.RoleAdmin, nil); err != nil {
			return err
		}

		_, err = ensureUserTx(ctx, tx, node, defaultFinanceEmail, defaultFinanceName, userdomain.RoleFinance, &finance.ID)
		return err
	})
}

func ensureDepartmentTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, name string) (departmentdomain.Department, error) {
	code := slug.Make(name)

	var dept departmentdomain.Department
	err := tx.WithContext(ctx).Where("code = ?", code).First(&dept).Error
	if err == nil {
		return dept, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dept, err
	}

	now := time.Now().UTC()
	dept = departmentdomain.Department{
		ID:        node.Generate(),
		Code:      code,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&dept).Error; err != nil {
		return dept, err
	}
	return dept, nil
}

func ensureUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email, name string, role userdomain.Role, departmentID *snowflake.ID) (userdomain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user userdomain.User
	err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}

	now := time.Now().UTC()
	user = userdomain.User{
		ID:           node.Generate(),
		Email:        email,
		Name:         name,
		Role:         role,
		DepartmentID: departmentID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}
