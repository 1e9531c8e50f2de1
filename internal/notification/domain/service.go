package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service writes notification rows. Sends are best-effort: callers log
// failures but never roll back the state change that triggered them.
type Service interface {
	Notify(ctx context.Context, userID snowflake.ID, title, message string, subscriptionID *snowflake.ID) error
	NotifyPOC(ctx context.Context, pocEmail, title, message string, subscriptionID *snowflake.ID) error
	// NotifyFinanceTeam writes one row per active FINANCE user and returns
	// how many were written.
	NotifyFinanceTeam(ctx context.Context, title, message string, subscriptionID *snowflake.ID) (int, error)
}

var ErrRecipientNotFound = errors.New("recipient_not_found")
