package authorization

import "context"

// Service answers whether an actor may perform an action on an object within
// a department domain. Actors are "user:<id>", "service_token:<id>" or
// "system"; department scoping is bypassed for roles granted the "*" domain.
type Service interface {
	Authorize(ctx context.Context, actor string, departmentID string, object string, action string) error
}
