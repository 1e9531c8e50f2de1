package actorcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ActorContextKey is the request context key for the authenticated actor.
type ActorContextKey struct{}

// Actor describes the authenticated principal acting on a request.
type Actor struct {
	UserID       snowflake.ID
	Role         string
	DepartmentID snowflake.ID
	Email        string
	Name         string
}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ActorFromContext returns the actor from context, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}

	value := ctx.Value(ActorContextKey{})
	if value != nil {
		if typed, ok := value.(Actor); ok {
			return typed, true
		}
	}
	return Actor{}, false
}

// UserIDFromContext returns the acting user ID from context, if set.
func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID != 0 {
		return actor.UserID, true
	}
	if ctx == nil {
		return 0, false
	}

	raw := ctx.Value("user_id")
	if raw == nil {
		return 0, false
	}
	switch typed := raw.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
