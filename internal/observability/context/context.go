package context

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey    contextKey = "observability.request_id"
	departmentIDKey contextKey = "observability.department_id"
	actorKey        contextKey = "observability.actor"
)

type actorInfo struct {
	actorType string
	actorID   string
}

// WithRequestID attaches the request identifier to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// WithDepartmentID attaches the department identifier to the context.
func WithDepartmentID(ctx context.Context, departmentID string) context.Context {
	departmentID = strings.TrimSpace(departmentID)
	if departmentID == "" {
		return ctx
	}
	return context.WithValue(ctx, departmentIDKey, departmentID)
}

// DepartmentIDFromContext returns the department identifier, or "" when absent.
func DepartmentIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(departmentIDKey).(string); ok {
		return value
	}
	return ""
}

// WithActor attaches the acting principal to the context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	actorType = strings.TrimSpace(actorType)
	actorID = strings.TrimSpace(actorID)
	if actorType == "" && actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actorInfo{actorType: actorType, actorID: actorID})
}

// ActorFromContext returns the acting principal, or empty strings when absent.
func ActorFromContext(ctx context.Context) (actorType, actorID string) {
	if ctx == nil {
		return "", ""
	}
	if value, ok := ctx.Value(actorKey).(actorInfo); ok {
		return value.actorType, value.actorID
	}
	return "", ""
}
