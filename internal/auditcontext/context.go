package auditcontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	actorKey          contextKey = "audit.actor"
	requestIDKey      contextKey = "audit.request_id"
	ipAddressKey      contextKey = "audit.ip_address"
	userAgentKey      contextKey = "audit.user_agent"
	subscriptionIDKey contextKey = "audit.subscription_id"
	paymentCycleIDKey contextKey = "audit.payment_cycle_id"
)

type actorInfo struct {
	actorType string
	actorID   string
}

// WithActor records the acting principal for audit trail entries.
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

// WithRequestID records the request identifier for audit trail entries.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

// WithIPAddress records the caller IP for audit trail entries.
func WithIPAddress(ctx context.Context, ipAddress string) context.Context {
	ipAddress = strings.TrimSpace(ipAddress)
	if ipAddress == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey, ipAddress)
}

// IPAddressFromContext returns the caller IP, or "" when absent.
func IPAddressFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ipAddressKey)
}

// WithUserAgent records the caller user agent for audit trail entries.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// UserAgentFromContext returns the caller user agent, or "" when absent.
func UserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentKey)
}

// WithSubscriptionID ties audit trail entries to a subscription.
func WithSubscriptionID(ctx context.Context, subscriptionID string) context.Context {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return ctx
	}
	return context.WithValue(ctx, subscriptionIDKey, subscriptionID)
}

// SubscriptionIDFromContext returns the subscription id, or "" when absent.
func SubscriptionIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, subscriptionIDKey)
}

// WithPaymentCycleID ties audit trail entries to a payment cycle.
func WithPaymentCycleID(ctx context.Context, paymentCycleID string) context.Context {
	paymentCycleID = strings.TrimSpace(paymentCycleID)
	if paymentCycleID == "" {
		return ctx
	}
	return context.WithValue(ctx, paymentCycleIDKey, paymentCycleID)
}

// PaymentCycleIDFromContext returns the payment cycle id, or "" when absent.
func PaymentCycleIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, paymentCycleIDKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
