package context

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey     ctxKey = "request_id"
	actorIDKey       ctxKey = "actor_id"
	transactionIDKey ctxKey = "transaction_id"
)

// WithRequestID stores the request identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier, or "".
func RequestIDFromContext(ctx context.Context) string {
	return valueFrom(ctx, requestIDKey)
}

// WithActorID stores the authenticated caller on the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return withValue(ctx, actorIDKey, actorID)
}

// ActorIDFromContext returns the authenticated caller, or "".
func ActorIDFromContext(ctx context.Context) string {
	return valueFrom(ctx, actorIDKey)
}

// WithTransactionID stores the transaction being operated on.
func WithTransactionID(ctx context.Context, transactionID string) context.Context {
	return withValue(ctx, transactionIDKey, transactionID)
}

// TransactionIDFromContext returns the transaction being operated on, or "".
func TransactionIDFromContext(ctx context.Context) string {
	return valueFrom(ctx, transactionIDKey)
}

func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
