package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/shiplabel/internal/apperr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"address":       {},
	"street":        {},
	"postal_code":   {},
	"email":         {},
	"phone":         {},
	"authorization": {},
	"api_key":       {},
}

// SafeAttributes drops attributes that may carry personal data or secrets.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its error code so span events never carry carrier
// payloads or addresses.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(string(apperr.CodeOf(err)))
}

// ExtractContext reads remote span context from carrier into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
