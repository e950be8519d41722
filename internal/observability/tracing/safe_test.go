package tracing

import (
	"errors"
	"testing"

	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api"),
		attribute.String("street", "Main St 1"),
		attribute.String("email", "a@b.c"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsOnlyCode(t *testing.T) {
	err := apperr.Wrap(apperr.CodeExternalServiceError, errors.New("carrier said: Main St 1 invalid"), "carrier failed")
	assert.EqualError(t, SafeError(err), "EXTERNAL_SERVICE_ERROR")
	assert.EqualError(t, SafeError(errors.New("raw")), "INTERNAL_SERVER_ERROR")
	assert.NoError(t, SafeError(nil))
}
