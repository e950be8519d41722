package observability

import (
	"github.com/smallbiznis/shiplabel/internal/observability/logger"
	"github.com/smallbiznis/shiplabel/internal/observability/metrics"
	"github.com/smallbiznis/shiplabel/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the OTel tracer and meter providers and the
// Prometheus collectors served on /metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.CarrierWithConfig,
	),
	// nothing else depends on the tracer provider; invoking it installs the
	// global propagator and exporter.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
