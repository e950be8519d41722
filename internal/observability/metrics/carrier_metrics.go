package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CarrierOperationCreateOrder = "create_order"
	CarrierOperationCancelOrder = "cancel_order"
)

const (
	CarrierReasonDeadlineExceeded = "deadline_exceeded"
	CarrierReasonCanceled         = "canceled"
	CarrierReasonNetwork          = "network"
	CarrierReasonClientError      = "client_error"
	CarrierReasonServerError      = "server_error"
	CarrierReasonUnknown          = "unknown"
)

// CarrierMetrics captures carrier API health signals.
type CarrierMetrics struct {
	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	carrierMetricsOnce sync.Once
	carrierMetrics     *CarrierMetrics
)

// CarrierWithConfig returns the singleton carrier metrics registry using config labels.
func CarrierWithConfig(cfg Config) *CarrierMetrics {
	carrierMetricsOnce.Do(func() {
		carrierMetrics = newCarrierMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return carrierMetrics
}

func newCarrierMetrics(registerer prometheus.Registerer, cfg Config) *CarrierMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "shiplabel"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "shiplabel_carrier_calls_total",
		Help:        "Carrier API calls by operation.",
		ConstLabels: constLabels,
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "shiplabel_carrier_failures_total",
		Help:        "Carrier API failures by operation and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "shiplabel_carrier_retries_total",
		Help:        "Carrier API attempts that were retried.",
		ConstLabels: constLabels,
	}, []string{"operation"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "shiplabel_carrier_call_duration_seconds",
		Help:        "Carrier API call latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"operation"})

	registerer.MustRegister(calls, failures, retries, duration)

	return &CarrierMetrics{
		calls:    calls,
		failures: failures,
		retries:  retries,
		duration: duration,
	}
}

// ObserveCall records a single carrier call and its latency.
func (m *CarrierMetrics) ObserveCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(operation).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.failures.WithLabelValues(operation, ClassifyCarrierReason(err)).Inc()
	}
}

// IncRetry counts an attempt that will be retried.
func (m *CarrierMetrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

type statusCoder interface {
	StatusCode() int
}

// ClassifyCarrierReason maps carrier errors to a fixed set of reasons.
func ClassifyCarrierReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CarrierReasonDeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return CarrierReasonCanceled
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code >= 500:
			return CarrierReasonServerError
		case code >= 400:
			return CarrierReasonClientError
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CarrierReasonDeadlineExceeded
		}
		return CarrierReasonNetwork
	}
	return CarrierReasonUnknown
}
