// Package metrics provides Prometheus-based implementations of service metrics reporting.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/agentweave/agentweave/internal/core/services"
)

var (
	// Certificate cache metrics
	certCacheHitsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentweave_cert_cache_hits_total",
		Help: "Total number of certificate cache hits",
	})

	certCacheMissesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentweave_cert_cache_misses_total",
		Help: "Total number of certificate cache misses",
	})

	// Trust bundle cache metrics
	bundleCacheHitsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentweave_bundle_cache_hits_total",
		Help: "Total number of trust bundle cache hits",
	})

	bundleCacheMissesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentweave_bundle_cache_misses_total",
		Help: "Total number of trust bundle cache misses",
	})

	// Certificate refresh metrics
	certRefreshCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentweave_cert_refresh_total",
		Help: "Total number of certificate refreshes",
	}, []string{"reason"}) // reason: expired, proactive, cache_miss

	certRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentweave_cert_refresh_duration_seconds",
		Help:    "Duration of certificate refresh operations",
		Buckets: prometheus.DefBuckets,
	})

	// Certificate expiry gauge
	certExpiryTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentweave_cert_expiry_timestamp_seconds",
		Help: "Unix timestamp when the cached certificate will expire",
	}, []string{"service_name"})

	// Certificate validation metrics
	certValidationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentweave_cert_validation_total",
		Help: "Total number of certificate validations",
	}, []string{"result"}) // result: success, failure

	// Retry metrics
	providerRetryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentweave_provider_retry_total",
		Help: "Total number of provider retry attempts",
	}, []string{"provider_type", "attempt"})

	// Authorization decision metrics
	authorizationDecisionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentweave_authorization_decisions_total",
		Help: "Total number of authorization decisions by capability and outcome",
	}, []string{"capability", "allowed"})

	// Circuit breaker state gauge (0=closed, 1=half_open, 2=open)
	circuitStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentweave_circuit_state",
		Help: "Current circuit breaker state per target (0=closed, 1=half_open, 2=open)",
	}, []string{"target"})

	// Connection pool size gauge
	poolSizeGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentweave_connection_pool_size",
		Help: "Current number of pooled connections per target",
	}, []string{"target"})
)

// PrometheusMetrics implements services.MetricsReporter using Prometheus.
type PrometheusMetrics struct{}

// NewPrometheusMetrics creates a new Prometheus metrics reporter.
func NewPrometheusMetrics() services.MetricsReporter {
	return &PrometheusMetrics{}
}

// RecordCacheHit records a cache hit.
func (m *PrometheusMetrics) RecordCacheHit(cacheType string) {
	switch cacheType {
	case "certificate":
		certCacheHitsCounter.Inc()
	case "bundle":
		bundleCacheHitsCounter.Inc()
	}
}

// RecordCacheMiss records a cache miss.
func (m *PrometheusMetrics) RecordCacheMiss(cacheType string) {
	switch cacheType {
	case "certificate":
		certCacheMissesCounter.Inc()
	case "bundle":
		bundleCacheMissesCounter.Inc()
	}
}

// RecordRefresh records a certificate refresh.
func (m *PrometheusMetrics) RecordRefresh(reason string, duration float64) {
	certRefreshCounter.WithLabelValues(reason).Inc()
	certRefreshDuration.Observe(duration)
}

// UpdateCertExpiry updates the certificate expiry timestamp.
func (m *PrometheusMetrics) UpdateCertExpiry(serviceName string, expiryTime float64) {
	certExpiryTimestamp.WithLabelValues(serviceName).Set(expiryTime)
}

// RecordValidation records a certificate validation result.
func (m *PrometheusMetrics) RecordValidation(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	certValidationCounter.WithLabelValues(result).Inc()
}

// RecordRetry records a provider retry attempt.
func (m *PrometheusMetrics) RecordRetry(providerType string, attempt int) {
	providerRetryCounter.WithLabelValues(providerType, strconv.Itoa(attempt)).Inc()
}

// RecordAuthorizationDecision records an allow/deny outcome for a capability call.
func (m *PrometheusMetrics) RecordAuthorizationDecision(capability string, allowed bool) {
	authorizationDecisionCounter.WithLabelValues(capability, strconv.FormatBool(allowed)).Inc()
}

// RecordCircuitState records a circuit breaker's state for a target.
func (m *PrometheusMetrics) RecordCircuitState(target string, state string) {
	var value float64
	switch state {
	case "half_open":
		value = 1
	case "open":
		value = 2
	}
	circuitStateGauge.WithLabelValues(target).Set(value)
}

// RecordPoolSize records the current connection pool size.
func (m *PrometheusMetrics) RecordPoolSize(target string, size int) {
	poolSizeGauge.WithLabelValues(target).Set(float64(size))
}
