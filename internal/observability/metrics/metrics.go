package metrics

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus instruments for the license control plane.
type Metrics struct {
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	activationAttempts *prometheus.CounterVec
	validationResults  *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	auditWriteFailures prometheus.Counter
}

// New registers and returns the application metrics.
func New() *Metrics {
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyline_http_requests_total",
		Help: "Counts HTTP requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyline_http_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	activationAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyline_activation_attempts_total",
		Help: "License activation attempts by outcome.",
	}, []string{"outcome"})

	validationResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyline_validation_results_total",
		Help: "License validation results by outcome.",
	}, []string{"outcome"})

	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyline_webhook_events_total",
		Help: "Billing webhook events by provider and type.",
	}, []string{"provider", "event_type"})

	auditWriteFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keyline_audit_write_failures_total",
		Help: "Validation log writes that failed and were dropped.",
	})

	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		activationAttempts,
		validationResults,
		webhookEvents,
		auditWriteFailures,
	)

	return &Metrics{
		httpRequests:       httpRequests,
		httpDuration:       httpDuration,
		activationAttempts: activationAttempts,
		validationResults:  validationResults,
		webhookEvents:      webhookEvents,
		auditWriteFailures: auditWriteFailures,
	}
}

// RecordActivationAttempt increments activation counts by outcome.
func (m *Metrics) RecordActivationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.activationAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// RecordValidationResult increments validation counts by outcome.
func (m *Metrics) RecordValidationResult(outcome string) {
	if m == nil {
		return
	}
	m.validationResults.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// RecordWebhookEvent increments webhook event counts.
func (m *Metrics) RecordWebhookEvent(provider, eventType string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(provider), normalizeLabel(eventType)).Inc()
}

// RecordAuditWriteFailure counts a dropped validation log write.
func (m *Metrics) RecordAuditWriteFailure() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		status := strings.TrimSpace(statusLabel(c.Writer.Status()))
		m.httpRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
