// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the gateway.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the chat
// gateway. Metrics include:
//   - Request counters (by endpoint and status)
//   - Security event counters (by kind)
//   - Rate limit rejection counters
//   - Run duration histograms
//   - Active run gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all gateway metrics
const metricsNamespace = "chatgate"

// Subsystem for chat pipeline metrics
const gatewaySubsystem = "gateway"

// GatewayMetrics holds all Prometheus metrics for the chat gateway.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring request volume,
// security screening activity, and upstream run latency. Initialize once at
// startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe. All helper methods are nil-receiver safe
// so callers never need to guard against an uninitialized instance.
type GatewayMetrics struct {
	// RequestsTotal counts gateway requests by endpoint and status.
	// Labels: endpoint (start, chat, health), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// SecurityEventsTotal counts recorded security events.
	// Labels: kind (INPUT_REJECTED, RATE_LIMIT_EXCEEDED, RESPONSE_INJECTION_DETECTED)
	SecurityEventsTotal *prometheus.CounterVec

	// RateLimitRejectionsTotal counts requests refused by the rate limiter.
	// Labels: window (minute, hour)
	RateLimitRejectionsTotal *prometheus.CounterVec

	// RunDurationSeconds measures end-to-end assistant run duration.
	// Labels: status (completed, failed, timed_out, interrupted)
	RunDurationSeconds *prometheus.HistogramVec

	// ActiveRuns tracks assistant runs currently being polled.
	ActiveRuns prometheus.Gauge
}

// DefaultMetrics is the singleton instance of GatewayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GatewayMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Call once at application
// startup; calling twice panics on duplicate registration.
//
// # Outputs
//
//   - *GatewayMetrics: The initialized metrics instance.
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "requests_total",
				Help:      "Total number of gateway requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		SecurityEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "security_events_total",
				Help:      "Total security events recorded by kind",
			},
			[]string{"kind"},
		),

		RateLimitRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "rate_limit_rejections_total",
				Help:      "Total requests refused by the rate limiter by window",
			},
			[]string{"window"},
		),

		RunDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "run_duration_seconds",
				Help:      "End-to-end assistant run duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_runs",
				Help:      "Number of assistant runs currently being polled",
			},
		),
	}

	return DefaultMetrics
}

// RecordRequest increments the request counter for an endpoint.
func (m *GatewayMetrics) RecordRequest(endpoint, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordSecurityEvent increments the security event counter for a kind.
func (m *GatewayMetrics) RecordSecurityEvent(kind string) {
	if m == nil {
		return
	}
	m.SecurityEventsTotal.WithLabelValues(kind).Inc()
}

// RecordRateLimitRejection increments the rejection counter for a window.
func (m *GatewayMetrics) RecordRateLimitRejection(window string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(window).Inc()
}

// ObserveRunDuration records a completed run's duration.
func (m *GatewayMetrics) ObserveRunDuration(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunDurationSeconds.WithLabelValues(status).Observe(d.Seconds())
}

// RunStarted increments the active run gauge.
func (m *GatewayMetrics) RunStarted() {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
}

// RunFinished decrements the active run gauge.
func (m *GatewayMetrics) RunFinished() {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
}
