// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package metrics provides Prometheus instrumentation for the streaming
// core: session lifecycle, heartbeat processing, buffer strategy decisions,
// manifest cache efficiency, and the resilience fabric (breaker states,
// retries, storage and CDN failovers).
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streaming_sessions_active",
			Help: "Current number of active streaming sessions",
		},
	)

	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streaming_sessions_started_total",
			Help: "Total number of streaming sessions started",
		},
		[]string{"stream_type", "tier"},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streaming_sessions_ended_total",
			Help: "Total number of streaming sessions ended",
		},
		[]string{"reason"}, // "client", "expired"
	)

	SessionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streaming_sessions_rejected_total",
			Help: "Total number of session starts rejected",
		},
		[]string{"reason"}, // "concurrent_limit", "invalid_request", "not_found"
	)

	HeartbeatDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streaming_heartbeat_duration_seconds",
			Help:    "Heartbeat processing duration in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	HeartbeatsStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streaming_heartbeats_stale_total",
			Help: "Total number of heartbeats whose counters did not advance (replays or reordering)",
		},
	)

	JanitorExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streaming_janitor_expired_total",
			Help: "Total number of sessions expired by the janitor",
		},
	)

	JanitorScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streaming_janitor_scan_duration_seconds",
			Help:    "Janitor expiry scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Buffer Strategy Metrics
	BufferConfigsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffer_configs_computed_total",
			Help: "Total number of buffer configurations computed",
		},
		[]string{"device_type"},
	)

	BufferHealthEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffer_health_evaluations_total",
			Help: "Total number of buffer health evaluations by resulting status",
		},
		[]string{"status"}, // "HEALTHY", "WARNING", "CRITICAL", "POOR"
	)

	PreloadHintsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffer_preload_hints_served_total",
			Help: "Total number of predictive preload hints served",
		},
		[]string{"reason"}, // "playlist", "history", "none"
	)

	// HLS Manifest Metrics
	ManifestGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hls_manifest_generations_total",
			Help: "Total number of HLS manifests generated",
		},
		[]string{"kind"}, // "master", "media"
	)

	ManifestCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hls_manifest_cache_hits_total",
			Help: "Total number of manifest cache hits",
		},
	)

	ManifestCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hls_manifest_cache_misses_total",
			Help: "Total number of manifest cache misses",
		},
	)

	// Resilience Metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry re-invocations",
		},
		[]string{"operation"},
	)

	StorageFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_failovers_total",
			Help: "Total number of requests served by the fallback object store",
		},
	)

	CDNDomainsAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cdn_domains_available",
			Help: "Current number of CDN domains with a non-open breaker",
		},
	)

	CDNOriginFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cdn_origin_fallbacks_total",
			Help: "Total number of URL resolutions that fell back to the origin store",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one API request with its latency.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordBreakerTransition updates the per-breaker state gauge and
// transition counter. stateValue follows the gauge encoding.
func RecordBreakerTransition(breaker, from, to string, stateValue float64) {
	BreakerTransitions.WithLabelValues(breaker, from, to).Inc()
	BreakerState.WithLabelValues(breaker).Set(stateValue)
}
