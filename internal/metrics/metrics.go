// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Recommendation Query Metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_query_duration_seconds",
			Help:    "Duration of recommendation queries in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"}, // "similar", "by_genre", "stats", "genres", "lookup"
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_query_errors_total",
			Help: "Total number of failed recommendation queries",
		},
		[]string{"operation", "reason"}, // reason: "not_found", "invalid_argument", "not_loaded", "internal"
	)

	// Dataset Metrics
	DatasetState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_dataset_state",
			Help: "Current dataset lifecycle state (0=unloaded, 1=loading, 2=ready, 3=failed)",
		},
	)

	DatasetMovies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_dataset_movies",
			Help: "Number of movies in the loaded dataset",
		},
	)

	DatasetLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_dataset_load_duration_seconds",
			Help:    "Duration of dataset loads in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_dataset_loads_total",
			Help: "Total number of dataset load attempts",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Index Build Metrics
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "index_build_duration_seconds",
			Help:    "Duration of index builds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	BuildFeatures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "index_build_features",
			Help: "Vocabulary size of the last index build",
		},
	)

	// OMDb Client Metrics
	OMDbRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omdb_requests_total",
			Help: "Total number of OMDb API requests",
		},
		[]string{"result"}, // "success", "error", "rejected"
	)

	OMDbRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omdb_request_duration_seconds",
			Help:    "Duration of OMDb API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OMDbCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omdb_cache_hits_total",
			Help: "Total number of OMDb response cache hits",
		},
	)

	OMDbCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omdb_cache_misses_total",
			Help: "Total number of OMDb response cache misses",
		},
	)

	OMDbBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "omdb_breaker_state",
			Help: "OMDb circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// ObserveHTTPRequest records one finished HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveQuery records one recommendation query.
func ObserveQuery(operation string, duration time.Duration) {
	QueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordQueryError records one failed query with a classified reason.
func RecordQueryError(operation, reason string) {
	QueryErrors.WithLabelValues(operation, reason).Inc()
}

// RecordDatasetLoad records one load attempt and its outcome.
func RecordDatasetLoad(success bool, duration time.Duration) {
	DatasetLoadDuration.Observe(duration.Seconds())
	if success {
		DatasetLoads.WithLabelValues("success").Inc()
	} else {
		DatasetLoads.WithLabelValues("failure").Inc()
	}
}
