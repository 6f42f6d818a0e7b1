// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package middleware provides plain http.HandlerFunc middleware shared
// across routers.
package middleware

import (
	"net/http"
	"time"

	"github.com/reelmatch/reelmatch/internal/metrics"
)

// PrometheusMetrics records request duration and in-flight gauge for
// every handled request. The route label uses the raw URL path; mount
// this inside parameterized route groups sparingly to keep label
// cardinality bounded.
func PrometheusMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()

		wrapper := &metricsResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(wrapper, r)

		metrics.ObserveHTTPRequest(
			r.Method,
			r.URL.Path,
			wrapper.statusCode,
			time.Since(start),
		)
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
