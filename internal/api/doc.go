// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package api exposes the recommendation engine over HTTP using the Chi
// router with the go-chi middleware ecosystem (CORS, httprate limiting)
// and Prometheus instrumentation.
//
// All endpoints return the models.APIResponse envelope. Query endpoints
// live under /api/v1, health probes under /api/v1/health, and the
// Prometheus scrape endpoint at /metrics.
package api
