// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package metrics defines the Prometheus instrumentation surface: HTTP
// request latency, recommendation query timings and error classes, dataset
// lifecycle gauges, index build timings, and OMDb client health. Collectors
// register themselves at package load via promauto and are exposed on
// /metrics.
package metrics
