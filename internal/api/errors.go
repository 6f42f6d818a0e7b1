// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package api

import (
	"errors"
	"net/http"

	"github.com/reelmatch/reelmatch/internal/metrics"
	"github.com/reelmatch/reelmatch/internal/recommend"
)

// respondDomainError maps engine errors to HTTP status codes and stable
// error codes, and records the failure against the given operation.
func respondDomainError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidArgument):
		metrics.RecordQueryError(operation, "invalid_argument")
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, recommend.ErrNotFound):
		metrics.RecordQueryError(operation, "not_found")
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, recommend.ErrNotLoaded), errors.Is(err, recommend.ErrEmptyDataset):
		metrics.RecordQueryError(operation, "not_loaded")
		respondError(w, http.StatusServiceUnavailable, "DATASET_NOT_READY", "dataset is not available", err)
	default:
		metrics.RecordQueryError(operation, "internal")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
	}
}
