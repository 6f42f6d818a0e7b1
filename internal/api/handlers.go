// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/metadata"
	"github.com/reelmatch/reelmatch/internal/metrics"
	"github.com/reelmatch/reelmatch/internal/models"
	"github.com/reelmatch/reelmatch/internal/recommend"
)

// Handler holds service dependencies for HTTP request processing.
type Handler struct {
	engine    *recommend.Engine
	enricher  *metadata.Client // nil when OMDb enrichment is disabled
	cfg       *config.Config
	log       zerolog.Logger
	startTime time.Time
}

// NewHandler creates an API handler. enricher may be nil.
func NewHandler(engine *recommend.Engine, enricher *metadata.Client, cfg *config.Config) *Handler {
	return &Handler{
		engine:    engine,
		enricher:  enricher,
		cfg:       cfg,
		log:       logging.WithComponent("api"),
		startTime: time.Now(),
	}
}

// enrichedRecommendation optionally attaches external metadata to a
// recommendation when the client asks for it and enrichment is enabled.
type enrichedRecommendation struct {
	recommend.Recommendation
	Details *metadata.MovieDetails `json:"details,omitempty"`
}

// Similar handles GET /api/v1/recommendations/similar?title=...&k=...&min_score=...
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "title query parameter is required", nil)
		return
	}

	k := getIntParam(r, "k", h.cfg.Engine.DefaultK)
	minScore := getFloatParam(r, "min_score", -1)

	start := time.Now()
	recs, err := h.engine.Similar(r.Context(), title, k, minScore)
	if err != nil {
		respondDomainError(w, "similar", err)
		return
	}
	elapsed := time.Since(start)
	metrics.ObserveQuery("similar", elapsed)

	if h.enricher != nil && r.URL.Query().Get("enrich") == "true" {
		respondSuccess(w, h.enrich(r, recs), time.Since(start))
		return
	}

	respondSuccess(w, recs, elapsed)
}

// enrich attaches OMDb details per recommendation. Lookup failures
// degrade to unenriched entries rather than failing the response.
func (h *Handler) enrich(r *http.Request, recs []recommend.Recommendation) []enrichedRecommendation {
	out := make([]enrichedRecommendation, 0, len(recs))
	for _, rec := range recs {
		entry := enrichedRecommendation{Recommendation: rec}
		details, err := h.enricher.Lookup(r.Context(), rec.Movie.Title)
		if err != nil {
			if !errors.Is(err, metadata.ErrNoMetadata) {
				h.log.Warn().Err(err).Str("title", sanitizeLogValue(rec.Movie.Title)).Msg("Metadata enrichment failed")
			}
		} else {
			entry.Details = details
		}
		out = append(out, entry)
	}
	return out
}

// ByGenre handles GET /api/v1/recommendations/genre/{genre}?k=...
func (h *Handler) ByGenre(w http.ResponseWriter, r *http.Request) {
	genre := chi.URLParam(r, "genre")
	if strings.TrimSpace(genre) == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "genre path parameter is required", nil)
		return
	}

	k := getIntParam(r, "k", h.cfg.Engine.DefaultK)

	start := time.Now()
	movies, err := h.engine.ByGenre(r.Context(), genre, k)
	if err != nil {
		respondDomainError(w, "by_genre", err)
		return
	}
	elapsed := time.Since(start)
	metrics.ObserveQuery("by_genre", elapsed)

	respondSuccess(w, movies, elapsed)
}

// Genres handles GET /api/v1/genres
func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	genres, err := h.engine.Genres(r.Context())
	if err != nil {
		respondDomainError(w, "genres", err)
		return
	}
	elapsed := time.Since(start)
	metrics.ObserveQuery("genres", elapsed)

	respondSuccess(w, genres, elapsed)
}

// Lookup handles GET /api/v1/movies/lookup?title=...
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "title query parameter is required", nil)
		return
	}

	start := time.Now()
	movie, err := h.engine.Lookup(r.Context(), title)
	if err != nil {
		respondDomainError(w, "lookup", err)
		return
	}
	elapsed := time.Since(start)
	metrics.ObserveQuery("lookup", elapsed)

	respondSuccess(w, movie, elapsed)
}

// Stats handles GET /api/v1/recommendations/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		respondDomainError(w, "stats", err)
		return
	}
	elapsed := time.Since(start)
	metrics.ObserveQuery("stats", elapsed)

	respondSuccess(w, stats, elapsed)
}

// Reload handles POST /api/v1/admin/reload. It re-reads the dataset from
// the underlying loader and swaps it in atomically.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.engine.Reload(r.Context()); err != nil {
		respondDomainError(w, "reload", err)
		return
	}

	h.log.Info().Dur("duration", time.Since(start)).Msg("Dataset reloaded")

	respondSuccess(w, map[string]interface{}{
		"reloaded": true,
		"state":    h.engine.State().String(),
	}, time.Since(start))
}

// HealthLive handles liveness probe requests. Returns 200 OK if the
// process is alive, regardless of dataset state.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles readiness probe requests. Returns 200 OK only when
// the recommendation dataset is loaded and queryable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.engine.Ready()

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"dataset_state":  h.engine.State().String(),
			"ready_to_serve": ready,
			"uptime":         time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
