// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/models"
	"github.com/reelmatch/reelmatch/internal/recommend"
)

func testDataset() *recommend.Dataset {
	movies := []recommend.Movie{
		{ID: 1, Title: "Alpha", Genres: []string{"Action"}, GenreKeys: []string{"action"}, Popularity: 10},
		{ID: 2, Title: "Beta", Genres: []string{"Action", "Drama"}, GenreKeys: []string{"action", "drama"}, Popularity: 20},
		{ID: 3, Title: "Gamma", Genres: []string{"Drama"}, GenreKeys: []string{"drama"}, Popularity: 5},
	}
	m := recommend.NewMatrix(3)
	rows := [][]float64{
		{1, 0.8, 0.3},
		{0.8, 1, 0.5},
		{0.3, 0.5, 1},
	}
	for i := range rows {
		for j, v := range rows[i] {
			m.Set(i, j, v)
		}
	}
	titles := recommend.TitleIndex{}
	for i, mv := range movies {
		titles[recommend.NormalizeTitle(mv.Title)] = i
	}
	return &recommend.Dataset{Movies: movies, Matrix: m, Titles: titles}
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{DefaultK: 10, MaxK: 50, MinScore: 0.1},
		API: config.APIConfig{
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
	}
}

func newTestServer(t *testing.T, loader recommend.DatasetLoader) *httptest.Server {
	t.Helper()
	cfg := testConfig()
	engine := recommend.NewEngine(loader, recommend.Options{
		MaxK:     cfg.Engine.MaxK,
		MinScore: cfg.Engine.MinScore,
	})
	handler := NewHandler(engine, nil, cfg)
	srv := httptest.NewServer(NewRouter(handler, cfg.API).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func staticLoader(ds *recommend.Dataset) recommend.DatasetLoader {
	return recommend.LoaderFunc(func(ctx context.Context) (*recommend.Dataset, error) {
		return ds, nil
	})
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var env models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestSimilarEndpoint(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/api/v1/recommendations/similar?title=Alpha&k=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("missing X-Request-ID header")
	}

	env := decodeEnvelope(t, resp)
	if env.Status != "success" {
		t.Errorf("envelope status = %q", env.Status)
	}

	raw, _ := json.Marshal(env.Data)
	var recs []recommend.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		t.Fatalf("decode recommendations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}
	if recs[0].Movie.Title != "Beta" {
		t.Errorf("top recommendation = %q, want Beta", recs[0].Movie.Title)
	}
	if recs[0].Score < recs[1].Score {
		t.Error("recommendations not sorted by score")
	}
}

func TestSimilarValidation(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"missing title", "/api/v1/recommendations/similar", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank title", "/api/v1/recommendations/similar?title=%20%20", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown title", "/api/v1/recommendations/similar?title=Nope", http.StatusNotFound, "NOT_FOUND"},
		{"zero k", "/api/v1/recommendations/similar?title=Alpha&k=0", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			env := decodeEnvelope(t, resp)
			if env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantErr)
			}
		})
	}
}

func TestSimilarClampsOversizedK(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	// k beyond the configured maximum is clamped, never rejected.
	resp, err := http.Get(srv.URL + "/api/v1/recommendations/similar?title=Alpha&k=5000&min_score=0")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Status != "success" {
		t.Errorf("envelope status = %q", env.Status)
	}

	raw, _ := json.Marshal(env.Data)
	var recs []recommend.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		t.Fatalf("decode recommendations: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d recommendations, want the full 2-movie remainder", len(recs))
	}
}

func TestByGenreEndpoint(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/api/v1/recommendations/genre/ACTION")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	raw, _ := json.Marshal(env.Data)
	var movies []recommend.Movie
	if err := json.Unmarshal(raw, &movies); err != nil {
		t.Fatalf("decode movies: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("got %d movies, want 2", len(movies))
	}
	if movies[0].ID != 2 {
		t.Errorf("top movie ID = %d, want 2 (highest popularity)", movies[0].ID)
	}
}

func TestByGenreUnknown(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/api/v1/recommendations/genre/western")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestGenresEndpoint(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/api/v1/genres")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	env := decodeEnvelope(t, resp)

	raw, _ := json.Marshal(env.Data)
	var genres []string
	if err := json.Unmarshal(raw, &genres); err != nil {
		t.Fatalf("decode genres: %v", err)
	}
	want := []string{"action", "drama"}
	if len(genres) != len(want) {
		t.Fatalf("genres = %v, want %v", genres, want)
	}
	for i := range want {
		if genres[i] != want[i] {
			t.Errorf("genres[%d] = %q, want %q", i, genres[i], want[i])
		}
	}
}

func TestLookupEndpoint(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/api/v1/movies/lookup?title=gamma")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	env := decodeEnvelope(t, resp)

	raw, _ := json.Marshal(env.Data)
	var movie recommend.Movie
	if err := json.Unmarshal(raw, &movie); err != nil {
		t.Fatalf("decode movie: %v", err)
	}
	if movie.ID != 3 {
		t.Errorf("movie ID = %d, want 3", movie.ID)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/api/v1/recommendations/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	env := decodeEnvelope(t, resp)

	raw, _ := json.Marshal(env.Data)
	var stats recommend.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalMovies != 3 {
		t.Errorf("TotalMovies = %d, want 3", stats.TotalMovies)
	}
	if stats.TotalGenres != 2 {
		t.Errorf("TotalGenres = %d, want 2", stats.TotalGenres)
	}
}

func TestReloadEndpoint(t *testing.T) {
	calls := 0
	loader := recommend.LoaderFunc(func(ctx context.Context) (*recommend.Dataset, error) {
		calls++
		return testDataset(), nil
	})
	srv := newTestServer(t, loader)

	resp, err := http.Post(srv.URL+"/api/v1/admin/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Status != "success" {
		t.Errorf("envelope status = %q", env.Status)
	}
	if calls != 1 {
		t.Errorf("loader calls = %d, want 1", calls)
	}
}

func TestLoaderFailureMapsToServiceUnavailable(t *testing.T) {
	loader := recommend.LoaderFunc(func(ctx context.Context) (*recommend.Dataset, error) {
		return nil, errors.New("disk on fire")
	})
	srv := newTestServer(t, loader)

	resp, err := http.Get(srv.URL + "/api/v1/recommendations/similar?title=Alpha")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Error == nil || env.Error.Code != "DATASET_NOT_READY" {
		t.Errorf("error = %+v, want DATASET_NOT_READY", env.Error)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatalf("GET live: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live status = %d, want 200", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Readiness reports not_ready before the dataset is first loaded.
	resp, err = http.Get(srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("GET ready: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status before load = %d, want 503", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// A query triggers the lazy load; readiness flips.
	resp, err = http.Get(srv.URL + "/api/v1/genres")
	if err != nil {
		t.Fatalf("GET genres: %v", err)
	}
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("GET ready: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status after load = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Status != "ready" {
		t.Errorf("envelope status = %q, want ready", env.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, staticLoader(testDataset()))

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
