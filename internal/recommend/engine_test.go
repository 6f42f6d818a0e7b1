// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package recommend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// testDataset builds a four-movie corpus with a hand-filled similarity
// matrix. Row order: Alpha(1), Beta(2), Gamma(3), Delta(4).
func testDataset() *Dataset {
	movies := []Movie{
		{ID: 1, Title: "Alpha", Genres: []string{"Action", "Sci-Fi"}, GenreKeys: []string{"action", "sci-fi"}, Popularity: 50},
		{ID: 2, Title: "Beta", Genres: []string{"Action"}, GenreKeys: []string{"action"}, Popularity: 80},
		{ID: 3, Title: "Gamma", Genres: []string{"Drama"}, GenreKeys: []string{"drama"}, Popularity: 80},
		{ID: 4, Title: "Delta", Genres: []string{"Sci-Fi"}, GenreKeys: []string{"sci-fi"}, Popularity: 10},
	}

	m := NewMatrix(4)
	rows := [][]float64{
		{1.0, 0.9, 0.5, 0.05},
		{0.9, 1.0, 0.4, 0.30},
		{0.5, 0.4, 1.0, 0.20},
		{0.05, 0.30, 0.20, 1.0},
	}
	for i, row := range rows {
		copy(m.Row(i), row)
	}

	titles := make(TitleIndex, len(movies))
	for i, mv := range movies {
		titles[NormalizeTitle(mv.Title)] = i
	}

	return &Dataset{Movies: movies, Matrix: m, Titles: titles}
}

func staticLoader(ds *Dataset) DatasetLoader {
	return LoaderFunc(func(context.Context) (*Dataset, error) { return ds, nil })
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(staticLoader(testDataset()), Options{})
}

func TestEngineSimilar(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	recs, err := e.Similar(ctx, "Alpha", 10, -1)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}

	// Delta scores 0.05, below the default 0.1 floor. Alpha excludes itself.
	wantIDs := []int{2, 3}
	if len(recs) != len(wantIDs) {
		t.Fatalf("got %d results, want %d: %+v", len(recs), len(wantIDs), recs)
	}
	for i, want := range wantIDs {
		if recs[i].Movie.ID != want {
			t.Errorf("result[%d].ID = %d, want %d", i, recs[i].Movie.ID, want)
		}
	}
	if recs[0].Score != 0.9 || recs[1].Score != 0.5 {
		t.Errorf("scores = %v, %v, want 0.9, 0.5", recs[0].Score, recs[1].Score)
	}
}

func TestEngineSimilarCaseInsensitive(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Similar(context.Background(), "alpha", 10, -1)
	if err != nil {
		t.Fatalf("Similar(alpha) error = %v", err)
	}
	b, err := e.Similar(context.Background(), "  ALPHA ", 10, -1)
	if err != nil {
		t.Fatalf("Similar(ALPHA) error = %v", err)
	}
	if len(a) != len(b) {
		t.Errorf("case variants disagree: %d vs %d results", len(a), len(b))
	}
}

func TestEngineSimilarTruncation(t *testing.T) {
	e := newTestEngine(t)

	recs, err := e.Similar(context.Background(), "Alpha", 1, -1)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Movie.ID != 2 {
		t.Errorf("top-1 = %+v, want movie 2", recs)
	}
}

func TestEngineSimilarThreshold(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		minScore float64
		wantIDs  []int
	}{
		{"zero floor keeps everything", 0, []int{2, 3, 4}},
		{"default floor drops Delta", -1, []int{2, 3}},
		{"high floor keeps only Beta", 0.8, []int{2}},
		{"floor above all scores yields empty", 0.99, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := e.Similar(ctx, "Alpha", 10, tt.minScore)
			if err != nil {
				t.Fatalf("Similar() error = %v", err)
			}
			if len(recs) != len(tt.wantIDs) {
				t.Fatalf("got %d results, want %d", len(recs), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if recs[i].Movie.ID != want {
					t.Errorf("result[%d].ID = %d, want %d", i, recs[i].Movie.ID, want)
				}
			}
		})
	}
}

func TestEngineSimilarTieBreak(t *testing.T) {
	// Two candidates with identical scores must order by ascending ID.
	movies := []Movie{
		{ID: 7, Title: "Query"},
		{ID: 9, Title: "High"},
		{ID: 3, Title: "Low"},
	}
	m := NewMatrix(3)
	rows := [][]float64{
		{1.0, 0.5, 0.5},
		{0.5, 1.0, 0.2},
		{0.5, 0.2, 1.0},
	}
	for i, row := range rows {
		copy(m.Row(i), row)
	}
	titles := TitleIndex{"query": 0, "high": 1, "low": 2}

	e := NewEngine(staticLoader(&Dataset{Movies: movies, Matrix: m, Titles: titles}), Options{})
	recs, err := e.Similar(context.Background(), "Query", 10, 0)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(recs) != 2 || recs[0].Movie.ID != 3 || recs[1].Movie.ID != 9 {
		t.Errorf("tie-break order = %+v, want IDs [3 9]", recs)
	}
}

func TestEngineSimilarErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		title   string
		k       int
		wantErr error
	}{
		{"unknown title", "Omega", 10, ErrNotFound},
		{"partial title", "Alp", 10, ErrNotFound},
		{"blank title", "   ", 10, ErrInvalidArgument},
		{"zero k", "Alpha", 0, ErrInvalidArgument},
		{"negative k", "Alpha", -3, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Similar(ctx, tt.title, tt.k, -1)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Similar() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineSimilarDeterminism(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Similar(ctx, "Alpha", 10, -1)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := e.Similar(ctx, "Alpha", 10, -1)
		if err != nil {
			t.Fatalf("Similar() error = %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: length %d != %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j].Movie.ID != first[j].Movie.ID || again[j].Score != first[j].Score {
				t.Fatalf("run %d: result %d differs: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestEngineByGenre(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Beta and Gamma would tie on popularity but Gamma is drama; within
	// action, Beta (pop 80) precedes Alpha (pop 50).
	movies, err := e.ByGenre(ctx, "Action", 10)
	if err != nil {
		t.Fatalf("ByGenre() error = %v", err)
	}
	wantIDs := []int{2, 1}
	if len(movies) != len(wantIDs) {
		t.Fatalf("got %d movies, want %d", len(movies), len(wantIDs))
	}
	for i, want := range wantIDs {
		if movies[i].ID != want {
			t.Errorf("result[%d].ID = %d, want %d", i, movies[i].ID, want)
		}
	}
}

func TestEngineByGenreTieBreak(t *testing.T) {
	movies := []Movie{
		{ID: 5, Title: "B", GenreKeys: []string{"drama"}, Popularity: 42},
		{ID: 2, Title: "A", GenreKeys: []string{"drama"}, Popularity: 42},
	}
	m := NewMatrix(2)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	e := NewEngine(staticLoader(&Dataset{Movies: movies, Matrix: m, Titles: TitleIndex{"b": 0, "a": 1}}), Options{})

	got, err := e.ByGenre(context.Background(), "drama", 10)
	if err != nil {
		t.Fatalf("ByGenre() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 5 {
		t.Errorf("tie-break order = %+v, want IDs [2 5]", got)
	}
}

func TestEngineByGenreErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ByGenre(ctx, "western", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown genre error = %v, want ErrNotFound", err)
	}
	if _, err := e.ByGenre(ctx, "  ", 10); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("blank genre error = %v, want ErrInvalidArgument", err)
	}
	if _, err := e.ByGenre(ctx, "action", 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero k error = %v, want ErrInvalidArgument", err)
	}
}

func TestEngineByGenreCaseInsensitive(t *testing.T) {
	e := newTestEngine(t)

	got, err := e.ByGenre(context.Background(), "SCI-FI", 10)
	if err != nil {
		t.Fatalf("ByGenre(SCI-FI) error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d sci-fi movies, want 2", len(got))
	}
}

func TestEngineGenres(t *testing.T) {
	e := newTestEngine(t)

	genres, err := e.Genres(context.Background())
	if err != nil {
		t.Fatalf("Genres() error = %v", err)
	}
	want := []string{"action", "drama", "sci-fi"}
	if len(genres) != len(want) {
		t.Fatalf("got %v, want %v", genres, want)
	}
	for i := range want {
		if genres[i] != want[i] {
			t.Errorf("genres[%d] = %q, want %q", i, genres[i], want[i])
		}
	}
}

func TestEngineLookup(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	m, err := e.Lookup(ctx, " gamma ")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if m.ID != 3 {
		t.Errorf("Lookup(gamma).ID = %d, want 3", m.ID)
	}

	if _, err := e.Lookup(ctx, "Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(Nope) error = %v, want ErrNotFound", err)
	}
}

func TestEngineStats(t *testing.T) {
	e := newTestEngine(t)

	stats, err := e.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalMovies != 4 {
		t.Errorf("TotalMovies = %d, want 4", stats.TotalMovies)
	}
	if stats.TotalGenres != 3 {
		t.Errorf("TotalGenres = %d, want 3", stats.TotalGenres)
	}
	if stats.MatrixRows != 4 || stats.MatrixCols != 4 {
		t.Errorf("matrix shape = %dx%d, want 4x4", stats.MatrixRows, stats.MatrixCols)
	}
	if stats.AverageSimilarity <= 0 || stats.AverageSimilarity >= 1 {
		t.Errorf("AverageSimilarity = %v, want strictly inside (0, 1)", stats.AverageSimilarity)
	}
	if stats.MatrixMemoryBytes != 16*8 {
		t.Errorf("MatrixMemoryBytes = %d, want 128", stats.MatrixMemoryBytes)
	}
}

func TestEngineMaxKClamp(t *testing.T) {
	e := NewEngine(staticLoader(testDataset()), Options{MaxK: 1})

	recs, err := e.Similar(context.Background(), "Alpha", 50, 0)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d results, want clamp to 1", len(recs))
	}
}

// wideDataset builds a corpus of n movies where every pair scores the same,
// so result counts depend only on k handling.
func wideDataset(n int) *Dataset {
	movies := make([]Movie, n)
	m := NewMatrix(n)
	titles := make(TitleIndex, n)
	for i := 0; i < n; i++ {
		title := string(rune('A' + i))
		movies[i] = Movie{ID: i + 1, Title: title, Genres: []string{"Action"}, GenreKeys: []string{"action"}, Popularity: float64(i)}
		titles[NormalizeTitle(title)] = i
		row := m.Row(i)
		for j := 0; j < n; j++ {
			row[j] = 0.5
		}
		row[i] = 1.0
	}
	return &Dataset{Movies: movies, Matrix: m, Titles: titles}
}

func TestEngineHonorsExplicitKUpToMaxK(t *testing.T) {
	e := NewEngine(staticLoader(wideDataset(15)), Options{})

	// k between the API default (10) and MaxK must be served in full, not
	// quietly truncated to the default.
	recs, err := e.Similar(context.Background(), "A", 14, 0)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(recs) != 14 {
		t.Errorf("got %d results, want 14", len(recs))
	}
}

func TestEngineSingleFlightLoad(t *testing.T) {
	var calls atomic.Int32
	ds := testDataset()
	gate := make(chan struct{})
	loader := LoaderFunc(func(context.Context) (*Dataset, error) {
		calls.Add(1)
		<-gate
		return ds, nil
	})
	e := NewEngine(loader, Options{})

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Similar(context.Background(), "Alpha", 5, -1)
		}(i)
	}

	close(gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("query %d: %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("loader invoked %d times, want 1", got)
	}
	if e.State() != StateReady {
		t.Errorf("state = %v, want ready", e.State())
	}
}

func TestEngineFailedLoadIsSticky(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("disk gone")
	loader := LoaderFunc(func(context.Context) (*Dataset, error) {
		calls.Add(1)
		return nil, boom
	})
	e := NewEngine(loader, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Similar(ctx, "Alpha", 5, -1); !errors.Is(err, ErrNotLoaded) {
			t.Fatalf("query %d error = %v, want ErrNotLoaded", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("loader invoked %d times after failure, want 1 until Reload", got)
	}
	if e.State() != StateFailed {
		t.Errorf("state = %v, want failed", e.State())
	}
}

func TestEngineReloadRecovers(t *testing.T) {
	var calls atomic.Int32
	ds := testDataset()
	loader := LoaderFunc(func(context.Context) (*Dataset, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return ds, nil
	})
	e := NewEngine(loader, Options{})
	ctx := context.Background()

	if _, err := e.Similar(ctx, "Alpha", 5, -1); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("pre-reload error = %v, want ErrNotLoaded", err)
	}
	if err := e.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, err := e.Similar(ctx, "Alpha", 5, -1); err != nil {
		t.Errorf("post-reload query error = %v", err)
	}
	if e.State() != StateReady {
		t.Errorf("state = %v, want ready", e.State())
	}
}

func TestEngineStateTransitions(t *testing.T) {
	e := newTestEngine(t)
	if e.State() != StateUnloaded {
		t.Fatalf("initial state = %v, want unloaded", e.State())
	}
	if e.Ready() {
		t.Fatal("Ready() = true before any load")
	}

	if _, err := e.Stats(context.Background()); err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if e.State() != StateReady || !e.Ready() {
		t.Errorf("post-load state = %v ready=%v, want ready", e.State(), e.Ready())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnloaded, "unloaded"},
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
