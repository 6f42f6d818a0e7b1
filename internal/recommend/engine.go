// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/metrics"
)

// DatasetLoader supplies the engine with a fully validated dataset. The
// bundle store implements this against persisted artifacts; tests implement
// it in memory.
type DatasetLoader interface {
	Load(ctx context.Context) (*Dataset, error)
}

// LoaderFunc adapts a function to the DatasetLoader interface.
type LoaderFunc func(ctx context.Context) (*Dataset, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*Dataset, error) { return f(ctx) }

// State describes the engine lifecycle.
type State int32

const (
	// StateUnloaded means no load attempt has been made yet.
	StateUnloaded State = iota
	// StateLoading means a load attempt is in flight.
	StateLoading
	// StateReady means a dataset is loaded and queries are served.
	StateReady
	// StateFailed means the last load attempt failed. The state is sticky:
	// queries keep failing until Reload succeeds.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options tunes query defaults. Zero values fall back to the documented
// defaults.
type Options struct {
	// MaxK caps the result count of any single query. Requests asking for
	// more are clamped, not rejected. Default 50.
	MaxK int

	// MinScore is the similarity floor applied when the caller does not
	// supply one. Default 0.1.
	MinScore float64
}

const (
	defaultMaxK     = 50
	defaultMinScore = 0.1
)

// Engine serves similarity and genre queries over a loaded dataset.
//
// Loading is lazy and single-flight: the first query triggers the load, and
// concurrent queries arriving during the load block on it rather than
// starting their own. Once loaded, the dataset is published through an
// atomic pointer so the steady-state read path takes no lock.
type Engine struct {
	loader DatasetLoader
	opts   Options
	log    zerolog.Logger

	// mu serializes load attempts. Held for the full duration of a load so
	// followers observe either the published dataset or the final error.
	mu      sync.Mutex
	loadErr error

	current atomic.Pointer[Dataset]
	state   atomic.Int32
}

// NewEngine creates an engine over the given loader. No load happens here;
// the first query or an explicit Reload triggers it.
func NewEngine(loader DatasetLoader, opts Options) *Engine {
	if opts.MaxK <= 0 {
		opts.MaxK = defaultMaxK
	}
	if opts.MinScore <= 0 {
		opts.MinScore = defaultMinScore
	}
	return &Engine{
		loader: loader,
		opts:   opts,
		log:    logging.WithComponent("recommend.engine"),
	}
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// setState publishes a state transition and mirrors it to the gauge.
func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	metrics.DatasetState.Set(float64(s))
}

// Ready reports whether a dataset is currently loaded.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// dataset returns the loaded dataset, performing the lazy single-flight load
// if needed. A previously failed load stays failed until Reload.
func (e *Engine) dataset(ctx context.Context) (*Dataset, error) {
	if ds := e.current.Load(); ds != nil {
		return ds, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A follower that blocked behind the winning loader sees its result.
	if ds := e.current.Load(); ds != nil {
		return ds, nil
	}
	if e.loadErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotLoaded, e.loadErr)
	}

	return e.loadLocked(ctx)
}

// loadLocked performs one load attempt. Caller holds e.mu.
func (e *Engine) loadLocked(ctx context.Context) (*Dataset, error) {
	e.setState(StateLoading)
	start := time.Now()

	ds, err := e.loader.Load(ctx)
	if err != nil {
		e.loadErr = err
		e.setState(StateFailed)
		metrics.RecordDatasetLoad(false, time.Since(start))
		e.log.Error().Err(err).Msg("Dataset load failed")
		return nil, fmt.Errorf("%w: %v", ErrNotLoaded, err)
	}

	e.loadErr = nil
	e.current.Store(ds)
	e.setState(StateReady)
	metrics.RecordDatasetLoad(true, time.Since(start))
	metrics.DatasetMovies.Set(float64(len(ds.Movies)))
	e.log.Info().
		Int("movies", len(ds.Movies)).
		Int("matrix_rows", ds.Matrix.N).
		Dur("duration", time.Since(start)).
		Msg("Dataset loaded")
	return ds, nil
}

// Reload discards the current dataset state and performs a fresh load. It is
// the only way out of the failed state. In-flight queries keep serving the
// previously published dataset until the new one is swapped in.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loadErr = nil
	_, err := e.loadLocked(ctx)
	return err
}

// clampK validates and clamps a requested result count.
func (e *Engine) clampK(k int) (int, error) {
	if k <= 0 {
		return 0, fmt.Errorf("%w: result count must be positive, got %d", ErrInvalidArgument, k)
	}
	if k > e.opts.MaxK {
		k = e.opts.MaxK
	}
	return k, nil
}

// Similar returns up to k movies most similar to the titled movie, ordered
// by similarity descending with movie ID ascending as the tie-break. The
// query movie itself is always excluded. Results scoring below minScore are
// dropped; pass a negative minScore to use the configured default.
//
// Title matching is exact after normalization. A title that resolves to no
// corpus row returns ErrNotFound.
func (e *Engine) Similar(ctx context.Context, title string, k int, minScore float64) ([]Recommendation, error) {
	if NormalizeTitle(title) == "" {
		return nil, fmt.Errorf("%w: title must not be blank", ErrInvalidArgument)
	}
	k, err := e.clampK(k)
	if err != nil {
		return nil, err
	}
	if minScore < 0 {
		minScore = e.opts.MinScore
	}

	ds, err := e.dataset(ctx)
	if err != nil {
		return nil, err
	}

	idx, ok := ds.Titles.Resolve(title)
	if !ok {
		return nil, fmt.Errorf("%w: movie %q", ErrNotFound, title)
	}

	row := ds.Matrix.Row(idx)
	recs := make([]Recommendation, 0, k)
	for j, score := range row {
		if j == idx || score < minScore {
			continue
		}
		recs = append(recs, Recommendation{Movie: ds.Movies[j], Score: score})
	}

	sort.Slice(recs, func(a, b int) bool {
		if recs[a].Score != recs[b].Score {
			return recs[a].Score > recs[b].Score
		}
		return recs[a].Movie.ID < recs[b].Movie.ID
	})

	if len(recs) > k {
		recs = recs[:k]
	}
	return recs, nil
}

// ByGenre returns up to k movies carrying the given genre, ordered by
// popularity descending with movie ID ascending as the tie-break. The
// ordering is fully deterministic: the same dataset and arguments always
// produce the same list. An unknown genre returns ErrNotFound.
func (e *Engine) ByGenre(ctx context.Context, genre string, k int) ([]Movie, error) {
	key := genreKey(genre)
	if key == "" {
		return nil, fmt.Errorf("%w: genre must not be blank", ErrInvalidArgument)
	}
	k, err := e.clampK(k)
	if err != nil {
		return nil, err
	}

	ds, err := e.dataset(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Movie
	for i := range ds.Movies {
		if ds.Movies[i].HasGenre(key) {
			matches = append(matches, ds.Movies[i])
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: genre %q", ErrNotFound, genre)
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Popularity != matches[b].Popularity {
			return matches[a].Popularity > matches[b].Popularity
		}
		return matches[a].ID < matches[b].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// genreKey normalizes a genre query the same way genre fields are
// normalized at build time.
func genreKey(genre string) string {
	keys, _ := NormalizeGenres(genre)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// Lookup resolves a title to its full movie record. Matching is exact after
// normalization, the same policy Similar uses.
func (e *Engine) Lookup(ctx context.Context, title string) (*Movie, error) {
	if NormalizeTitle(title) == "" {
		return nil, fmt.Errorf("%w: title must not be blank", ErrInvalidArgument)
	}
	ds, err := e.dataset(ctx)
	if err != nil {
		return nil, err
	}
	idx, ok := ds.Titles.Resolve(title)
	if !ok {
		return nil, fmt.Errorf("%w: movie %q", ErrNotFound, title)
	}
	m := ds.Movies[idx]
	return &m, nil
}

// Genres returns the unique canonical genre keys of the corpus in
// alphabetical order.
func (e *Engine) Genres(ctx context.Context) ([]string, error) {
	ds, err := e.dataset(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for i := range ds.Movies {
		for _, g := range ds.Movies[i].GenreKeys {
			seen[g] = struct{}{}
		}
	}
	genres := make([]string, 0, len(seen))
	for g := range seen {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres, nil
}

// Stats summarizes the loaded dataset.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	ds, err := e.dataset(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for i := range ds.Movies {
		for _, g := range ds.Movies[i].GenreKeys {
			seen[g] = struct{}{}
		}
	}

	return &Stats{
		TotalMovies:       len(ds.Movies),
		TotalGenres:       len(seen),
		AverageSimilarity: ds.Matrix.MeanOffDiagonal(),
		MatrixRows:        ds.Matrix.N,
		MatrixCols:        ds.Matrix.N,
		MatrixMemoryBytes: ds.Matrix.MemoryBytes(),
	}, nil
}
