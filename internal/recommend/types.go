// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package recommend

import (
	"strings"
	"unicode"
)

// Movie is one row of the cleaned corpus. The corpus row order is fixed at
// build time and defines the index space shared by the similarity matrix and
// the title index: row i of the matrix corresponds to movie i of the corpus.
type Movie struct {
	// ID is the stable movie identifier. Unique within a corpus, immutable
	// once built.
	ID int `json:"id"`

	// Title is the display title, the primary lookup key for similarity
	// queries (matched case-insensitively via NormalizeTitle).
	Title string `json:"title"`

	// Genres holds the original-case display genres.
	Genres []string `json:"genres"`

	// GenreKeys holds the canonical normalized genre tokens (lowercased,
	// trimmed) used for genre matching. Parallel in content, not in order,
	// to Genres.
	GenreKeys []string `json:"genre_keys"`

	// Raw text sources configured for feature combination. An absent field
	// is the empty string and contributes nothing to CombinedText.
	Overview string `json:"overview,omitempty"`
	Keywords string `json:"keywords,omitempty"`
	Cast     string `json:"cast,omitempty"`
	Director string `json:"director,omitempty"`

	// Popularity is the secondary relevance signal for genre ordering.
	Popularity float64 `json:"popularity,omitempty"`

	// CombinedText is the cleaned concatenation of all configured text
	// sources. Derived once at build time, never mutated afterward. Empty
	// when every source field is absent.
	CombinedText string `json:"combined_text,omitempty"`
}

// HasGenre reports whether the movie carries the given canonical genre key.
func (m *Movie) HasGenre(key string) bool {
	for _, g := range m.GenreKeys {
		if g == key {
			return true
		}
	}
	return false
}

// Recommendation pairs a movie with its similarity score against the query
// movie.
type Recommendation struct {
	Movie Movie   `json:"movie"`
	Score float64 `json:"score"`
}

// TitleIndex maps normalized titles to corpus row indices.
//
// Resolution policy: when several corpus rows share a normalized title, the
// index stores the first occurrence in corpus order. Later duplicates remain
// reachable through genre queries only.
type TitleIndex map[string]int

// Resolve looks up a raw query title after applying the same normalization
// used at build time. The boolean result distinguishes "no such movie" from
// an empty recommendation list.
func (t TitleIndex) Resolve(title string) (int, bool) {
	idx, ok := t[NormalizeTitle(title)]
	return idx, ok
}

// NormalizeTitle produces the canonical lookup form of a title: trimmed and
// lowercased. Build and query sides must agree on this exactly.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// NormalizeGenres splits a raw genre field on pipes, commas, and whitespace,
// trims the tokens, drops empties, and lowercases them into the canonical
// key set. The display forms are returned alongside, deduplicated in
// first-seen order. "Action|Sci-Fi" and "Action, Sci-Fi" both yield the keys
// {action, sci-fi}.
func NormalizeGenres(raw string) (keys, display []string) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '|' || r == ',' || unicode.IsSpace(r)
	})

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		key := strings.ToLower(f)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
		display = append(display, f)
	}
	return keys, display
}

// Matrix is a dense square similarity matrix. Entries are cosine similarities
// in [0, 1]; the diagonal is 1.0 by construction. Fields are exported for gob
// serialization; treat a loaded matrix as read-only.
//
// Storage is dense O(N²): the target corpus is thousands of movies, not
// millions, and a dense layout keeps row reads allocation-free at query time.
type Matrix struct {
	// N is the number of rows (and columns).
	N int

	// Data is the row-major backing slice, length N*N.
	Data []float64
}

// NewMatrix allocates an n×n zero matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{N: n, Data: make([]float64, n*n)}
}

// At returns the entry at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.N+j]
}

// Set assigns the entry at row i, column j.
func (m *Matrix) Set(i, j int, v float64) {
	m.Data[i*m.N+j] = v
}

// Row returns row i as a slice aliasing the backing array.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.N : (i+1)*m.N]
}

// MemoryBytes estimates the matrix memory footprint.
func (m *Matrix) MemoryBytes() int64 {
	return int64(len(m.Data)) * 8
}

// MeanOffDiagonal computes the mean similarity over the strict upper
// triangle. The diagonal's constant 1.0 self-similarity is excluded so it
// cannot bias the mean upward. Returns 0 for matrices smaller than 2×2.
func (m *Matrix) MeanOffDiagonal() float64 {
	if m.N < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < m.N; i++ {
		for j := i + 1; j < m.N; j++ {
			sum += m.At(i, j)
		}
	}
	pairs := float64(m.N) * float64(m.N-1) / 2
	return sum / pairs
}

// Dataset is the immutable, query-relevant view of a loaded bundle. The
// engine shares one Dataset across all request handlers; nothing mutates it
// after load.
type Dataset struct {
	Movies []Movie
	Matrix *Matrix
	Titles TitleIndex
}

// Stats summarizes a loaded dataset.
type Stats struct {
	TotalMovies int `json:"total_movies"`

	// TotalGenres counts unique canonical genre keys across the corpus.
	TotalGenres int `json:"total_genres"`

	// AverageSimilarity is the mean over the strict upper triangle of the
	// similarity matrix, self-similarity excluded.
	AverageSimilarity float64 `json:"average_similarity"`

	MatrixRows int `json:"matrix_rows"`
	MatrixCols int `json:"matrix_cols"`

	// MatrixMemoryBytes estimates the in-memory size of the dense matrix.
	MatrixMemoryBytes int64 `json:"matrix_memory_bytes"`
}
