// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/recommend"
)

// Text feature names accepted by BuildConfig.TextFeatures.
const (
	FeatureGenres   = "genres"
	FeatureKeywords = "keywords"
	FeatureOverview = "overview"
	FeatureCast     = "cast"
	FeatureDirector = "director"
)

// defaultTextFeatures lists every record field that can contribute to the
// combined document, in the order they are joined.
func defaultTextFeatures() []string {
	return []string{FeatureGenres, FeatureKeywords, FeatureOverview, FeatureCast, FeatureDirector}
}

// BuildConfig tunes a full index build.
type BuildConfig struct {
	// Language selects the stemmer language. Unsupported languages degrade
	// to pass-through tokenization.
	Language string

	// TextFeatures selects which record fields feed the combined document.
	// Empty selects all of them. Unknown names are ignored.
	TextFeatures []string

	// DisableStopwords and DisableStemming turn off the respective
	// tokenization stages.
	DisableStopwords bool
	DisableStemming  bool

	// MinWordLength drops tokens shorter than this. Zero selects the
	// default of 2.
	MinWordLength int

	// Vectorizer tunes vocabulary construction.
	Vectorizer VectorizerConfig
}

// DefaultBuildConfig returns the standard build profile.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Language:     "english",
		TextFeatures: defaultTextFeatures(),
		Vectorizer:   DefaultVectorizerConfig(),
	}
}

// Result carries everything a build produces: the cleaned corpus, the dense
// similarity matrix, the title index, the fitted vectorizer, and a report of
// what the build did to the input.
type Result struct {
	Movies     []recommend.Movie
	Matrix     *recommend.Matrix
	Titles     recommend.TitleIndex
	Vectorizer *Vectorizer
	Report     BuildReport
}

// BuildReport summarizes one build run.
type BuildReport struct {
	SourceRecords   int           `json:"source_records"`
	SkippedRecords  int           `json:"skipped_records"`
	DuplicateIDs    int           `json:"duplicate_ids"`
	DuplicateTitles int           `json:"duplicate_titles"`
	Features        int           `json:"features"`
	Stemming        bool          `json:"stemming"`
	Duration        time.Duration `json:"duration"`
}

// Builder produces a complete dataset from raw movie records.
type Builder struct {
	cfg BuildConfig
	log zerolog.Logger
}

// NewBuilder creates a builder with the given configuration.
func NewBuilder(cfg BuildConfig) *Builder {
	if cfg.Language == "" {
		cfg.Language = "english"
	}
	if len(cfg.TextFeatures) == 0 {
		cfg.TextFeatures = defaultTextFeatures()
	}
	return &Builder{
		cfg: cfg,
		log: logging.WithComponent("pipeline.builder"),
	}
}

// BuildFile loads a source file and runs Build over its records.
func (b *Builder) BuildFile(ctx context.Context, path string) (*Result, error) {
	raw, err := LoadMovies(path)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, raw)
}

// Build cleans the records, fits the vectorizer, and computes the similarity
// matrix. A source that yields zero usable records fails with
// ErrEmptyDataset; the build never persists a degenerate index.
//
// The corpus keeps its input order, which fixes the row index space. Records
// repeating an already-seen id are skipped entirely. When several records
// share a normalized title, the title index keeps the first occurrence.
func (b *Builder) Build(ctx context.Context, raw []RawMovie) (*Result, error) {
	start := time.Now()
	report := BuildReport{SourceRecords: len(raw)}

	movies := make([]recommend.Movie, 0, len(raw))
	titles := make(recommend.TitleIndex, len(raw))
	seenIDs := make(map[int]struct{}, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Title) == "" {
			report.SkippedRecords++
			continue
		}
		if _, dup := seenIDs[r.ID]; dup {
			report.DuplicateIDs++
			report.SkippedRecords++
			continue
		}
		seenIDs[r.ID] = struct{}{}
		m := b.buildMovie(r)

		key := recommend.NormalizeTitle(m.Title)
		if _, dup := titles[key]; dup {
			report.DuplicateTitles++
		} else {
			titles[key] = len(movies)
		}
		movies = append(movies, m)
	}

	if len(movies) == 0 {
		return nil, recommend.ErrEmptyDataset
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analyzer := NewAnalyzer(AnalyzerConfig{
		Language:         b.cfg.Language,
		DisableStopwords: b.cfg.DisableStopwords,
		DisableStemming:  b.cfg.DisableStemming,
		MinTokenLength:   b.cfg.MinWordLength,
	})
	report.Stemming = analyzer.Stemming()

	docs := make([][]string, len(movies))
	for i := range movies {
		docs[i] = analyzer.Tokens(movies[i].CombinedText)
	}

	vec := NewVectorizer(b.cfg.Vectorizer)
	vec.Fit(docs)
	report.Features = vec.Features()
	rows := vec.Transform(docs)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matrix := BuildSimilarityMatrix(rows)
	report.Duration = time.Since(start)

	b.log.Info().
		Int("movies", len(movies)).
		Int("features", report.Features).
		Int("skipped", report.SkippedRecords).
		Int("duplicate_ids", report.DuplicateIDs).
		Int("duplicate_titles", report.DuplicateTitles).
		Bool("stemming", report.Stemming).
		Dur("duration", report.Duration).
		Msg("Index build complete")

	return &Result{
		Movies:     movies,
		Matrix:     matrix,
		Titles:     titles,
		Vectorizer: vec,
		Report:     report,
	}, nil
}

// buildMovie cleans one raw record into its corpus form. CombinedText joins
// the configured text features in their configured order; absent fields and
// unrecognized feature names contribute nothing.
func (b *Builder) buildMovie(r RawMovie) recommend.Movie {
	keys, display := recommend.NormalizeGenres(r.Genres)

	parts := make([]string, 0, len(b.cfg.TextFeatures))
	for _, feature := range b.cfg.TextFeatures {
		var part string
		switch feature {
		case FeatureGenres:
			part = strings.Join(keys, " ")
		case FeatureKeywords:
			part = CleanText(r.Keywords)
		case FeatureOverview:
			part = CleanText(r.Overview)
		case FeatureCast:
			part = CleanText(r.Cast)
		case FeatureDirector:
			part = CleanText(r.Director)
		}
		if part != "" {
			parts = append(parts, part)
		}
	}

	return recommend.Movie{
		ID:           r.ID,
		Title:        strings.TrimSpace(r.Title),
		Genres:       display,
		GenreKeys:    keys,
		Overview:     r.Overview,
		Keywords:     r.Keywords,
		Cast:         r.Cast,
		Director:     r.Director,
		Popularity:   r.Popularity,
		CombinedText: strings.Join(parts, " "),
	}
}
