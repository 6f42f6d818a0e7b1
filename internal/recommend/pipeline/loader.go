// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/recommend"
)

// RawMovie is one source record before cleaning. Field names follow the
// common export schema of movie datasets.
type RawMovie struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Genres     string  `json:"genres"`
	Overview   string  `json:"overview"`
	Keywords   string  `json:"keywords"`
	Cast       string  `json:"cast"`
	Director   string  `json:"director"`
	Popularity float64 `json:"popularity"`
}

// LoadMovies reads raw movie records from a CSV or JSON file, dispatching on
// the file extension. Read and parse failures come back as
// *recommend.DataSourceError.
func LoadMovies(path string) ([]RawMovie, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".json":
		return loadJSON(path)
	default:
		return nil, &recommend.DataSourceError{
			Source: path,
			Err:    fmt.Errorf("unsupported file extension %q", filepath.Ext(path)),
		}
	}
}

func loadJSON(path string) ([]RawMovie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &recommend.DataSourceError{Source: path, Err: err}
	}
	var movies []RawMovie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, &recommend.DataSourceError{Source: path, Err: fmt.Errorf("parse json: %w", err)}
	}
	return movies, nil
}

// loadCSV reads a headered CSV. Column matching is case-insensitive;
// unrecognized columns are ignored, missing optional columns default to
// empty. Rows with a missing or unparsable id or a blank title are skipped
// with a warning rather than failing the whole load.
func loadCSV(path string) ([]RawMovie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &recommend.DataSourceError{Source: path, Err: err}
	}
	defer f.Close()

	log := logging.WithComponent("pipeline.loader")

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, &recommend.DataSourceError{Source: path, Err: fmt.Errorf("read header: %w", err)}
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, &recommend.DataSourceError{Source: path, Err: fmt.Errorf("missing required column %q", "id")}
	}
	if _, ok := cols["title"]; !ok {
		return nil, &recommend.DataSourceError{Source: path, Err: fmt.Errorf("missing required column %q", "title")}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var movies []RawMovie
	var skipped int
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			log.Warn().Int("line", line).Err(err).Msg("Skipping malformed row")
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(field(rec, "id")))
		if err != nil {
			skipped++
			log.Warn().Int("line", line).Msg("Skipping row with invalid id")
			continue
		}
		title := strings.TrimSpace(field(rec, "title"))
		if title == "" {
			skipped++
			log.Warn().Int("line", line).Int("id", id).Msg("Skipping row with blank title")
			continue
		}

		pop, _ := strconv.ParseFloat(strings.TrimSpace(field(rec, "popularity")), 64)
		movies = append(movies, RawMovie{
			ID:         id,
			Title:      title,
			Genres:     field(rec, "genres"),
			Overview:   field(rec, "overview"),
			Keywords:   field(rec, "keywords"),
			Cast:       field(rec, "cast"),
			Director:   field(rec, "director"),
			Popularity: pop,
		})
	}

	if skipped > 0 {
		log.Info().Int("skipped", skipped).Int("loaded", len(movies)).Msg("CSV load finished with skipped rows")
	}
	return movies, nil
}
