// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package bundle persists the artifact set one index build produces and
// loads it back for the query engine.
//
// # Storage Format
//
// Each build is written into its own version directory containing one
// gob+gzip file per artifact (corpus, matrix, titles, vectorizer), each
// carrying its own SHA-256 checksum. A manifest.json at the store root names
// the active version directory and is replaced with an atomic rename, so a
// reader sees either the previous complete bundle or the new complete
// bundle, never a mix.
//
// # Thread Safety
//
// All store operations are safe for concurrent use.
package bundle

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/recommend"
	"github.com/reelmatch/reelmatch/internal/recommend/pipeline"
)

// FormatVersion identifies the on-disk layout. Readers reject manifests
// written by an incompatible layout.
const FormatVersion = 1

// Artifact file names within a version directory.
const (
	artifactCorpus     = "corpus"
	artifactMatrix     = "matrix"
	artifactTitles     = "titles"
	artifactVectorizer = "vectorizer"

	manifestName  = "manifest.json"
	versionPrefix = "v"

	// keepVersions bounds how many old version directories survive a save.
	keepVersions = 2
)

// ArtifactInfo records the integrity data of one persisted artifact.
type ArtifactInfo struct {
	// Checksum is the SHA-256 of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed size on disk.
	SizeBytes int64 `json:"size_bytes"`
}

// Manifest is the commit record of one bundle. It is the last file written;
// its atomic rename publishes the version directory it names.
type Manifest struct {
	FormatVersion int                     `json:"format_version"`
	Version       string                  `json:"version"`
	BuiltAt       time.Time               `json:"built_at"`
	MovieCount    int                     `json:"movie_count"`
	Features      int                     `json:"features"`
	Stemming      bool                    `json:"stemming"`
	Artifacts     map[string]ArtifactInfo `json:"artifacts"`
}

// storedArtifact is the on-disk format of one artifact file.
type storedArtifact struct {
	Name           string
	Checksum       string
	CompressedData []byte
}

// Store manages bundle persistence under one base directory. It implements
// recommend.DatasetLoader, so the engine can be pointed straight at it.
type Store struct {
	baseDir string
	mu      sync.Mutex
	log     zerolog.Logger
}

// NewStore opens (creating if needed) a bundle store at the given directory.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create bundle directory: %w", err)
	}
	return &Store{
		baseDir: baseDir,
		log:     logging.WithComponent("bundle.store"),
	}, nil
}

// Save persists a build result as a new bundle version and atomically makes
// it the active one. Older versions beyond a small retention window are
// pruned best-effort.
func (s *Store) Save(ctx context.Context, res *pipeline.Result) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(res.Movies) == 0 {
		return nil, recommend.ErrEmptyDataset
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version := fmt.Sprintf("%s%d", versionPrefix, time.Now().UnixNano())
	dir := filepath.Join(s.baseDir, version)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create version directory: %w", err)
	}

	manifest := &Manifest{
		FormatVersion: FormatVersion,
		Version:       version,
		BuiltAt:       time.Now().UTC(),
		MovieCount:    len(res.Movies),
		Features:      res.Vectorizer.Features(),
		Stemming:      res.Report.Stemming,
		Artifacts:     make(map[string]ArtifactInfo, 4),
	}

	artifacts := map[string]interface{}{
		artifactCorpus:     res.Movies,
		artifactMatrix:     res.Matrix,
		artifactTitles:     res.Titles,
		artifactVectorizer: res.Vectorizer,
	}
	for name, data := range artifacts {
		info, err := writeArtifact(filepath.Join(dir, name+".gob.gz"), name, data)
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("write %s artifact: %w", name, err)
		}
		manifest.Artifacts[name] = *info
	}

	if err := s.commitManifest(manifest); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	s.pruneLocked(version)

	s.log.Info().
		Str("version", version).
		Int("movies", manifest.MovieCount).
		Int("features", manifest.Features).
		Msg("Bundle saved")
	return manifest, nil
}

// commitManifest writes the manifest to a temp file and renames it into
// place. The rename is the commit point.
func (s *Store) commitManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(s.baseDir, manifestName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.baseDir, manifestName)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// pruneLocked removes version directories older than the retention window,
// never touching the active one. Caller holds s.mu.
func (s *Store) pruneLocked(active string) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), versionPrefix) {
			versions = append(versions, e.Name())
		}
	}
	// Version names embed a nanosecond timestamp of fixed magnitude, so the
	// lexicographic order is the build order.
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))

	for i, v := range versions {
		if i < keepVersions || v == active {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.baseDir, v)); err != nil {
			s.log.Warn().Str("version", v).Err(err).Msg("Failed to prune old bundle version")
		}
	}
}

// Manifest reads the active manifest, if any.
func (s *Store) Manifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &recommend.IntegrityError{Artifact: manifestName, Reason: fmt.Sprintf("malformed manifest: %v", err)}
	}
	if m.FormatVersion != FormatVersion {
		return nil, &recommend.IntegrityError{
			Artifact: manifestName,
			Reason:   fmt.Sprintf("unsupported format version %d", m.FormatVersion),
		}
	}
	return &m, nil
}

// Load reads and validates the active bundle. Every artifact checksum is
// verified and the artifacts are cross-checked for shape agreement; any
// inconsistency fails the whole load with an IntegrityError. Nothing is
// ever truncated or partially accepted.
func (s *Store) Load(ctx context.Context) (*recommend.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.baseDir, manifest.Version)

	var movies []recommend.Movie
	if err := s.readArtifact(dir, manifest, artifactCorpus, &movies); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matrix recommend.Matrix
	if err := s.readArtifact(dir, manifest, artifactMatrix, &matrix); err != nil {
		return nil, err
	}

	var titles recommend.TitleIndex
	if err := s.readArtifact(dir, manifest, artifactTitles, &titles); err != nil {
		return nil, err
	}

	var vec pipeline.Vectorizer
	if err := s.readArtifact(dir, manifest, artifactVectorizer, &vec); err != nil {
		return nil, err
	}

	if err := validate(manifest, movies, &matrix, titles); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("version", manifest.Version).
		Int("movies", len(movies)).
		Msg("Bundle loaded")
	return &recommend.Dataset{Movies: movies, Matrix: &matrix, Titles: titles}, nil
}

// LoadVectorizer reads only the fitted vectorizer of the active bundle.
func (s *Store) LoadVectorizer(ctx context.Context) (*pipeline.Vectorizer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	var vec pipeline.Vectorizer
	if err := s.readArtifact(filepath.Join(s.baseDir, manifest.Version), manifest, artifactVectorizer, &vec); err != nil {
		return nil, err
	}
	return &vec, nil
}

// validate cross-checks artifact shapes against each other and the manifest.
func validate(m *Manifest, movies []recommend.Movie, matrix *recommend.Matrix, titles recommend.TitleIndex) error {
	n := len(movies)
	if n == 0 {
		return &recommend.IntegrityError{Artifact: artifactCorpus, Reason: "corpus is empty"}
	}
	if m.MovieCount != n {
		return &recommend.IntegrityError{
			Artifact: artifactCorpus,
			Reason:   fmt.Sprintf("manifest records %d movies, corpus holds %d", m.MovieCount, n),
		}
	}
	if matrix.N != n {
		return &recommend.IntegrityError{
			Artifact: artifactMatrix,
			Reason:   fmt.Sprintf("matrix is %dx%d but corpus holds %d movies", matrix.N, matrix.N, n),
		}
	}
	if len(matrix.Data) != matrix.N*matrix.N {
		return &recommend.IntegrityError{
			Artifact: artifactMatrix,
			Reason:   fmt.Sprintf("matrix backing size %d does not match declared shape %dx%d", len(matrix.Data), matrix.N, matrix.N),
		}
	}
	if len(titles) == 0 {
		return &recommend.IntegrityError{
			Artifact: artifactTitles,
			Reason:   fmt.Sprintf("title index is empty but corpus holds %d movies", n),
		}
	}
	for title, idx := range titles {
		if idx < 0 || idx >= n {
			return &recommend.IntegrityError{
				Artifact: artifactTitles,
				Reason:   fmt.Sprintf("title %q points at row %d outside corpus of %d", title, idx, n),
			}
		}
	}
	return nil
}

// writeArtifact gob-encodes, checksums, compresses, and writes one artifact.
func writeArtifact(path, name string, data interface{}) (*ArtifactInfo, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	raw := buf.Bytes()

	hash := sha256.Sum256(raw)
	checksum := hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sa := storedArtifact{Name: name, Checksum: checksum, CompressedData: compressed.Bytes()}
	if err := gob.NewEncoder(f).Encode(sa); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync file: %w", err)
	}

	return &ArtifactInfo{Checksum: checksum, SizeBytes: int64(compressed.Len())}, nil
}

// readArtifact loads one artifact file, verifying its embedded checksum and
// the manifest's record of it.
func (s *Store) readArtifact(dir string, m *Manifest, name string, target interface{}) error {
	info, ok := m.Artifacts[name]
	if !ok {
		return &recommend.IntegrityError{Artifact: name, Reason: "missing from manifest"}
	}

	f, err := os.Open(filepath.Join(dir, name+".gob.gz"))
	if err != nil {
		return &recommend.IntegrityError{Artifact: name, Reason: fmt.Sprintf("open: %v", err)}
	}
	defer func() { _ = f.Close() }()

	var sa storedArtifact
	if err := gob.NewDecoder(f).Decode(&sa); err != nil {
		return &recommend.IntegrityError{Artifact: name, Reason: fmt.Sprintf("read: %v", err)}
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sa.CompressedData))
	if err != nil {
		return &recommend.IntegrityError{Artifact: name, Reason: fmt.Sprintf("decompress: %v", err)}
	}
	defer func() { _ = gzr.Close() }()

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return &recommend.IntegrityError{Artifact: name, Reason: fmt.Sprintf("decompress: %v", err)}
	}

	hash := sha256.Sum256(raw)
	checksum := hex.EncodeToString(hash[:])
	if checksum != sa.Checksum {
		return &recommend.IntegrityError{Artifact: name, Reason: "checksum mismatch against stored file"}
	}
	if checksum != info.Checksum {
		return &recommend.IntegrityError{Artifact: name, Reason: "checksum mismatch against manifest"}
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return &recommend.IntegrityError{Artifact: name, Reason: fmt.Sprintf("decode: %v", err)}
	}
	return nil
}
