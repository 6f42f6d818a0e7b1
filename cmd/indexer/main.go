// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package main is the entry point for the Reelmatch offline indexer.
//
// The indexer reads a raw movie catalog (CSV or JSON), builds the TF-IDF
// vocabulary and dense cosine-similarity matrix, and writes a versioned,
// checksummed bundle that the query server loads.
//
// The build is a one-shot batch job: it exits 0 on success and nonzero on
// any failure, so it composes with cron and CI pipelines.
//
// # Example Usage
//
//	export INDEX_SOURCE_PATH=/data/movies.csv
//	export INDEX_BUNDLE_DIR=/data/bundles
//	./reelmatch-indexer
//
// Flags override the configured paths:
//
//	./reelmatch-indexer -config /etc/reelmatch/config.yaml
//	./reelmatch-indexer -source /data/movies.json -out /data/bundles -force
//
// When the output directory already holds a valid bundle, the indexer skips
// the build and exits 0; -force rebuilds regardless.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/metrics"
	"github.com/reelmatch/reelmatch/internal/recommend/bundle"
	"github.com/reelmatch/reelmatch/internal/recommend/pipeline"
)

func main() {
	configFlag := flag.String("config", "", "path to the config file (overrides CONFIG_PATH)")
	sourceFlag := flag.String("source", "", "path to the raw movie catalog (overrides config)")
	outFlag := flag.String("out", "", "bundle output directory (overrides config)")
	forceFlag := flag.Bool("force", false, "rebuild even when a bundle already exists")
	flag.Parse()

	if *configFlag != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, *configFlag); err != nil {
			logging.Fatal().Err(err).Msg("Failed to set config path")
		}
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	sourcePath := cfg.Index.SourcePath
	if *sourceFlag != "" {
		sourcePath = *sourceFlag
	}
	bundleDir := cfg.Index.BundleDir
	if *outFlag != "" {
		bundleDir = *outFlag
	}
	if sourcePath == "" {
		logging.Fatal().Msg("No source path configured (set INDEX_SOURCE_PATH or -source)")
	}

	log := logging.WithComponent("indexer")
	log.Info().
		Str("source", sourcePath).
		Str("bundle_dir", bundleDir).
		Msg("Starting index build")

	// A SIGINT mid-build cancels cleanly; partial version directories are
	// never referenced by a manifest, so an aborted run leaves the last
	// good bundle untouched.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bundle.NewStore(bundleDir)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open bundle store")
		os.Exit(1)
	}

	if !*forceFlag {
		if existing, err := store.Manifest(); err == nil {
			log.Info().
				Str("version", existing.Version).
				Int("movies", existing.MovieCount).
				Msg("Bundle already exists, skipping build (use -force to rebuild)")
			return
		}
	}

	builder := pipeline.NewBuilder(pipeline.BuildConfig{
		Language:         cfg.Index.Language,
		TextFeatures:     cfg.Index.TextFeatures,
		DisableStopwords: !cfg.Index.StopWords,
		DisableStemming:  !cfg.Index.Stem,
		MinWordLength:    cfg.Index.MinWordLength,
		Vectorizer: pipeline.VectorizerConfig{
			MaxFeatures:     cfg.Index.MaxFeatures,
			NgramMin:        cfg.Index.NgramMin,
			NgramMax:        cfg.Index.NgramMax,
			MinDocFreq:      cfg.Index.MinDocFreq,
			MaxDocFreqRatio: cfg.Index.MaxDocFreqRatio,
		},
	})

	start := time.Now()
	result, err := builder.BuildFile(ctx, sourcePath)
	if err != nil {
		log.Error().Err(err).Msg("Index build failed")
		os.Exit(1)
	}

	metrics.BuildDuration.Observe(time.Since(start).Seconds())
	metrics.BuildFeatures.Set(float64(result.Report.Features))

	manifest, err := store.Save(ctx, result)
	if err != nil {
		log.Error().Err(err).Msg("Failed to write bundle")
		os.Exit(1)
	}

	log.Info().
		Str("version", manifest.Version).
		Int("movies", manifest.MovieCount).
		Int("features", manifest.Features).
		Int("skipped", result.Report.SkippedRecords).
		Int("duplicate_ids", result.Report.DuplicateIDs).
		Int("duplicate_titles", result.Report.DuplicateTitles).
		Dur("duration", time.Since(start)).
		Msg("Bundle written")
}
