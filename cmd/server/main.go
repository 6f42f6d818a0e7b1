// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package main is the entry point for the Reelmatch query server.
//
// The server loads a pre-built recommendation bundle and answers
// similarity, genre, and lookup queries over a REST API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Bundle store: Open the versioned artifact directory written by the indexer
//  3. Engine: Wrap the store in a lazy, single-flight dataset loader
//  4. OMDb client (optional): Rate-limited, circuit-broken metadata enrichment
//  5. HTTP server: Chi router with CORS, rate limiting, and Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. See config.example.yaml.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections and waits for in-flight requests up to
// server.shutdown_timeout.
//
// # Example Usage
//
//	export INDEX_BUNDLE_DIR=/data/bundles
//	export HTTP_PORT=8270
//	./reelmatch-server
//
// With OMDb enrichment:
//
//	export OMDB_ENABLED=true
//	export OMDB_API_KEY=your-key
//	./reelmatch-server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelmatch/reelmatch/internal/api"
	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/metadata"
	"github.com/reelmatch/reelmatch/internal/recommend"
	"github.com/reelmatch/reelmatch/internal/recommend/bundle"
)

func main() {
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

	logging.Info().
		Str("bundle_dir", cfg.Index.BundleDir).
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("Starting Reelmatch server")

	store, err := bundle.NewStore(cfg.Index.BundleDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open bundle store")
	}

	engine := recommend.NewEngine(store, recommend.Options{
		MaxK:     cfg.Engine.MaxK,
		MinScore: cfg.Engine.MinScore,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload the log level when the config file changes. Everything
	// else requires a restart; mutating listener or engine settings on a
	// live process is not worth the races.
	if configPath := config.ResolveConfigFile(); configPath != "" {
		err := config.WatchConfigFile(configPath, func() {
			fresh, err := config.LoadWithKoanf()
			if err != nil {
				logging.Warn().Err(err).Msg("Ignoring invalid config change")
				return
			}
			logging.SetLevelString(fresh.Logging.Level)
			logging.Info().Str("level", fresh.Logging.Level).Msg("Log level reloaded")
		})
		if err != nil {
			logging.Warn().Err(err).Msg("Config file watch unavailable")
		}
	}

	if cfg.Engine.Preload {
		if err := engine.Reload(ctx); err != nil {
			// The bundle may simply not exist yet; serve 503s until it does.
			logging.Warn().Err(err).Msg("Dataset preload failed, serving until reload")
		} else {
			logging.Info().Msg("Dataset preloaded")
		}
	}

	var enricher *metadata.Client
	if cfg.OMDb.Enabled {
		enricher, err = metadata.NewClient(cfg.OMDb)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize OMDb client")
		}
		defer func() {
			if err := enricher.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing OMDb client")
			}
		}()
		logging.Info().Msg("OMDb enrichment enabled")
	}

	handler := api.NewHandler(engine, enricher, cfg)
	router := api.NewRouter(handler, cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	// Wait for the listener goroutine to finish.
	<-errCh

	logging.Info().Msg("Application stopped gracefully")
}
