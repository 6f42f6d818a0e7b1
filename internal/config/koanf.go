// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reelmatch/config.yaml",
	"/etc/reelmatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// LoadWithKoanf loads configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ResolveConfigFile returns the config file path LoadWithKoanf would use,
// or empty when running on defaults and environment only. Useful for
// wiring a watcher against the same file.
func ResolveConfigFile() string {
	return findConfigFile()
}

// findConfigFile returns the first existing config file path, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// sourced from environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"index.text_features",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings; YAML values arrive as
// slices already and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return empty string and are skipped, so stray
// environment variables cannot pollute the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - INDEX_SOURCE_PATH -> index.source_path
//   - OMDB_API_KEY -> omdb.api_key
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_timeout":          "server.timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// API mappings
		"cors_origins":        "api.cors_origins",
		"rate_limit_requests": "api.rate_limit_requests",
		"rate_limit_window":   "api.rate_limit_window",
		"disable_rate_limit":  "api.rate_limit_disabled",

		// Index build mappings
		"index_source_path":        "index.source_path",
		"index_bundle_dir":         "index.bundle_dir",
		"index_language":           "index.language",
		"index_text_features":      "index.text_features",
		"index_stop_words":         "index.stop_words",
		"index_stem":               "index.stem",
		"index_min_word_length":    "index.min_word_length",
		"index_max_features":       "index.max_features",
		"index_ngram_min":          "index.ngram_min",
		"index_ngram_max":          "index.ngram_max",
		"index_min_doc_freq":       "index.min_doc_freq",
		"index_max_doc_freq_ratio": "index.max_doc_freq_ratio",

		// Engine mappings
		"engine_default_k": "engine.default_k",
		"engine_max_k":     "engine.max_k",
		"engine_min_score": "engine.min_score",
		"engine_preload":   "engine.preload",

		// OMDb mappings
		"omdb_enabled":              "omdb.enabled",
		"omdb_api_key":              "omdb.api_key",
		"omdb_base_url":             "omdb.base_url",
		"omdb_timeout":              "omdb.timeout",
		"omdb_requests_per_second":  "omdb.requests_per_second",
		"omdb_burst":                "omdb.burst",
		"omdb_retry_attempts":       "omdb.retry_attempts",
		"omdb_retry_delay":          "omdb.retry_delay",
		"omdb_cache_dir":            "omdb.cache_dir",
		"omdb_cache_ttl":            "omdb.cache_ttl",
		"omdb_breaker_max_requests": "omdb.breaker_max_requests",
		"omdb_breaker_interval":     "omdb.breaker_interval",
		"omdb_breaker_timeout":      "omdb.breaker_timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload. The caller is
// responsible for mutex protection when swapping configuration during
// reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
