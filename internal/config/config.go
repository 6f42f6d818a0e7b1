// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package config

import (
	"fmt"
	"time"

	"github.com/reelmatch/reelmatch/internal/validation"
)

// Config is the root configuration for both the indexer and the API server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	API     APIConfig     `koanf:"api"`
	Index   IndexConfig   `koanf:"index"`
	Engine  EngineConfig  `koanf:"engine"`
	OMDb    OMDbConfig    `koanf:"omdb"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// APIConfig holds API surface settings.
type APIConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// IndexConfig holds offline build settings.
type IndexConfig struct {
	// SourcePath points at the raw movie file (CSV or JSON).
	SourcePath string `koanf:"source_path"`

	// BundleDir is where built artifact bundles are stored and loaded from.
	BundleDir string `koanf:"bundle_dir" validate:"required"`

	// Language selects the stemmer language.
	Language string `koanf:"language" validate:"required"`

	// TextFeatures selects which record fields feed the combined document.
	TextFeatures []string `koanf:"text_features" validate:"min=1,dive,oneof=genres keywords overview cast director"`

	// StopWords and Stem toggle the respective tokenization stages.
	StopWords bool `koanf:"stop_words"`
	Stem      bool `koanf:"stem"`

	// MinWordLength drops tokens shorter than this during tokenization.
	MinWordLength int `koanf:"min_word_length" validate:"gte=1"`

	MaxFeatures     int     `koanf:"max_features" validate:"gte=0"`
	NgramMin        int     `koanf:"ngram_min" validate:"gte=1"`
	NgramMax        int     `koanf:"ngram_max" validate:"gtefield=NgramMin"`
	MinDocFreq      int     `koanf:"min_doc_freq" validate:"gte=1"`
	MaxDocFreqRatio float64 `koanf:"max_doc_freq_ratio" validate:"gt=0,lte=1"`
}

// EngineConfig holds query engine defaults.
type EngineConfig struct {
	// DefaultK is the result count used when a request omits k.
	DefaultK int `koanf:"default_k" validate:"gte=1"`

	// MaxK caps the result count of any single query. Larger requests are
	// clamped to it.
	MaxK int `koanf:"max_k" validate:"gtefield=DefaultK"`

	// MinScore is the default similarity floor.
	MinScore float64 `koanf:"min_score" validate:"gte=0,lt=1"`

	// Preload loads the dataset at startup instead of on first query.
	Preload bool `koanf:"preload"`
}

// OMDbConfig holds settings for the optional OMDb metadata enrichment.
type OMDbConfig struct {
	Enabled bool   `koanf:"enabled"`
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url" validate:"required_if=Enabled true"`

	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"gte=1"`
	RetryAttempts     int           `koanf:"retry_attempts" validate:"gte=0"`
	RetryDelay        time.Duration `koanf:"retry_delay" validate:"gt=0"`

	// CacheDir enables the on-disk response cache when non-empty.
	CacheDir string        `koanf:"cache_dir"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gt=0"`

	// Circuit breaker settings.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests" validate:"gte=1"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8270,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Index: IndexConfig{
			SourcePath:      "",
			BundleDir:       "/data/bundles",
			Language:        "english",
			TextFeatures:    []string{"genres", "keywords", "overview", "cast", "director"},
			StopWords:       true,
			Stem:            true,
			MinWordLength:   2,
			MaxFeatures:     5000,
			NgramMin:        1,
			NgramMax:        2,
			MinDocFreq:      2,
			MaxDocFreqRatio: 0.8,
		},
		Engine: EngineConfig{
			DefaultK: 10,
			MaxK:     50,
			MinScore: 0.1,
		},
		OMDb: OMDbConfig{
			Enabled:            false,
			APIKey:             "",
			BaseURL:            "https://www.omdbapi.com/",
			Timeout:            10 * time.Second,
			RequestsPerSecond:  5,
			Burst:              1,
			RetryAttempts:      3,
			RetryDelay:         500 * time.Millisecond,
			CacheDir:           "",
			CacheTTL:           24 * time.Hour,
			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would misbehave at
// runtime. It is called by LoadWithKoanf after all layers are applied.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.OMDb.Enabled && c.OMDb.APIKey == "" {
		return fmt.Errorf("omdb.api_key is required when omdb.enabled is true")
	}
	return nil
}
