// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package metadata enriches recommendation responses with movie details
// fetched from the OMDb API. Requests are rate limited, retried with
// backoff, wrapped in a circuit breaker, and cached (in memory and
// optionally on disk) with a TTL, so a slow or flapping OMDb never
// degrades the core recommendation path.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	memcache "github.com/reelmatch/reelmatch/internal/cache"
	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/logging"
	"github.com/reelmatch/reelmatch/internal/metrics"
)

// memCacheCapacity bounds the in-memory layer in front of the on-disk
// cache. Hot titles stay resident across requests even when the disk
// cache is disabled.
const memCacheCapacity = 1024

// ErrUnavailable indicates the upstream is currently unreachable, either
// because the circuit breaker is open or retries were exhausted.
var ErrUnavailable = errors.New("metadata provider unavailable")

// ErrNoMetadata indicates OMDb has no record for the requested title.
var ErrNoMetadata = errors.New("no metadata for title")

// MovieDetails is the subset of the OMDb response surfaced to clients.
type MovieDetails struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Rated      string `json:"Rated,omitempty"`
	Released   string `json:"Released,omitempty"`
	Runtime    string `json:"Runtime,omitempty"`
	Genre      string `json:"Genre,omitempty"`
	Director   string `json:"Director,omitempty"`
	Actors     string `json:"Actors,omitempty"`
	Plot       string `json:"Plot,omitempty"`
	Poster     string `json:"Poster,omitempty"`
	IMDBRating string `json:"imdbRating,omitempty"`
	IMDBID     string `json:"imdbID,omitempty"`

	// Response and Error carry OMDb's in-band status signaling.
	Response string `json:"Response"`
	Error    string `json:"Error,omitempty"`
}

// Client is a resilient OMDb API client.
type Client struct {
	cfg        config.OMDbConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[*MovieDetails]
	mem        *memcache.LRU[*MovieDetails]
	cache      *Cache
	log        zerolog.Logger
}

// NewClient builds a client from configuration. When cfg.CacheDir is set, an
// on-disk response cache is opened; the caller owns Close.
func NewClient(cfg config.OMDbConfig) (*Client, error) {
	log := logging.WithComponent("metadata.omdb")

	var cache *Cache
	if cfg.CacheDir != "" {
		var err error
		cache, err = OpenCache(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("open metadata cache: %w", err)
		}
	}

	cb := gobreaker.NewCircuitBreaker[*MovieDetails](gobreaker.Settings{
		Name:        "omdb",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.OMDbBreakerState.Set(breakerStateValue(to))
		},
		IsSuccessful: func(err error) bool {
			// A missing title is a definitive answer, not an upstream
			// failure. Only transport and server errors count against the
			// breaker.
			return err == nil || errors.Is(err, ErrNoMetadata)
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cb:         cb,
		mem:        memcache.NewLRU[*MovieDetails](memCacheCapacity, cfg.CacheTTL),
		cache:      cache,
		log:        log,
	}, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// memKey normalizes a title for the in-memory cache. The on-disk layer has
// its own prefixed byte key, see cacheKey.
func memKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Lookup fetches movie details by exact title. Cached responses are served
// without touching the upstream.
func (c *Client) Lookup(ctx context.Context, title string) (*MovieDetails, error) {
	key := memKey(title)

	if details, ok := c.mem.Get(key); ok {
		metrics.OMDbCacheHits.Inc()
		return details, nil
	}

	if c.cache != nil {
		var cached MovieDetails
		ok, err := c.cache.Get(title, &cached)
		if err != nil {
			c.log.Warn().Err(err).Msg("Metadata cache read failed")
		} else if ok {
			metrics.OMDbCacheHits.Inc()
			c.mem.Add(key, &cached)
			return &cached, nil
		}
	}
	metrics.OMDbCacheMisses.Inc()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	details, err := c.cb.Execute(func() (*MovieDetails, error) {
		return c.fetchWithRetry(ctx, title)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.OMDbRequests.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	c.mem.Add(key, details)
	if c.cache != nil {
		if err := c.cache.Set(title, details); err != nil {
			c.log.Warn().Err(err).Msg("Metadata cache write failed")
		}
	}
	return details, nil
}

// fetchWithRetry performs the HTTP request with bounded retries. Only
// transport and 5xx failures are retried; OMDb's "not found" answer returns
// immediately.
func (c *Client) fetchWithRetry(ctx context.Context, title string) (*MovieDetails, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		details, err := c.fetch(ctx, title)
		if err == nil {
			metrics.OMDbRequests.WithLabelValues("success").Inc()
			return details, nil
		}
		if errors.Is(err, ErrNoMetadata) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		lastErr = err
		metrics.OMDbRequests.WithLabelValues("error").Inc()
		c.log.Warn().Int("attempt", attempt+1).Err(err).Msg("OMDb request failed")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) fetch(ctx context.Context, title string) (*MovieDetails, error) {
	start := time.Now()
	defer func() {
		metrics.OMDbRequestDuration.Observe(time.Since(start).Seconds())
	}()

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", c.cfg.APIKey)
	q.Set("t", title)
	q.Set("plot", "short")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("omdb request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("omdb returned status %d", resp.StatusCode)
	}

	var details MovieDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("decode omdb response: %w", err)
	}
	if details.Response == "False" {
		return nil, fmt.Errorf("%w: %s", ErrNoMetadata, details.Error)
	}
	return &details, nil
}

// Close releases the response cache, if one was opened.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}
