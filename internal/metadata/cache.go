// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package metadata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/reelmatch/reelmatch/internal/logging"
)

const cacheKeyPrefix = "omdb:"

// Cache is a BadgerDB-backed response cache with per-entry TTL. Entries
// expire on their own; no explicit eviction pass is needed.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenCache opens (creating if needed) a cache at dir.
func OpenCache(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	log := logging.WithComponent("metadata.cache")
	log.Debug().Str("dir", dir).Msg("Metadata cache opened")
	return &Cache{db: db, ttl: ttl}, nil
}

func cacheKey(title string) []byte {
	return []byte(cacheKeyPrefix + strings.ToLower(strings.TrimSpace(title)))
}

// Get reads a cached entry into target. The boolean result reports whether
// a live entry was found.
func (c *Cache) Get(title string, target interface{}) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(title))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, target)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Set stores an entry under the configured TTL.
func (c *Cache) Set(title string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(title), data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
