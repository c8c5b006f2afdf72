// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache deduplicates generated section content.
//
// Content is keyed by a fingerprint of the project's identity and
// detected stack, so two requests for the same section of the same
// project reuse one generation. A small in-process LRU fronts a
// Badger-backed store; the LRU absorbs hot repeats, Badger survives
// restarts.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"

	storage "github.com/devdocs-ai/devdocs/services/storage/badger"
)

const (
	contentKeyPrefix = "generate:"

	// DefaultTTL is how long generated content stays reusable.
	DefaultTTL = 24 * time.Hour

	defaultLRUSize = 512

	// fingerprintStructureEntries caps how much of the file listing
	// feeds the fingerprint. Ten entries is enough to tell projects
	// apart without making the key churn on every added file.
	fingerprintStructureEntries = 10
)

// Entry is one cached generation.
type Entry struct {
	Content     string    `json:"content"`
	Explanation string    `json:"explanation,omitempty"`
	Provider    string    `json:"provider"`
	SectionID   string    `json:"sectionId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// placeholderMarkers appear in fallback or template output that must
// never be served from cache.
var placeholderMarkers = []string{
	"*AI generation temporarily unavailable*",
	"Please customize this section manually",
	"{{",
	"Content generation failed",
}

// IsValid reports whether an entry holds real generated content.
// Placeholder output, template residue, and truncated responses are
// all rejected so they are never replayed to another request.
func IsValid(e Entry) bool {
	if e.Provider == "" || e.SectionID == "" {
		return false
	}
	content := strings.TrimSpace(e.Content)
	if len(content) < 100 {
		return false
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(content, marker) {
			return false
		}
	}
	return true
}

// Fingerprint derives the cache key for a section generation.
//
// Inputs:
//
//	projectName - The project's declared name.
//	sectionID - Which section is being generated.
//	primaryStack - The detected primary stack.
//	structure - The project's file listing; only the first few
//	    entries participate.
//
// Outputs:
//
//	string - A stable "generate:"-prefixed hex key.
func Fingerprint(projectName, sectionID, primaryStack string, structure []string) string {
	if len(structure) > fingerprintStructureEntries {
		structure = structure[:fingerprintStructureEntries]
	}
	h := sha256.New()
	h.Write([]byte(projectName))
	h.Write([]byte{'|'})
	h.Write([]byte(sectionID))
	h.Write([]byte{'|'})
	h.Write([]byte(primaryStack))
	for _, entry := range structure {
		h.Write([]byte{'|'})
		h.Write([]byte(entry))
	}
	return contentKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// ContentCache stores generated section content.
//
// # Thread Safety
//
// Safe for concurrent use.
type ContentCache struct {
	lru    *expirable.LRU[string, Entry]
	db     *storage.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewContentCache builds a cache over the given database. A ttl of
// zero means DefaultTTL.
func NewContentCache(db *storage.DB, ttl time.Duration, logger *slog.Logger) *ContentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentCache{
		lru:    expirable.NewLRU[string, Entry](defaultLRUSize, nil, ttl),
		db:     db,
		ttl:    ttl,
		logger: logger,
	}
}

// Get looks up an entry by key. Entries that fail the validity check
// are evicted and reported as a miss, so a poisoned entry costs one
// extra generation instead of being replayed for its whole TTL.
func (c *ContentCache) Get(ctx context.Context, key string) (Entry, bool) {
	if entry, ok := c.lru.Get(key); ok {
		if IsValid(entry) {
			return entry, true
		}
		c.evict(ctx, key)
		return Entry{}, false
	}

	var entry Entry
	err := c.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if err != badgerdb.ErrKeyNotFound {
			c.logger.Warn("content cache read failed", "error", err)
		}
		return Entry{}, false
	}

	if !IsValid(entry) {
		c.evict(ctx, key)
		return Entry{}, false
	}

	c.lru.Add(key, entry)
	return entry, true
}

// Put stores an entry under key. Invalid entries are refused: the
// cache only ever holds content worth replaying.
func (c *ContentCache) Put(ctx context.Context, key string, entry Entry) error {
	if !IsValid(entry) {
		return fmt.Errorf("refusing to cache invalid content for %s", entry.SectionID)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	err = c.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		e := badgerdb.NewEntry([]byte(key), val).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}

	c.lru.Add(key, entry)
	return nil
}

// Delete removes an entry from both tiers.
func (c *ContentCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	err := c.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (c *ContentCache) evict(ctx context.Context, key string) {
	if err := c.Delete(ctx, key); err != nil {
		c.logger.Warn("failed to evict invalid cache entry", "key", key, "error", err)
	}
}
