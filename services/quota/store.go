// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	storage "github.com/devdocs-ai/devdocs/services/storage/badger"
)

// CounterStore is the minimal counter interface quota enforcement
// needs. Both the rate limiter and the usage meter run on it.
type CounterStore interface {
	// Incr atomically increments the counter at key and returns the
	// new value. A counter created by this call expires after ttl;
	// an existing counter keeps its original expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the counter value, or 0 for a missing or expired
	// key.
	Get(ctx context.Context, key string) (int64, error)
}

// BadgerCounterStore implements CounterStore on the embedded BadgerDB.
// Increments run in a single read-modify-write transaction, so
// concurrent callers never lose updates; Badger's per-entry TTL
// handles expiry, no sweeper needed.
type BadgerCounterStore struct {
	db *storage.DB
}

var _ CounterStore = (*BadgerCounterStore)(nil)

// NewBadgerCounterStore wraps the given database.
func NewBadgerCounterStore(db *storage.DB) *BadgerCounterStore {
	return &BadgerCounterStore{db: db}
}

// Incr implements CounterStore.
func (s *BadgerCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var value int64
	err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		keyBytes := []byte(key)

		item, err := txn.Get(keyBytes)
		switch {
		case errors.Is(err, badgerdb.ErrKeyNotFound):
			value = 1
			entry := badgerdb.NewEntry(keyBytes, encodeCounter(1)).WithTTL(ttl)
			return txn.SetEntry(entry)
		case err != nil:
			return err
		}

		current, err := decodeCounterItem(item)
		if err != nil {
			return err
		}
		value = current + 1

		entry := badgerdb.NewEntry(keyBytes, encodeCounter(value))
		// Preserve the original expiry so repeated increments don't
		// push the window forward.
		if expiresAt := item.ExpiresAt(); expiresAt > 0 {
			remaining := time.Until(time.Unix(int64(expiresAt), 0))
			if remaining <= 0 {
				// Entry expires this instant; treat as a fresh counter.
				value = 1
				entry = badgerdb.NewEntry(keyBytes, encodeCounter(1)).WithTTL(ttl)
				return txn.SetEntry(entry)
			}
			entry = entry.WithTTL(remaining)
		} else {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return value, nil
}

// Get implements CounterStore.
func (s *BadgerCounterStore) Get(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			value = 0
			return nil
		}
		if err != nil {
			return err
		}
		value, err = decodeCounterItem(item)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	return value, nil
}

func encodeCounter(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

func decodeCounterItem(item *badgerdb.Item) (int64, error) {
	var value int64
	err := item.Value(func(val []byte) error {
		parsed, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt counter value %q: %w", val, err)
		}
		value = parsed
		return nil
	})
	return value, err
}
