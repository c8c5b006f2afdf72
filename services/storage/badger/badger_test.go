// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenInMemory verifies in-memory database creation works.
func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	// Verify we can write and read
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("key"), []byte("value"))
	})
	require.NoError(t, err)

	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("key"))
		require.NoError(t, err)

		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("value"), val)
			return nil
		})
	})
	require.NoError(t, err)
}

// TestOpen_PersistentRequiresPath verifies the path guard.
func TestOpen_PersistentRequiresPath(t *testing.T) {
	_, err := Open(Config{InMemory: false})
	require.Error(t, err)
}

// TestOpen_Persistent verifies a persistent database round-trips data.
func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0
	db, err := Open(cfg)
	require.NoError(t, err)

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("persistent-key"), []byte("persistent-value"))
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopen and verify the data survived
	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("persistent-key"))
		require.NoError(t, err)
		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("persistent-value"), val)
			return nil
		})
	})
	require.NoError(t, err)
}

// TestEntryTTL verifies per-entry TTL expiry, which quota counters
// and cache entries rely on.
func TestEntryTTL(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	err = db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte("ttl-key"), []byte("v")).WithTTL(50 * time.Millisecond)
		return txn.SetEntry(e)
	})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("ttl-key"))
		return err
	})
	assert.True(t, errors.Is(err, badger.ErrKeyNotFound))
}

// TestOpenDB_WithTxn verifies the managed wrapper commits on success
// and discards on error.
func TestOpenDB_WithTxn(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	sentinel := errors.New("abort")
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("b"), []byte("2")); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte("a")); err != nil {
			return err
		}
		_, err := txn.Get([]byte("b"))
		assert.True(t, errors.Is(err, badger.ErrKeyNotFound), "aborted write should not persist")
		return nil
	})
	require.NoError(t, err)
}

// TestOpenDB_ContextCancelled verifies cancelled contexts short-circuit.
func TestOpenDB_ContextCancelled(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *badger.Txn) error { return nil })
	require.Error(t, err)
}

// TestNewGCRunner_Validation verifies input guards.
func TestNewGCRunner_Validation(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewGCRunner(nil, time.Minute, 0.5, nil)
	assert.Error(t, err)

	_, err = NewGCRunner(db, 0, 0.5, nil)
	assert.Error(t, err)

	_, err = NewGCRunner(db, time.Minute, 1.5, nil)
	assert.Error(t, err)

	runner, err := NewGCRunner(db, time.Minute, 0.5, nil)
	require.NoError(t, err)
	runner.Start()
	runner.Stop()
}
