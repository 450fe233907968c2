// Package storage provides the small key-value store that persists app
// state between runs: the persona and chat, the journal, and a
// user-provided API key.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

// Well-known keys.
const (
	KeyCriticState  = "inner-critic-storage"
	KeyJournalState = "journal-storage"
)

// ErrNotFound is returned by Get and Delete for an unknown key.
var ErrNotFound = errors.New("key not found")

// KV is a persistent string-keyed byte store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open opens the store for driver inside dir.
func Open(driver, dir string) (KV, error) {
	switch driver {
	case "", DriverFile:
		return NewFileStore(filepath.Join(dir, "state.json"))
	case DriverSQLite:
		return NewSQLiteStore(filepath.Join(dir, "state.db"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// GetJSON decodes the value at key into v.
func GetJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Put(ctx, key, data)
}
