package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps every key in one JSON file. Writes go to a temporary
// file that is renamed over the original.
type FileStore struct {
	path   string
	values map[string]json.RawMessage
	mu     sync.RWMutex
}

// NewFileStore creates or loads a store at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	fs := &FileStore{
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &fs.values); err != nil {
			return nil, fmt.Errorf("corrupt state file %s: %w", path, err)
		}
	}
	return fs, nil
}

// Path returns the backing file path.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	v, ok := fs.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeValue(v), nil
}

func (fs *FileStore) Put(_ context.Context, key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, had := fs.values[key]
	fs.values[key] = encodeValue(value)
	if err := fs.save(); err != nil {
		if had {
			fs.values[key] = prev
		} else {
			delete(fs.values, key)
		}
		return err
	}
	return nil
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, ok := fs.values[key]
	if !ok {
		return ErrNotFound
	}
	delete(fs.values, key)
	if err := fs.save(); err != nil {
		fs.values[key] = prev
		return err
	}
	return nil
}

func (fs *FileStore) Keys(context.Context) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	keys := make([]string, 0, len(fs.values))
	for k := range fs.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (fs *FileStore) Close() error {
	return nil
}

// save writes the map to disk. Caller must hold the write lock.
func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.values, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace state: %w", err)
	}
	return nil
}

// JSON objects and arrays are embedded as-is so the file stays readable.
// Anything else is stored as a JSON string.
func encodeValue(value []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return json.RawMessage(append([]byte(nil), value...))
	}
	s, _ := json.Marshal(string(value))
	return s
}

func decodeValue(raw json.RawMessage) []byte {
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return []byte(s)
	}
	return append([]byte(nil), raw...)
}
