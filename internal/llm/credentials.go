package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/r3d91ll/innercritic/internal/storage"
)

// APIKeyStorageKey is where a user-provided key is persisted.
const APIKeyStorageKey = "openrouter-api-key"

// DefaultKeyEnv lists the environment variables checked for a key, in order.
var DefaultKeyEnv = []string{"OPENROUTER_API_KEY", "VITE_OPENROUTER_API_KEY"}

// CredentialSource resolves the API key. It is asked once per request and
// its answer is never cached by the client. Implementations return
// ErrNoCredential when they have no key.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a fixed key. An empty StaticKey resolves to ErrNoCredential.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	if strings.TrimSpace(string(k)) == "" {
		return "", ErrNoCredential
	}
	return string(k), nil
}

// EnvKey reads the first non-empty variable from Names.
type EnvKey struct {
	Names []string
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (e EnvKey) APIKey(context.Context) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range e.Names {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", ErrNoCredential
}

// StoredKey reads a user-provided key from local storage.
type StoredKey struct {
	Store storage.KV
}

func (s StoredKey) APIKey(ctx context.Context) (string, error) {
	raw, err := s.Store.Get(ctx, APIKeyStorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to read stored API key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

// Set persists key. An empty key removes the stored key.
func (s StoredKey) Set(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		err := s.Store.Delete(ctx, APIKeyStorageKey)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.Store.Put(ctx, APIKeyStorageKey, []byte(key))
}

// Chain tries each source in order and returns the first key found.
type Chain []CredentialSource

func (c Chain) APIKey(ctx context.Context) (string, error) {
	for _, src := range c {
		key, err := src.APIKey(ctx)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrNoCredential) {
			return "", err
		}
	}
	return "", ErrNoCredential
}

// KeySource names where a key was resolved from, for status displays.
type KeySource string

const (
	KeySourceNone   KeySource = "none"
	KeySourceEnv    KeySource = "environment"
	KeySourceStored KeySource = "stored"
)

// DefaultCredentials resolves the environment first, then local storage.
func DefaultCredentials(store storage.KV) Chain {
	return Chain{EnvKey{Names: DefaultKeyEnv}, StoredKey{Store: store}}
}

// ResolveSource reports which source of the default chain currently
// provides a key, without returning the key itself.
func ResolveSource(ctx context.Context, env EnvKey, stored StoredKey) KeySource {
	if _, err := env.APIKey(ctx); err == nil {
		return KeySourceEnv
	}
	if _, err := stored.APIKey(ctx); err == nil {
		return KeySourceStored
	}
	return KeySourceNone
}
