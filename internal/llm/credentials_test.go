package llm

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/r3d91ll/innercritic/internal/storage"
)

func envFrom(m map[string]string) EnvKey {
	return EnvKey{
		Names: DefaultKeyEnv,
		Lookup: func(name string) (string, bool) {
			v, ok := m[name]
			return v, ok
		},
	}
}

func TestEnvKeyOrder(t *testing.T) {
	ctx := context.Background()

	key, err := envFrom(map[string]string{
		"OPENROUTER_API_KEY":      " sk-primary ",
		"VITE_OPENROUTER_API_KEY": "sk-secondary",
	}).APIKey(ctx)
	if err != nil || key != "sk-primary" {
		t.Errorf("Expected trimmed primary key, got %q (%v)", key, err)
	}

	key, _ = envFrom(map[string]string{
		"OPENROUTER_API_KEY":      "",
		"VITE_OPENROUTER_API_KEY": "sk-secondary",
	}).APIKey(ctx)
	if key != "sk-secondary" {
		t.Errorf("Expected fallback variable, got %q", key)
	}

	if _, err := envFrom(nil).APIKey(ctx); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Expected ErrNoCredential, got %v", err)
	}
}

func TestStoredKeyAndChain(t *testing.T) {
	ctx := context.Background()
	kv, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	stored := StoredKey{Store: kv}
	env := envFrom(nil)
	chain := Chain{env, stored}

	if _, err := chain.APIKey(ctx); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Expected ErrNoCredential from empty chain, got %v", err)
	}
	if src := ResolveSource(ctx, env, stored); src != KeySourceNone {
		t.Errorf("Expected no source, got %s", src)
	}

	if err := stored.Set(ctx, "sk-stored"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	key, err := chain.APIKey(ctx)
	if err != nil || key != "sk-stored" {
		t.Errorf("Expected stored key, got %q (%v)", key, err)
	}
	if src := ResolveSource(ctx, env, stored); src != KeySourceStored {
		t.Errorf("Expected stored source, got %s", src)
	}

	withEnv := envFrom(map[string]string{"OPENROUTER_API_KEY": "sk-env"})
	key, _ = Chain{withEnv, stored}.APIKey(ctx)
	if key != "sk-env" {
		t.Errorf("Environment should win over storage, got %q", key)
	}

	if err := stored.Set(ctx, ""); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	if _, err := stored.APIKey(ctx); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Expected key to be cleared, got %v", err)
	}
	if err := stored.Set(ctx, ""); err != nil {
		t.Errorf("Clearing twice should be a no-op, got %v", err)
	}
}
