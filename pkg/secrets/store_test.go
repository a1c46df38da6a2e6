package secrets

import (
	"context"
	"testing"
)

func TestNewStore_Providers(t *testing.T) {
	// vault 需要可达的 server，这里只覆盖本地 provider
	for _, provider := range []string{"memory", "env", ""} {
		store, err := NewStore(Config{Provider: provider})
		if err != nil {
			t.Fatalf("NewStore(%q): %v", provider, err)
		}
		if store == nil {
			t.Fatalf("NewStore(%q) returned nil store", provider)
		}
	}
}

func TestMemoryAndEnvStoreBasicContract(t *testing.T) {
	ctx := context.Background()
	stores := []Store{NewMemoryStore(), NewEnvStore()}

	for _, s := range stores {
		if err := s.Set(ctx, "secret_test_key", "value"); err != nil {
			t.Fatalf("set secret failed: %v", err)
		}
		got, err := s.Get(ctx, "secret_test_key")
		if err != nil {
			t.Fatalf("get secret failed: %v", err)
		}
		if got != "value" {
			t.Fatalf("get secret = %q, want value", got)
		}
		if err := s.Delete(ctx, "secret_test_key"); err != nil {
			t.Fatalf("delete secret failed: %v", err)
		}
		_, err = s.Get(ctx, "secret_test_key")
		if err == nil {
			t.Fatalf("expected error after delete")
		}
	}
}

// TestEnvStore_KeyMapping 分层 key 折成环境变量名后可直接从环境注入
func TestEnvStore_KeyMapping(t *testing.T) {
	t.Setenv("DOCFLOW_SECRET_TOOLS_REGISTRY_LOOKUP_TOKEN", "tok-1")

	s := NewEnvStore()
	got, err := s.Get(context.Background(), "tools/registry.lookup/token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "tok-1" {
		t.Fatalf("Get = %q, want tok-1", got)
	}
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "tool/registry", "k1")
	_ = s.Set(ctx, "tool/lookup", "k2")
	_ = s.Set(ctx, "other", "k3")
	keys, err := s.List(ctx, "tool/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("List(tool/) = %v, want 2 keys", keys)
	}
}
