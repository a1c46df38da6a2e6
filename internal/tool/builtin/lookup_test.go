// Copyright 2026 fanjia1024
// Tests for registry lookup tool

package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/pkg/secrets"
)

func TestLookupTool_Name(t *testing.T) {
	tool := NewLookupTool("http://example.com", nil)
	assert.Equal(t, "registry.lookup", tool.Name())
}

func TestLookupTool_MissingID(t *testing.T) {
	tool := NewLookupTool("http://example.com", nil)
	_, err := tool.Execute(context.Background(), map[string]any{})
	require.Error(t, err)
}

func TestLookupTool_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entities/42", r.URL.Path)
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"42","name":"ACME Ltda"}`))
	}))
	defer srv.Close()

	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "tools/registry.lookup/token", "tok-abc"))

	tool := NewLookupTool(srv.URL, store)
	result, err := tool.Execute(context.Background(), map[string]any{"id": "42"})
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ACME Ltda", out["name"])
}

func TestLookupTool_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool := NewLookupTool(srv.URL, nil)
	_, err := tool.Execute(context.Background(), map[string]any{"id": "99"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
