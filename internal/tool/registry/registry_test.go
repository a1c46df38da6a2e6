// Copyright 2026 fanjia1024
// Tests for tool registry and executor

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/tool"
	"docflow/pkg/config"
	"docflow/pkg/log"
)

type stubTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (any, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Schema() tool.Schema { return tool.Schema{Type: "object"} }
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}

func newExecutor(t *testing.T, reg *Registry, cfg config.ToolsConfig) *Executor {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	return NewExecutor(reg, cfg, logger)
}

func TestRegistryRegisterGet(t *testing.T) {
	reg := New()
	reg.Register(&stubTool{name: "a"})
	reg.Register(&stubTool{name: "b"})

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
	assert.Len(t, reg.List(), 2)
	assert.Len(t, reg.DescribeAll(), 2)
}

func TestExecutorInvoke(t *testing.T) {
	reg := New()
	reg.Register(&stubTool{name: "echo", fn: func(ctx context.Context, args map[string]any) (any, error) {
		return args["v"], nil
	}})
	exec := newExecutor(t, reg, config.ToolsConfig{})

	result, err := exec.Invoke(context.Background(), "echo", map[string]any{"v": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestExecutorUnknownTool(t *testing.T) {
	exec := newExecutor(t, New(), config.ToolsConfig{})
	_, err := exec.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestExecutorWrapsToolError(t *testing.T) {
	reg := New()
	sentinel := errors.New("upstream down")
	reg.Register(&stubTool{name: "broken", fn: func(ctx context.Context, args map[string]any) (any, error) {
		return nil, sentinel
	}})
	exec := newExecutor(t, reg, config.ToolsConfig{})

	_, err := exec.Invoke(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "broken")
}

func TestExecutorTimeout(t *testing.T) {
	reg := New()
	reg.Register(&stubTool{name: "slow", fn: func(ctx context.Context, args map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	cfg := config.ToolsConfig{Endpoints: map[string]config.ToolEndpointConfig{
		"slow": {Timeout: "30ms"},
	}}
	exec := newExecutor(t, reg, cfg)

	start := time.Now()
	_, err := exec.Invoke(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecutorRateLimit(t *testing.T) {
	reg := New()
	reg.Register(&stubTool{name: "fast", fn: func(ctx context.Context, args map[string]any) (any, error) {
		return "ok", nil
	}})
	cfg := config.ToolsConfig{Endpoints: map[string]config.ToolEndpointConfig{
		"fast": {QPS: 20, Burst: 1},
	}}
	exec := newExecutor(t, reg, cfg)

	// burst 1 + 20 QPS：第三次调用至少要等 ~100ms
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := exec.Invoke(context.Background(), "fast", nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
