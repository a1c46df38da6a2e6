// Copyright 2026 fanjia1024
// 环境变量 Secret Store

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// envPrefix 环境变量前缀；key 中的非字母数字统一折成下划线，
// 如 tools/registry.lookup/token -> DOCFLOW_SECRET_TOOLS_REGISTRY_LOOKUP_TOKEN
const envPrefix = "DOCFLOW_SECRET_"

type envStore struct{}

// NewEnvStore 创建环境变量 Secret Store（容器部署的默认选择）
func NewEnvStore() Store {
	return &envStore{}
}

func envKey(key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return envPrefix + mapped
}

func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	value := os.Getenv(envKey(key))
	if value == "" {
		return "", fmt.Errorf("secret 未设置: %s（环境变量 %s）", key, envKey(key))
	}
	return value, nil
}

func (e *envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(envKey(key), value)
}

func (e *envStore) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(envKey(key))
}

// List 返回匹配前缀的环境变量名（已折成变量名形式，不还原原始 key）
func (e *envStore) List(ctx context.Context, prefix string) ([]string, error) {
	want := envKey(prefix)
	var keys []string
	for _, env := range os.Environ() {
		name, _, ok := strings.Cut(env, "=")
		if ok && strings.HasPrefix(name, want) {
			keys = append(keys, name)
		}
	}
	return keys, nil
}
