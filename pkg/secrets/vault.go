// Copyright 2026 fanjia1024
// HashiCorp Vault Secret Store

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 接入配置
type VaultConfig struct {
	Address    string `yaml:"address"`     // Vault 地址，如 http://vault:8200
	Token      string `yaml:"token"`       // 访问 token
	PathPrefix string `yaml:"path_prefix"` // secret 路径前缀，默认 docflow
}

// vaultStore 把 key 映射为 <path_prefix>/<key> 下的单值 secret，
// 值放在 data 的 value 字段里，如 docflow/tools/registry.lookup/token
type vaultStore struct {
	client     *vault.Client
	pathPrefix string
}

// NewVaultStore 创建 Vault Secret Store；创建时即校验连通性，
// Vault 不可达直接失败而不是留到第一次取凭证
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 vault client 失败: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("vault 不可达: %w", err)
	}

	prefix := config.PathPrefix
	if prefix == "" {
		prefix = "docflow"
	}
	return &vaultStore{client: client, pathPrefix: prefix}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.path(key))
	if err != nil {
		return "", fmt.Errorf("读取 vault secret 失败: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret 未设置: %s", key)
	}
	if value, ok := secret.Data["value"].(string); ok {
		return value, nil
	}
	return "", fmt.Errorf("secret %s 缺少 value 字段", key)
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	data := map[string]interface{}{"value": value}
	if _, err := v.client.Logical().WriteWithContext(ctx, v.path(key), data); err != nil {
		return fmt.Errorf("写入 vault secret 失败: %w", err)
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	if _, err := v.client.Logical().DeleteWithContext(ctx, v.path(key)); err != nil {
		return fmt.Errorf("删除 vault secret 失败: %w", err)
	}
	return nil
}

func (v *vaultStore) List(ctx context.Context, prefix string) ([]string, error) {
	listPath := v.pathPrefix
	if prefix != "" {
		listPath = v.path(prefix)
	}
	secret, err := v.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		return nil, fmt.Errorf("列举 vault secret 失败: %w", err)
	}
	if secret == nil {
		return nil, nil
	}
	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}
	var keys []string
	for _, k := range raw {
		name, ok := k.(string)
		if !ok {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			name = prefix + "/" + name
		}
		keys = append(keys, name)
	}
	return keys, nil
}

func (v *vaultStore) path(key string) string {
	return v.pathPrefix + "/" + key
}
