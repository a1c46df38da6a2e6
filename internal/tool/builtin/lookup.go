// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"docflow/internal/tool"
	"docflow/pkg/secrets"
)

// secretKeyLookupToken lookup 工具调用外部登记库时使用的凭证键
const secretKeyLookupToken = "tools/registry.lookup/token"

// LookupTool 实现 registry.lookup：按编号查询外部主体登记库，
// 增强 Stage 用它补全文档中识别出的主体信息
type LookupTool struct {
	client  *resty.Client
	baseURL string
	secrets secrets.Store
}

// NewLookupTool 创建 registry.lookup 工具；secrets 可为 nil（匿名访问）
func NewLookupTool(baseURL string, store secrets.Store) *LookupTool {
	return &LookupTool{
		client:  resty.New(),
		baseURL: baseURL,
		secrets: store,
	}
}

// Name 实现 tool.Tool
func (t *LookupTool) Name() string { return "registry.lookup" }

// Description 实现 tool.Tool
func (t *LookupTool) Description() string {
	return "按登记编号查询外部主体登记库，返回主体的登记信息。"
}

// Schema 实现 tool.Tool
func (t *LookupTool) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "登记库查询参数",
		Properties: map[string]tool.SchemaProperty{
			"id": {Type: "string", Description: "登记编号"},
		},
		Required: []string{"id"},
	}
}

// Execute 实现 tool.Tool
func (t *LookupTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return nil, errors.New("id 不能为空")
	}
	if t.baseURL == "" {
		return nil, errors.New("registry.lookup 未配置端点")
	}

	req := t.client.R().SetContext(ctx).SetPathParam("id", id)
	if t.secrets != nil {
		if token, err := t.secrets.Get(ctx, secretKeyLookupToken); err == nil && token != "" {
			req.SetAuthToken(token)
		}
	}

	var out map[string]any
	resp, err := req.SetResult(&out).Get(t.baseURL + "/entities/{id}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("登记库返回 %d", resp.StatusCode())
	}
	return out, nil
}
