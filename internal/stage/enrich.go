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

package stage

import (
	"context"
)

// EnrichHandler 增强 Stage：文档提到主体登记编号时，
// 经工具子协议查询外部登记库并把主体信息并入结果。
// 首次执行抛 ToolRequest 挂起；恢复执行时从载荷取工具结果。
// 没有登记编号的文档原样放行
type EnrichHandler struct{}

// NewEnrichHandler 创建增强 Handler
func NewEnrichHandler() *EnrichHandler { return &EnrichHandler{} }

// Execute 实现 Handler
func (h *EnrichHandler) Execute(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if result, ok := ToolResultFromPayload(payload); ok {
		return map[string]any{
			"enriched": true,
			"entity":   result,
		}, nil
	}

	entityID, _ := payload["entity_id"].(string)
	if entityID == "" {
		return map[string]any{"enriched": false}, nil
	}
	return nil, &ToolRequest{
		Tool: "registry.lookup",
		Args: map[string]any{"id": entityID},
	}
}
