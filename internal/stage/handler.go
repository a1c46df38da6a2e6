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
	"fmt"
	"sync"
)

// 工具恢复执行时载荷中携带的约定键；Handler 据此区分首次执行与恢复执行
const (
	// PayloadToolName 恢复执行时注入：先前请求的工具名
	PayloadToolName = "tool_name"
	// PayloadToolResult 恢复执行时注入：工具返回结果
	PayloadToolResult = "tool_result"
)

// Handler Stage 处理器接口，由各处理协作方（提取/校验/稽核/分类/增强/索引）实现。
// 队列按至少一次投递，实现必须可安全重试；精确一次只由 Orchestrator 的推进保证。
type Handler interface {
	// Execute 处理载荷并返回结果片段；需要外部工具时返回 *ToolRequest 错误挂起
	Execute(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// HandlerFunc 函数适配器
type HandlerFunc func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Execute 实现 Handler
func (f HandlerFunc) Execute(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return f(ctx, payload)
}

// ToolRequest Handler 以错误形式抛出的工具调用请求；不是失败，
// 而是同一 Stage 内的挂起/恢复信号
type ToolRequest struct {
	Tool string
	Args map[string]any
}

// Error 实现 error
func (r *ToolRequest) Error() string {
	return fmt.Sprintf("stage 挂起等待工具: %s", r.Tool)
}

// Registry Stage 名 -> Handler 的注册表；启动时装配，运行期只读
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry 创建 Handler 注册表
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register 注册 Stage Handler；重复注册后写覆盖
func (r *Registry) Register(stageName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[stageName] = h
}

// Get 按 Stage 名取 Handler
func (r *Registry) Get(stageName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[stageName]
	return h, ok
}

// Names 返回已注册的 Stage 名列表
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// ToolResultFromPayload 从恢复载荷中取出工具结果；首次执行返回 ok=false
func ToolResultFromPayload(payload map[string]any) (any, bool) {
	v, ok := payload[PayloadToolResult]
	return v, ok
}
