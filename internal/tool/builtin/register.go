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
	"docflow/internal/tool"
	"docflow/internal/tool/registry"
	"docflow/pkg/config"
	"docflow/pkg/secrets"
)

// RegisterBuiltin 将内置工具注册到 Registry；lookup 端点取自工具配置
func RegisterBuiltin(reg *registry.Registry, cfg config.ToolsConfig, store secrets.Store) {
	if reg == nil {
		return
	}
	reg.Register(NewHTTPTool())
	if ep, ok := cfg.Endpoints["registry.lookup"]; ok && ep.URL != "" {
		reg.Register(NewLookupTool(ep.URL, store))
	}
}

// RegisterTools 仅注册传入的工具（测试或最小装配）
func RegisterTools(reg *registry.Registry, tools ...tool.Tool) {
	if reg == nil {
		return
	}
	for _, t := range tools {
		reg.Register(t)
	}
}
