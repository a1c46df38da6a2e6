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

package pipeline

import (
	"fmt"

	"docflow/pkg/config"
)

// StageDefinition 单个 Stage 的静态定义；加载后不可变
type StageDefinition struct {
	Name         string
	Next         string // 空表示链尾
	DisplayIndex int    // 仅 UI 展示用，不参与控制流
}

// Graph 已加载并校验的 Stage 单链；无锁并发读
type Graph struct {
	stages map[string]StageDefinition
	order  []string
	first  string
}

// Load 从配置加载 Stage 链并校验：名称唯一、next 指向存在的 Stage、
// 全部 Stage 构成一条单链（唯一链头、无分支、无环）。任何违规返回错误，
// 调用方应视为致命（没有合法 Stage 链任何 Job 都无法运行）。
func Load(cfg config.PipelineConfig) (*Graph, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("pipeline: stage 定义为空")
	}

	stages := make(map[string]StageDefinition, len(cfg.Stages))
	referenced := make(map[string]string, len(cfg.Stages)) // next -> 引用它的 stage
	for _, sc := range cfg.Stages {
		if sc.Name == "" {
			return nil, fmt.Errorf("pipeline: 存在未命名 stage")
		}
		if _, dup := stages[sc.Name]; dup {
			return nil, fmt.Errorf("pipeline: stage 名称重复: %s", sc.Name)
		}
		stages[sc.Name] = StageDefinition{
			Name:         sc.Name,
			Next:         sc.Next,
			DisplayIndex: sc.DisplayIndex,
		}
	}
	for name, def := range stages {
		if def.Next == "" {
			continue
		}
		if _, ok := stages[def.Next]; !ok {
			return nil, fmt.Errorf("pipeline: stage %s 的 next 指向未定义 stage: %s", name, def.Next)
		}
		if prev, dup := referenced[def.Next]; dup {
			return nil, fmt.Errorf("pipeline: stage %s 被 %s 与 %s 同时指向（出现分支）", def.Next, prev, name)
		}
		referenced[def.Next] = name
	}

	// 唯一链头：未被任何 next 引用的 stage
	first := ""
	for name := range stages {
		if _, ok := referenced[name]; !ok {
			if first != "" {
				return nil, fmt.Errorf("pipeline: 存在多个链头: %s 与 %s", first, name)
			}
			first = name
		}
	}
	if first == "" {
		return nil, fmt.Errorf("pipeline: 不存在链头（有环）")
	}

	// 沿链走一遍；若无法覆盖全部 stage 则存在环或孤立子链
	order := make([]string, 0, len(stages))
	for cur := first; cur != ""; cur = stages[cur].Next {
		order = append(order, cur)
		if len(order) > len(stages) {
			return nil, fmt.Errorf("pipeline: stage 链存在环")
		}
	}
	if len(order) != len(stages) {
		return nil, fmt.Errorf("pipeline: stage 链不连通（%d/%d 可达）", len(order), len(stages))
	}

	return &Graph{stages: stages, order: order, first: first}, nil
}

// FirstStage 返回链头 Stage 名
func (g *Graph) FirstStage() string {
	return g.first
}

// NextStage 返回 name 的下一个 Stage；链尾或未知 Stage 返回 ""，ok 区分两者
func (g *Graph) NextStage(name string) (next string, ok bool) {
	def, ok := g.stages[name]
	if !ok {
		return "", false
	}
	return def.Next, true
}

// IndexOf 返回 name 在链中的位置（0 起）；未知 Stage 返回 -1
func (g *Graph) IndexOf(name string) int {
	for i, n := range g.order {
		if n == name {
			return i
		}
	}
	return -1
}

// Contains 判断 Stage 是否存在
func (g *Graph) Contains(name string) bool {
	_, ok := g.stages[name]
	return ok
}

// Stages 按链序返回全部 Stage 定义
func (g *Graph) Stages() []StageDefinition {
	out := make([]StageDefinition, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.stages[name])
	}
	return out
}

// Len 返回 Stage 数量
func (g *Graph) Len() int {
	return len(g.order)
}
