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

package jobstore

import (
	"time"

	"docflow/internal/pipeline"
)

// Status Job 整体状态
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StageState 单个 Stage 的状态
type StageState string

const (
	StagePending    StageState = "pending"
	StageInProgress StageState = "in-progress"
	StageCompleted  StageState = "completed"
	StageFailed     StageState = "failed"
)

// StageStatus Job 的 pipeline 列表项；顺序与 Stage 链一致
type StageStatus struct {
	Name  string     `json:"name"`
	State StageState `json:"state"`
	Info  string     `json:"info,omitempty"`
}

// Job 一次流水线运行的共享记录；全部写入经由 Orchestrator 的原子更新，
// 任意时刻至多一个 Stage 处于 in-progress
type Job struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	Pipeline    []StageStatus  `json:"pipeline"`
	Result      map[string]any `json:"result"`
	Error       string         `json:"error,omitempty"`
	PendingTool string         `json:"pending_tool,omitempty"` // 非空表示该 Job 有未完成的工具调用
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// New 按 Stage 链创建 queued 状态的 Job 记录
func New(id string, defs []pipeline.StageDefinition) *Job {
	stages := make([]StageStatus, 0, len(defs))
	for _, def := range defs {
		stages = append(stages, StageStatus{Name: def.Name, State: StagePending})
	}
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Pipeline:  stages,
		Result:    make(map[string]any),
		CreatedAt: time.Now(),
	}
}

// Stage 返回指定名称的 StageStatus 指针；不存在返回 nil
func (j *Job) Stage(name string) *StageStatus {
	for i := range j.Pipeline {
		if j.Pipeline[i].Name == name {
			return &j.Pipeline[i]
		}
	}
	return nil
}

// Terminal 判断 Job 是否已到终态
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// MergeResult 合并结果片段；同名字段后写覆盖先写（后续 Stage 修正先前估值）
func (j *Job) MergeResult(fragment map[string]any) {
	if j.Result == nil {
		j.Result = make(map[string]any, len(fragment))
	}
	for k, v := range fragment {
		j.Result[k] = v
	}
}

// Clone 深拷贝 Job（Result 浅一层按键复制，值视为只读）
func (j *Job) Clone() *Job {
	cp := *j
	cp.Pipeline = make([]StageStatus, len(j.Pipeline))
	copy(cp.Pipeline, j.Pipeline)
	cp.Result = make(map[string]any, len(j.Result))
	for k, v := range j.Result {
		cp.Result[k] = v
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
