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

package broker

import (
	"time"

	"github.com/google/uuid"
)

// Topic 事件主题；主题内 FIFO 为尽力而为，正确性由 Orchestrator 的 CAS 保证
type Topic string

const (
	// TopicStageStart Orchestrator -> 队列分发：某 Job 进入某 Stage
	TopicStageStart Topic = "stage.start"
	// TopicStageCompleted Worker -> Orchestrator：Stage 执行成功
	TopicStageCompleted Topic = "stage.completed"
	// TopicStageFailed Worker -> Orchestrator：Stage 执行失败（含超时）
	TopicStageFailed Topic = "stage.failed"
	// TopicToolRequest Worker -> Orchestrator：Stage 挂起等待外部工具
	TopicToolRequest Topic = "tool.request"
)

// Event 跨进程投递的事件；至少一次投递，消费侧需可去重
type Event struct {
	ID        string         `json:"id"`
	JobID     string         `json:"job_id"`
	Stage     string         `json:"stage,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"` // 任务载荷（已合并先前结果）
	Result    map[string]any `json:"result,omitempty"`  // stage.completed 的结果片段
	Error     string         `json:"error,omitempty"`   // stage.failed 的失败原因
	Tool      *ToolCall      `json:"tool,omitempty"`    // tool.request 的调用描述
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCall 工具调用描述（tool.request 事件携带）
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// NewEvent 创建事件并填充 ID 与时间戳
func NewEvent(jobID, stage string) Event {
	return Event{
		ID:        "ev-" + uuid.New().String(),
		JobID:     jobID,
		Stage:     stage,
		CreatedAt: time.Now(),
	}
}
