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

package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrClosed 队列已关闭
var ErrClosed = errors.New("queue: closed")

// Task 投入 Stage 队列的任务消息；入队到取出归队列所有，
// 取出后归 Worker 所有，Worker 发布完成/失败事件后即丢弃
type Task struct {
	ID      string         `json:"id"`
	JobID   string         `json:"job_id"`
	Stage   string         `json:"stage"`
	Payload map[string]any `json:"payload"` // 原始提交数据 ∪ 先前各 Stage 结果片段
}

// NewTask 创建任务消息
func NewTask(jobID, stageName string, payload map[string]any) Task {
	return Task{
		ID:      "task-" + uuid.New().String(),
		JobID:   jobID,
		Stage:   stageName,
		Payload: payload,
	}
}

// Queue 按 Stage 名隔离的任务队列。每个 Stage 一条队列：
// 背压与并发按 Stage 独立调节，慢 Stage 不拖垮快 Stage。
// Dequeue 阻塞到有任务、ctx 取消或队列关闭。
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context, stageName string) (*Task, error)
	Close() error
}
