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

	"docflow/internal/broker"
	"docflow/pkg/log"
)

// AttachDispatcher 订阅 stage.start 事件并转入对应 Stage 队列。
// Broker 和队列之间唯一的桥：Orchestrator 只发事件，不直接碰队列
func AttachDispatcher(bus broker.Broker, q Queue, logger *log.Logger) error {
	return bus.Subscribe(broker.TopicStageStart, func(ctx context.Context, ev broker.Event) {
		task := NewTask(ev.JobID, ev.Stage, ev.Payload)
		if err := q.Enqueue(ctx, task); err != nil {
			logger.Error("stage.start 入队失败", "job_id", ev.JobID, "stage", ev.Stage, "error", err)
			return
		}
		logger.Debug("任务已入队", "job_id", ev.JobID, "stage", ev.Stage, "task_id", task.ID)
	})
}
