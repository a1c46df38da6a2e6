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

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"docflow/internal/broker"
	"docflow/internal/jobstore"
	"docflow/internal/stage"
	"docflow/pkg/metrics"
)

// onToolRequest 工具挂起/恢复子协议。Stage 保持 in-progress，
// 工具结果注入载荷后同一 Stage 重新入队；每个 Job 同时至多
// 一个未完成的工具调用，重复请求被丢弃
func (o *Orchestrator) onToolRequest(ctx context.Context, ev broker.Event) {
	if ev.Tool == nil {
		o.logger.Warn("tool.request 缺少工具描述，丢弃", "job_id", ev.JobID, "stage", ev.Stage)
		return
	}

	_, err := o.store.Update(ctx, ev.JobID, func(j *jobstore.Job) error {
		if j.Terminal() {
			return jobstore.ErrTerminal
		}
		st := j.Stage(ev.Stage)
		if st == nil || st.State != jobstore.StageInProgress {
			return jobstore.ErrStageConflict
		}
		if j.PendingTool != "" {
			return jobstore.ErrStageConflict
		}
		j.PendingTool = ev.Tool.Name
		st.Info = "等待工具: " + ev.Tool.Name
		return nil
	})
	if err != nil {
		o.dropEvent(ev, "tool.request", err)
		return
	}

	if o.tools == nil {
		o.finalizeFailed(ctx, ev.JobID, ev.Stage, fmt.Sprintf("工具 %s 不可用: 工具执行未启用", ev.Tool.Name))
		return
	}

	o.logger.Info("执行工具", "job_id", ev.JobID, "stage", ev.Stage, "tool", ev.Tool.Name)
	startAt := time.Now()
	result, err := o.tools.Invoke(ctx, ev.Tool.Name, ev.Tool.Args)
	metrics.ToolDuration.WithLabelValues(ev.Tool.Name).Observe(time.Since(startAt).Seconds())
	if err != nil {
		o.finalizeFailed(ctx, ev.JobID, ev.Stage, fmt.Sprintf("工具 %s 执行失败: %v", ev.Tool.Name, err))
		return
	}

	job, err := o.store.Update(ctx, ev.JobID, func(j *jobstore.Job) error {
		if j.Terminal() {
			return jobstore.ErrTerminal
		}
		j.PendingTool = ""
		if st := j.Stage(ev.Stage); st != nil {
			st.Info = ""
		}
		return nil
	})
	if err != nil {
		o.dropEvent(ev, "tool.request", err)
		return
	}

	// 恢复执行：工具结果注入载荷，同一 Stage 重新入队
	resume := broker.NewEvent(ev.JobID, ev.Stage)
	resume.Payload = mergePayload(ev.Payload, map[string]any{
		stage.PayloadToolName:   ev.Tool.Name,
		stage.PayloadToolResult: result,
	})
	if err := o.bus.Publish(ctx, broker.TopicStageStart, resume); err != nil {
		o.logger.Error("发布恢复事件失败", "job_id", ev.JobID, "stage", ev.Stage, "error", err)
		o.finalizeFailed(ctx, ev.JobID, ev.Stage, fmt.Sprintf("工具恢复调度失败: %v", err))
		return
	}
	o.broadcast(job)
}
