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

// Package orchestrator 维护 Job 生命周期：创建、Stage 间推进、失败终结、
// 工具挂起/恢复。事件按至少一次到达，推进的精确一次由 Job Store 的
// CAS 式原子更新保证：状态前置条件不成立的事件一律丢弃。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docflow/internal/broker"
	"docflow/internal/jobstore"
	"docflow/internal/pipeline"
	"docflow/pkg/log"
	"docflow/pkg/metrics"
)

// errStageNotInGraph 事件里的 Stage 不在当前流水线定义中（定义与 Job 记录脱节），
// 该 Job 直接终结为 failed
var errStageNotInGraph = errors.New("orchestrator: stage 不在流水线定义中")

// Notifier Job 快照推送方；每次落库成功后调用。实现见 internal/notifier
type Notifier interface {
	Broadcast(job *jobstore.Job)
}

// ToolInvoker 外部工具执行方；实现见 internal/tool
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// Orchestrator 流水线编排器。自身不执行 Stage 逻辑，
// 只对事件做状态机推进并发布下一步指令
type Orchestrator struct {
	graph    *pipeline.Graph
	store    jobstore.Store
	bus      broker.Broker
	tools    ToolInvoker
	notifier Notifier
	logger   *log.Logger
}

// New 创建 Orchestrator；tools 与 notifier 可为 nil（对应能力关闭）
func New(graph *pipeline.Graph, store jobstore.Store, bus broker.Broker, tools ToolInvoker, notifier Notifier, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		graph:    graph,
		store:    store,
		bus:      bus,
		tools:    tools,
		notifier: notifier,
		logger:   logger,
	}
}

// Start 订阅 Stage 结果与工具请求事件
func (o *Orchestrator) Start() error {
	if err := o.bus.Subscribe(broker.TopicStageCompleted, o.onStageCompleted); err != nil {
		return fmt.Errorf("订阅 %s 失败: %w", broker.TopicStageCompleted, err)
	}
	if err := o.bus.Subscribe(broker.TopicStageFailed, o.onStageFailed); err != nil {
		return fmt.Errorf("订阅 %s 失败: %w", broker.TopicStageFailed, err)
	}
	if err := o.bus.Subscribe(broker.TopicToolRequest, o.onToolRequest); err != nil {
		return fmt.Errorf("订阅 %s 失败: %w", broker.TopicToolRequest, err)
	}
	return nil
}

// Submit 创建 Job 并调度首个 Stage；返回创建后的 Job 快照
func (o *Orchestrator) Submit(ctx context.Context, payload map[string]any) (*jobstore.Job, error) {
	if o.graph.Len() == 0 {
		return nil, errors.New("orchestrator: stage 链为空")
	}
	job := jobstore.New("job-"+uuid.New().String(), o.graph.Stages())
	if err := o.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("创建 job 记录失败: %w", err)
	}

	first := o.graph.FirstStage()
	job, err := o.store.Update(ctx, job.ID, func(j *jobstore.Job) error {
		j.Status = jobstore.StatusProcessing
		j.Stage(first).State = jobstore.StageInProgress
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("标记首 stage 失败: %w", err)
	}

	ev := broker.NewEvent(job.ID, first)
	ev.Payload = payload
	if err := o.bus.Publish(ctx, broker.TopicStageStart, ev); err != nil {
		// 调度不出去就直接终结，避免 Job 永挂 processing
		o.finalizeFailed(ctx, job.ID, first, fmt.Sprintf("调度失败: %v", err))
		return nil, fmt.Errorf("发布 stage.start 失败: %w", err)
	}

	o.logger.Info("job 已提交", "job_id", job.ID, "first_stage", first)
	o.broadcast(job)
	return job, nil
}

// Get 返回 Job 快照
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*jobstore.Job, error) {
	return o.store.Get(ctx, jobID)
}

// onStageCompleted Stage 成功：合并结果并精确一次地推进到下一 Stage。
// 前置条件（该 Stage 处于 in-progress）在原子更新内校验，
// 重复投递的完成事件会因条件不成立被丢弃
func (o *Orchestrator) onStageCompleted(ctx context.Context, ev broker.Event) {
	var next string
	job, err := o.store.Update(ctx, ev.JobID, func(j *jobstore.Job) error {
		if j.Terminal() {
			return jobstore.ErrTerminal
		}
		st := j.Stage(ev.Stage)
		if st == nil {
			return fmt.Errorf("%w: 未知 stage %s", jobstore.ErrStageConflict, ev.Stage)
		}
		if st.State != jobstore.StageInProgress {
			return jobstore.ErrStageConflict
		}
		st.State = jobstore.StageCompleted
		st.Info = ""
		j.MergeResult(ev.Result)

		var ok bool
		next, ok = o.graph.NextStage(ev.Stage)
		if !ok {
			return errStageNotInGraph
		}
		if next != "" {
			ns := j.Stage(next)
			if ns == nil {
				return errStageNotInGraph
			}
			ns.State = jobstore.StageInProgress
		} else {
			// 链尾：NextStage 对已知 Stage 返回 ok=true、next 为空
			now := time.Now()
			j.Status = jobstore.StatusCompleted
			j.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errStageNotInGraph) {
			o.finalizeFailed(ctx, ev.JobID, ev.Stage, fmt.Sprintf("stage %s 不在流水线定义中", ev.Stage))
			return
		}
		o.dropEvent(ev, "stage.completed", err)
		return
	}

	if next != "" {
		startEv := broker.NewEvent(ev.JobID, next)
		startEv.Payload = mergePayload(ev.Payload, ev.Result)
		if err := o.bus.Publish(ctx, broker.TopicStageStart, startEv); err != nil {
			o.logger.Error("发布 stage.start 失败", "job_id", ev.JobID, "stage", next, "error", err)
			o.finalizeFailed(ctx, ev.JobID, next, fmt.Sprintf("调度失败: %v", err))
			return
		}
		o.logger.Info("stage 推进", "job_id", ev.JobID, "from", ev.Stage, "to", next)
	} else {
		metrics.JobTotal.WithLabelValues(string(jobstore.StatusCompleted)).Inc()
		metrics.JobDuration.Observe(time.Since(job.CreatedAt).Seconds())
		o.logger.Info("job 完成", "job_id", ev.JobID, "last_stage", ev.Stage)
	}
	o.broadcast(job)
}

// onStageFailed Stage 失败：整个 Job 终结为 failed。终态只落一次，
// 重复失败事件与完成后迟到的失败事件都会被丢弃
func (o *Orchestrator) onStageFailed(ctx context.Context, ev broker.Event) {
	job, err := o.store.Update(ctx, ev.JobID, func(j *jobstore.Job) error {
		if j.Terminal() {
			return jobstore.ErrTerminal
		}
		st := j.Stage(ev.Stage)
		if st == nil {
			return fmt.Errorf("%w: 未知 stage %s", jobstore.ErrStageConflict, ev.Stage)
		}
		if st.State != jobstore.StageInProgress {
			return jobstore.ErrStageConflict
		}
		now := time.Now()
		st.State = jobstore.StageFailed
		st.Info = ev.Error
		j.Status = jobstore.StatusFailed
		j.Error = ev.Error
		j.PendingTool = ""
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		o.dropEvent(ev, "stage.failed", err)
		return
	}

	metrics.JobTotal.WithLabelValues(string(jobstore.StatusFailed)).Inc()
	o.logger.Warn("job 失败", "job_id", ev.JobID, "stage", ev.Stage, "error", ev.Error)
	o.broadcast(job)
}

// finalizeFailed 编排侧主动终结（调度失败、工具执行失败等）
func (o *Orchestrator) finalizeFailed(ctx context.Context, jobID, stageName, reason string) {
	job, err := o.store.Update(ctx, jobID, func(j *jobstore.Job) error {
		if j.Terminal() {
			return jobstore.ErrTerminal
		}
		now := time.Now()
		if st := j.Stage(stageName); st != nil {
			st.State = jobstore.StageFailed
			st.Info = reason
		}
		j.Status = jobstore.StatusFailed
		j.Error = reason
		j.PendingTool = ""
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		o.logger.Warn("终结 job 失败", "job_id", jobID, "error", err)
		return
	}
	metrics.JobTotal.WithLabelValues(string(jobstore.StatusFailed)).Inc()
	o.broadcast(job)
}

// dropEvent 丢弃前置条件不成立的事件；这是至少一次投递下的预期路径
func (o *Orchestrator) dropEvent(ev broker.Event, topic string, err error) {
	if errors.Is(err, jobstore.ErrStageConflict) || errors.Is(err, jobstore.ErrTerminal) {
		o.logger.Debug("丢弃重复/迟到事件", "topic", topic, "job_id", ev.JobID, "stage", ev.Stage, "reason", err)
		return
	}
	if errors.Is(err, jobstore.ErrNotFound) {
		o.logger.Warn("事件指向未知 job，丢弃", "topic", topic, "job_id", ev.JobID, "stage", ev.Stage)
		return
	}
	o.logger.Error("处理事件失败", "topic", topic, "job_id", ev.JobID, "stage", ev.Stage, "error", err)
}

func (o *Orchestrator) broadcast(job *jobstore.Job) {
	if o.notifier != nil && job != nil {
		o.notifier.Broadcast(job)
	}
}

// mergePayload 下一 Stage 的载荷 = 当前载荷 ∪ 当前结果片段（同键结果覆盖）
func mergePayload(payload, result map[string]any) map[string]any {
	merged := make(map[string]any, len(payload)+len(result))
	for k, v := range payload {
		merged[k] = v
	}
	for k, v := range result {
		merged[k] = v
	}
	return merged
}
