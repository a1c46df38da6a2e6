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
	"fmt"
	"sync"
	"time"

	"docflow/internal/broker"
	"docflow/internal/stage"
	"docflow/pkg/config"
	"docflow/pkg/log"
	"docflow/pkg/metrics"
	"docflow/pkg/utils"
)

// ErrTimeout Stage Handler 超时；转为 stage.failed 事件上报，
// 避免 Job 永久停在 in-progress
var ErrTimeout = errors.New("queue: stage handler timeout")

// PoolConfig 单个 Stage 的 Worker 池配置
type PoolConfig struct {
	Stage       string
	Concurrency int           // <=0 为 1
	Timeout     time.Duration // <=0 不限时
	RetryCount  int           // Handler 失败重试次数（不含首次）；超时与工具请求不重试
	RetryDelay  time.Duration
}

// Pool 单个 Stage 的 Worker 池：从队列拉取任务、调用 Handler、
// 通过 Broker 发布 stage.completed / stage.failed / tool.request。
// Worker 不了解 Stage 链，纯粹是 Stage 局部执行器。
type Pool struct {
	cfg     PoolConfig
	queue   Queue
	handler stage.Handler
	bus     broker.Broker
	logger  *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool 创建 Worker 池
func NewPool(cfg PoolConfig, q Queue, h stage.Handler, bus broker.Broker, logger *log.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Pool{cfg: cfg, queue: q, handler: h, bus: bus, logger: logger}
}

// Start 启动 Concurrency 个消费 goroutine
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(ctx)
		}()
	}
	p.logger.Info("stage worker 池已启动",
		"stage", p.cfg.Stage, "concurrency", p.cfg.Concurrency, "timeout", p.cfg.Timeout)
}

// Stop 停止拉取并等待在途任务结束
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context) {
	for {
		task, err := p.queue.Dequeue(ctx, p.cfg.Stage)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
				return
			}
			p.logger.Warn("出队失败，稍后重试", "stage", p.cfg.Stage, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		p.process(ctx, task)
	}
}

// process 执行单条任务并发布对应事件
func (p *Pool) process(ctx context.Context, task *Task) {
	metrics.WorkerBusy.WithLabelValues(p.cfg.Stage).Inc()
	defer metrics.WorkerBusy.WithLabelValues(p.cfg.Stage).Dec()

	startAt := time.Now()
	result, err := p.run(ctx, task)
	metrics.StageDuration.WithLabelValues(p.cfg.Stage).Observe(time.Since(startAt).Seconds())

	// 事件发布不复用执行 ctx：池停止时在途任务的结果仍需上报
	pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var toolReq *stage.ToolRequest
	switch {
	case errors.As(err, &toolReq):
		ev := broker.NewEvent(task.JobID, task.Stage)
		ev.Payload = task.Payload
		ev.Tool = &broker.ToolCall{Name: toolReq.Tool, Args: toolReq.Args}
		if pubErr := p.bus.Publish(pubCtx, broker.TopicToolRequest, ev); pubErr != nil {
			p.logger.Error("发布 tool.request 失败", "job_id", task.JobID, "stage", task.Stage, "error", pubErr)
		}
	case err != nil:
		reason := "handler"
		if errors.Is(err, ErrTimeout) {
			reason = "timeout"
		}
		metrics.StageFailTotal.WithLabelValues(p.cfg.Stage, reason).Inc()
		ev := broker.NewEvent(task.JobID, task.Stage)
		ev.Error = err.Error()
		if pubErr := p.bus.Publish(pubCtx, broker.TopicStageFailed, ev); pubErr != nil {
			p.logger.Error("发布 stage.failed 失败", "job_id", task.JobID, "stage", task.Stage, "error", pubErr)
		}
	default:
		ev := broker.NewEvent(task.JobID, task.Stage)
		ev.Payload = task.Payload
		ev.Result = result
		if pubErr := p.bus.Publish(pubCtx, broker.TopicStageCompleted, ev); pubErr != nil {
			p.logger.Error("发布 stage.completed 失败", "job_id", task.JobID, "stage", task.Stage, "error", pubErr)
		}
	}
}

// run 调用 Handler，带超时与有界重试；工具请求与超时直接返回不重试
func (p *Pool) run(ctx context.Context, task *Task) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.RetryDelay):
			}
		}

		execCtx := ctx
		var cancel context.CancelFunc
		if p.cfg.Timeout > 0 {
			execCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		}
		result, err := p.handler.Execute(execCtx, task.Payload)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}

		var toolReq *stage.ToolRequest
		if errors.As(err, &toolReq) {
			return nil, err
		}
		if p.cfg.Timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: stage %s 超过 %s", ErrTimeout, task.Stage, p.cfg.Timeout)
		}
		lastErr = err
		p.logger.Warn("stage handler 失败",
			"job_id", task.JobID, "stage", task.Stage, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// PoolConfigFromWorker 由 Worker 配置推导某 Stage 的池配置（Stage 级覆盖默认值）
func PoolConfigFromWorker(stageName string, wc config.WorkerConfig) PoolConfig {
	pc := PoolConfig{
		Stage:       stageName,
		Concurrency: wc.Concurrency,
		Timeout:     config.ParseDuration(wc.Timeout, 0),
		RetryCount:  wc.RetryCount,
		RetryDelay:  config.ParseDuration(wc.RetryDelay, time.Second),
	}
	sc, ok := wc.Stages[stageName]
	if !ok {
		return pc
	}
	pc.Concurrency = utils.DefaultInt(sc.Concurrency, pc.Concurrency)
	if sc.Timeout != "" {
		pc.Timeout = config.ParseDuration(sc.Timeout, pc.Timeout)
	}
	if sc.RetryCount != nil {
		pc.RetryCount = *sc.RetryCount
	}
	if sc.RetryDelay != "" {
		pc.RetryDelay = config.ParseDuration(sc.RetryDelay, pc.RetryDelay)
	}
	return pc
}
