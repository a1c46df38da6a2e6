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

// Package worker Worker 服务装配：数据面。消费 stage.start、
// 按 Stage 并发执行 Handler、把结果事件发回总线。不做任何编排决策
package worker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"docflow/internal/app"
	"docflow/internal/queue"
	"docflow/internal/stage"
)

// App Worker 服务
type App struct {
	bootstrap *app.Bootstrap
	handlers  *stage.Registry
	pools     []*queue.Pool

	cancel context.CancelFunc
}

// New 装配 Worker 服务；默认注册六个内置 Stage Handler，
// 调用方可在 Start 前替换注册表中的实现
func New(b *app.Bootstrap) (*App, error) {
	handlers := stage.NewRegistry()
	stage.RegisterDefaults(handlers, newIndexWriter(b))

	return &App{
		bootstrap: b,
		handlers:  handlers,
	}, nil
}

// Handlers 返回 Stage Handler 注册表
func (a *App) Handlers() *stage.Registry {
	return a.handlers
}

// Start 启动分发器与各 Stage 的 Worker 池
func (a *App) Start(ctx context.Context) error {
	b := a.bootstrap
	ctx, a.cancel = context.WithCancel(ctx)

	if err := queue.AttachDispatcher(b.Bus, b.Queue, b.Logger); err != nil {
		return fmt.Errorf("挂载分发器failed: %w", err)
	}

	for _, def := range b.Graph.Stages() {
		h, ok := a.handlers.Get(def.Name)
		if !ok {
			return fmt.Errorf("stage %s 没有注册 handler", def.Name)
		}
		pool := queue.NewPool(queue.PoolConfigFromWorker(def.Name, b.Config.Worker), b.Queue, h, b.Bus, b.Logger)
		pool.Start(ctx)
		a.pools = append(a.pools, pool)
	}

	b.Logger.Info("worker 服务已启动", "stages", b.Graph.Len())
	return nil
}

// Stop 停止拉取并等待在途任务结束
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, pool := range a.pools {
		pool.Stop()
	}
	a.bootstrap.Close()
}

// newIndexWriter 索引 Stage 的落盘方；队列走 Redis 时复用同一实例，
// 否则仅统计不落盘
func newIndexWriter(b *app.Bootstrap) stage.IndexWriter {
	cfg := b.Config.Queue
	if cfg.Type != "redis" || cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return stage.NewRedisIndexWriter(client)
}
