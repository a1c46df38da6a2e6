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

package app

import (
	"context"
	"fmt"

	"docflow/internal/broker"
	"docflow/internal/jobstore"
	"docflow/internal/pipeline"
	"docflow/internal/queue"
	"docflow/pkg/config"
	"docflow/pkg/log"
	"docflow/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 worker 复用，避免在 cmd 内写业务装配
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Graph   *pipeline.Graph
	Store   jobstore.Store
	Bus     broker.Broker
	Queue   queue.Queue
	Secrets secrets.Store
}

// NewBootstrap 根据配置创建 Bootstrap（日志/Stage 链/存储/总线/队列）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("配置为空")
	}

	graph, err := pipeline.Load(cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("加载 Stage 链failed: %w", err)
	}

	bus, err := newBroker(ctx, cfg.Broker, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化事件总线failed: %w", err)
	}
	bus = broker.WithPublishRetry(bus, broker.PublishRetryConfig{
		Retries: cfg.Broker.PublishRetries,
		Backoff: config.ParseDuration(cfg.Broker.PublishBackoff, 0),
	})

	store, err := newJobStore(ctx, cfg.JobStore)
	if err != nil {
		return nil, fmt.Errorf("初始化 Job 存储failed: %w", err)
	}

	q, err := newQueue(ctx, cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("初始化 Stage 队列failed: %w", err)
	}

	sec, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Config:   cfg.Secrets.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 Secret 存储failed: %w", err)
	}

	return &Bootstrap{
		Config:  cfg,
		Logger:  logger,
		Graph:   graph,
		Store:   store,
		Bus:     bus,
		Queue:   q,
		Secrets: sec,
	}, nil
}

// Close 释放底层连接
// Close 先停 Bus 再停 Queue：事件停了才不会再有新任务要入队
func (b *Bootstrap) Close() {
	if b.Bus != nil {
		b.Bus.Close()
	}
	if b.Queue != nil {
		b.Queue.Close()
	}
	if b.Store != nil {
		b.Store.Close()
	}
}

func newBroker(ctx context.Context, cfg config.BrokerConfig, logger *log.Logger) (broker.Broker, error) {
	switch cfg.Type {
	case "redis":
		return broker.NewRedis(ctx, cfg, logger)
	case "", "memory":
		return broker.NewMemory(), nil
	default:
		return nil, fmt.Errorf("未知的 broker 类型: %s", cfg.Type)
	}
}

func newJobStore(ctx context.Context, cfg config.JobStoreConfig) (jobstore.Store, error) {
	switch cfg.Type {
	case "redis":
		return jobstore.NewRedis(ctx, cfg)
	case "", "memory":
		return jobstore.NewMemory(config.ParseDuration(cfg.TTL, jobstore.DefaultTTL)), nil
	default:
		return nil, fmt.Errorf("未知的 jobstore 类型: %s", cfg.Type)
	}
}

func newQueue(ctx context.Context, cfg config.QueueConfig) (queue.Queue, error) {
	switch cfg.Type {
	case "redis":
		return queue.NewRedis(ctx, cfg)
	case "postgres":
		return queue.NewPg(ctx, cfg.DSN)
	case "", "memory":
		return queue.NewMemory(), nil
	default:
		return nil, fmt.Errorf("未知的 queue 类型: %s", cfg.Type)
	}
}
