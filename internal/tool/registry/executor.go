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

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"docflow/pkg/config"
	"docflow/pkg/log"
)

const defaultToolTimeout = 30 * time.Second

// Executor 带限流与超时的工具执行入口；Orchestrator 经由它调用工具。
// 限流按工具名独立，保护外部端点不被重试风暴打穿
type Executor struct {
	reg    *Registry
	cfg    config.ToolsConfig
	logger *log.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewExecutor 创建 Executor
func NewExecutor(reg *Registry, cfg config.ToolsConfig, logger *log.Logger) *Executor {
	return &Executor{
		reg:      reg,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Invoke 按名称执行工具；限流等待与执行共用超时预算
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := e.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("未注册的工具: %s", name)
	}

	timeout := defaultToolTimeout
	if ep, ok := e.cfg.Endpoints[name]; ok && ep.Timeout != "" {
		timeout = config.ParseDuration(ep.Timeout, timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if limiter := e.limiter(name); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("工具 %s 限流等待超时: %w", name, err)
		}
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("工具 %s: %w", name, err)
	}
	return result, nil
}

// limiter 返回工具的限流器；未配置 QPS 的工具不限流
func (e *Executor) limiter(name string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.limiters[name]; ok {
		return l
	}
	ep, ok := e.cfg.Endpoints[name]
	if !ok || ep.QPS <= 0 {
		return nil
	}
	burst := ep.Burst
	if burst <= 0 {
		burst = 1
	}
	l := rate.NewLimiter(rate.Limit(ep.QPS), burst)
	e.limiters[name] = l
	return l
}
