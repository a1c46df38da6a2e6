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
	"context"
	"time"

	"docflow/pkg/metrics"
)

// Handler 事件处理回调；实现需幂等安全（至少一次投递）
type Handler func(ctx context.Context, ev Event)

// Broker 发布/订阅事件总线
type Broker interface {
	// Publish 发布事件到主题
	Publish(ctx context.Context, topic Topic, ev Event) error
	// Subscribe 订阅主题；handler 在独立 goroutine 中被调用
	Subscribe(topic Topic, handler Handler) error
	// Close 关闭总线并停止投递
	Close() error
}

// PublishRetryConfig 发布重试配置；broker 不可达时有界退避重试，
// 重试耗尽后返回错误由调用方记录，Job 表现为可查询的停滞而非崩溃
type PublishRetryConfig struct {
	Retries int           // 重试次数（不含首次），<=0 默认 3
	Backoff time.Duration // 基础退避，逐次翻倍，<=0 默认 200ms
}

// retryingBroker 包装 Broker，为 Publish 提供有界退避重试
type retryingBroker struct {
	Broker
	retries int
	backoff time.Duration
}

// WithPublishRetry 包装 b，使 Publish 失败时按配置重试
func WithPublishRetry(b Broker, cfg PublishRetryConfig) Broker {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &retryingBroker{Broker: b, retries: retries, backoff: backoff}
}

func (r *retryingBroker) Publish(ctx context.Context, topic Topic, ev Event) error {
	var err error
	wait := r.backoff
	for attempt := 0; ; attempt++ {
		err = r.Broker.Publish(ctx, topic, ev)
		if err == nil {
			return nil
		}
		if attempt >= r.retries {
			return err
		}
		metrics.PublishRetryTotal.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}
