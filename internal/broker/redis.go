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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"docflow/pkg/config"
	"docflow/pkg/log"
)

const channelPrefix = "docflow:events:"

// redisBroker 基于 Redis Pub/Sub 的事件总线；跨进程（API 与 Worker）投递。
// Pub/Sub 本身不持久化，任务的持久性由 Stage 队列与 Job Store 承担。
type redisBroker struct {
	client *redis.Client
	logger *log.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	cancel []context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedis 创建 Redis Broker 并验证连通性
func NewRedis(ctx context.Context, cfg config.BrokerConfig, logger *log.Logger) (Broker, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisBroker{client: client, logger: logger}, nil
}

func (b *redisBroker) Publish(ctx context.Context, topic Topic, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("编码事件失败: %w", err)
	}
	return b.client.Publish(ctx, channelPrefix+string(topic), data).Err()
}

func (b *redisBroker) Subscribe(topic Topic, handler Handler) error {
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.client.Subscribe(ctx, channelPrefix+string(topic))
	// 等待订阅确认，避免启动早期丢失事件
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return fmt.Errorf("订阅 %s 失败: %w", topic, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.cancel = append(b.cancel, cancel)
	b.mu.Unlock()

	ch := sub.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ch {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("丢弃无法解析的事件", "topic", topic, "error", err)
				continue
			}
			handler(ctx, ev)
		}
	}()
	return nil
}

func (b *redisBroker) Close() error {
	b.mu.Lock()
	for _, cancel := range b.cancel {
		cancel()
	}
	for _, sub := range b.subs {
		_ = sub.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
	return b.client.Close()
}
