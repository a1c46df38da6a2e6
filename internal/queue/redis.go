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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docflow/pkg/config"
	"docflow/pkg/metrics"
)

const (
	queueKeyPrefix = "docflow:queue:"
	// dequeueBlock BRPOP 单次阻塞时长；到期后循环重试以便响应 ctx 取消
	dequeueBlock = 2 * time.Second
)

// redisQueue Redis List 实现：每 Stage 一个 list 键，LPUSH 入队 BRPOP 出队；
// 进程重启后未消费任务仍在
type redisQueue struct {
	client *redis.Client
}

// NewRedis 创建 Redis Stage 队列并验证连通性
func NewRedis(ctx context.Context, cfg config.QueueConfig) (Queue, error) {
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
	return &redisQueue{client: client}, nil
}

func (q *redisQueue) Enqueue(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("编码任务失败: %w", err)
	}
	key := queueKeyPrefix + task.Stage
	if err := q.client.LPush(ctx, key, data).Err(); err != nil {
		return err
	}
	if depth, err := q.client.LLen(ctx, key).Result(); err == nil {
		metrics.QueueDepth.WithLabelValues(task.Stage).Set(float64(depth))
	}
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context, stageName string) (*Task, error) {
	key := queueKeyPrefix + stageName
	for {
		res, err := q.client.BRPop(ctx, dequeueBlock, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				default:
					continue
				}
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		// BRPOP 返回 [key, value]
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return nil, fmt.Errorf("解码任务失败: %w", err)
		}
		if depth, err := q.client.LLen(ctx, key).Result(); err == nil {
			metrics.QueueDepth.WithLabelValues(stageName).Set(float64(depth))
		}
		return &task, nil
	}
}

func (q *redisQueue) Close() error {
	return q.client.Close()
}
