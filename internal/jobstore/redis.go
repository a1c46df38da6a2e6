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

package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docflow/pkg/config"
)

const (
	jobKeyPrefix = "docflow:job:"
	// casMaxRetries WATCH 乐观并发冲突时的重试上限；超出说明同一 Job 写竞争
	// 异常激烈，按冲突报错而不是无限自旋
	casMaxRetries = 16
)

// redisStore Redis 实现：每 Job 一个 JSON 值键，写入即续 TTL；
// Update 用 WATCH/MULTI 乐观事务实现每 Job 原子读-改-写
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis 创建 Redis Job Store 并验证连通性；ttl<=0 使用 DefaultTTL
func NewRedis(ctx context.Context, cfg config.JobStoreConfig) (Store, error) {
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
	ttl := config.ParseDuration(cfg.TTL, DefaultTTL)
	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) Create(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("编码 Job 失败: %w", err)
	}
	return s.client.Set(ctx, jobKeyPrefix+job.ID, data, s.ttl).Err()
}

func (s *redisStore) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("解码 Job 失败: %w", err)
	}
	return &job, nil
}

func (s *redisStore) Update(ctx context.Context, jobID string, fn UpdateFunc) (*Job, error) {
	key := jobKeyPrefix + jobID
	var updated *Job
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("解码 Job 失败: %w", err)
		}
		if err := fn(&job); err != nil {
			return err
		}
		encoded, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("编码 Job 失败: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for i := 0; i < casMaxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // 键被并发修改，重读重试
		}
		return nil, err
	}
	return nil, ErrStageConflict
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
