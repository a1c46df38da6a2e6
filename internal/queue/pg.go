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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgPollInterval 无任务时的轮询间隔
const pgPollInterval = 500 * time.Millisecond

// pgQueue PostgreSQL 实现：stage_tasks 表按 stage 隔离；
// FOR UPDATE SKIP LOCKED 原子认领，认领即出队（所有权转移给 Worker）
type pgQueue struct {
	pool *pgxpool.Pool
}

// NewPg 创建基于 PostgreSQL 的 Stage 队列；表结构见 migrations/stage_tasks.sql
func NewPg(ctx context.Context, dsn string) (Queue, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgQueue{pool: pool}, nil
}

func (q *pgQueue) Enqueue(ctx context.Context, task Task) error {
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("编码任务载荷失败: %w", err)
	}
	_, err = q.pool.Exec(ctx,
		`INSERT INTO stage_tasks (id, job_id, stage, payload) VALUES ($1, $2, $3, $4)`,
		task.ID, task.JobID, task.Stage, payloadJSON,
	)
	return err
}

func (q *pgQueue) Dequeue(ctx context.Context, stageName string) (*Task, error) {
	for {
		task, err := q.claimOne(ctx, stageName)
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pgPollInterval):
		}
	}
}

// claimOne 原子认领并删除最早的一条任务；无任务返回 nil, nil
func (q *pgQueue) claimOne(ctx context.Context, stageName string) (*Task, error) {
	var id, jobID string
	var payloadBytes []byte
	err := q.pool.QueryRow(ctx,
		`WITH sel AS (
  SELECT id FROM stage_tasks WHERE stage = $1 ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED
)
DELETE FROM stage_tasks USING sel WHERE stage_tasks.id = sel.id
RETURNING stage_tasks.id, stage_tasks.job_id, stage_tasks.payload`,
		stageName,
	).Scan(&id, &jobID, &payloadBytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	task := &Task{ID: id, JobID: jobID, Stage: stageName}
	if len(payloadBytes) > 0 {
		_ = json.Unmarshal(payloadBytes, &task.Payload)
	}
	if task.Payload == nil {
		task.Payload = make(map[string]any)
	}
	return task, nil
}

func (q *pgQueue) Close() error {
	q.pool.Close()
	return nil
}
