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
	"errors"
	"time"
)

var (
	// ErrNotFound Job 不存在或已按 TTL 过期
	ErrNotFound = errors.New("jobstore: job not found")
	// ErrStageConflict 原子更新中状态前置条件不成立（重复推进被拒绝）
	ErrStageConflict = errors.New("jobstore: stage state conflict")
	// ErrTerminal Job 已到终态，更新被拒绝
	ErrTerminal = errors.New("jobstore: job already terminal")
)

// DefaultTTL 记录默认保留时长；每次写入续期
const DefaultTTL = 24 * time.Hour

// UpdateFunc 原子更新回调；在实现保证的互斥/事务内对 job 就地修改。
// 返回错误则放弃写入并将该错误原样返回（ErrStageConflict 用于 CAS 拒绝）。
type UpdateFunc func(job *Job) error

// Store Job 记录存储；每 Job 一条记录，TTL 有界保留。
// Update 是唯一的修改入口，要求实现提供每 Job 级别的原子读-改-写，
// 这是"精确一次推进"的正确性基础。
type Store interface {
	// Create 写入新 Job 记录并设置 TTL
	Create(ctx context.Context, job *Job) error
	// Get 返回 Job 快照；不存在或已过期返回 ErrNotFound
	Get(ctx context.Context, jobID string) (*Job, error)
	// Update 原子读-改-写并续期 TTL；返回更新后的快照
	Update(ctx context.Context, jobID string, fn UpdateFunc) (*Job, error)
	// Close 释放底层连接
	Close() error
}
