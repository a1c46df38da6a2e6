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
	"sync"
	"time"
)

const janitorInterval = time.Minute

// memoryStore 内存实现：互斥锁提供每 Job 原子更新，后台 janitor 清理过期记录
type memoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*memoryRecord
	ttl     time.Duration
	stopCh  chan struct{}
	stopped sync.Once
}

type memoryRecord struct {
	job      *Job
	expireAt time.Time
}

// NewMemory 创建内存 Job Store；ttl<=0 使用 DefaultTTL
func NewMemory(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &memoryStore{
		jobs:   make(map[string]*memoryRecord),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *memoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = &memoryRecord{job: job.Clone(), expireAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	if !ok || rec.expireAt.Before(time.Now()) {
		return nil, ErrNotFound
	}
	return rec.job.Clone(), nil
}

func (s *memoryStore) Update(ctx context.Context, jobID string, fn UpdateFunc) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok || rec.expireAt.Before(time.Now()) {
		return nil, ErrNotFound
	}
	// 在副本上执行，fn 报错时保持原记录不变
	next := rec.job.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	rec.job = next
	rec.expireAt = time.Now().Add(s.ttl)
	return next.Clone(), nil
}

func (s *memoryStore) Close() error {
	s.stopped.Do(func() { close(s.stopCh) })
	return nil
}

// janitor 周期清理过期记录
func (s *memoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, rec := range s.jobs {
				if rec.expireAt.Before(now) {
					delete(s.jobs, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
