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
	"sync"

	"docflow/pkg/metrics"
)

const memoryQueueBuffer = 256

// memoryQueue 进程内队列：每 Stage 一条带缓冲通道。
// 关闭用独立信号通道广播，任务通道本身不 close，
// 这样与 Close 并发的 Enqueue 不会写到已关闭的通道上
type memoryQueue struct {
	mu     sync.Mutex
	chans  map[string]chan Task
	done   chan struct{}
	closed bool
}

// NewMemory 创建进程内 Stage 队列（单进程部署与测试用）
func NewMemory() Queue {
	return &memoryQueue{
		chans: make(map[string]chan Task),
		done:  make(chan struct{}),
	}
}

func (q *memoryQueue) ch(stageName string) (chan Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, false
	}
	c, ok := q.chans[stageName]
	if !ok {
		c = make(chan Task, memoryQueueBuffer)
		q.chans[stageName] = c
	}
	return c, true
}

func (q *memoryQueue) Enqueue(ctx context.Context, task Task) error {
	c, ok := q.ch(task.Stage)
	if !ok {
		return ErrClosed
	}
	select {
	case c <- task:
		metrics.QueueDepth.WithLabelValues(task.Stage).Set(float64(len(c)))
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context, stageName string) (*Task, error) {
	c, ok := q.ch(stageName)
	if !ok {
		return nil, ErrClosed
	}
	select {
	case task := <-c:
		metrics.QueueDepth.WithLabelValues(stageName).Set(float64(len(c)))
		return &task, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}
