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
	"errors"
	"sync"
)

const memoryChanBuffer = 64

// memoryBroker 进程内事件总线；每个订阅一条带缓冲通道 + 投递 goroutine，
// 主题内按发布顺序投递
type memoryBroker struct {
	mu     sync.RWMutex
	subs   map[Topic][]chan Event
	closed bool
	wg     sync.WaitGroup
}

// NewMemory 创建进程内 Broker（单进程部署与测试用）
func NewMemory() Broker {
	return &memoryBroker{subs: make(map[Topic][]chan Event)}
}

func (b *memoryBroker) Publish(ctx context.Context, topic Topic, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("broker: closed")
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(topic Topic, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("broker: closed")
	}
	ch := make(chan Event, memoryChanBuffer)
	b.subs[topic] = append(b.subs[topic], ch)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range ch {
			handler(context.Background(), ev)
		}
	}()
	return nil
}

func (b *memoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
