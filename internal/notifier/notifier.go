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

// Package notifier 按 Job 维度向在线订阅方推送状态快照。
// 推送是尽力而为的：慢连接或死连接直接摘除，不影响流水线本身。
package notifier

import (
	"context"
	"sync"
	"time"

	"docflow/internal/jobstore"
	"docflow/pkg/config"
	"docflow/pkg/log"
	"docflow/pkg/metrics"
)

// 消息类型
const (
	MessageUpdate = "update" // Job 快照（订阅即刻下发一次，此后每次落库下发）
	MessageClose  = "close"  // 服务端即将断开
)

// Message 推送给订阅方的消息
type Message struct {
	Type   string        `json:"type"`
	Job    *jobstore.Job `json:"job,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Conn 订阅连接抽象；WebSocket 适配见 internal/api/http。
// 三个方法都可能被多 goroutine 调用，实现自行串行化写
type Conn interface {
	Send(msg Message) error
	Ping() error
	Close() error
}

const (
	defaultPingInterval = 30 * time.Second
)

// Notifier 每 Job 一组订阅连接的注册表
type Notifier struct {
	store  jobstore.Store
	logger *log.Logger

	pingInterval time.Duration

	mu     sync.Mutex
	subs   map[string]map[Conn]struct{} // jobID -> conns
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New 创建 Notifier
func New(store jobstore.Store, cfg config.NotifierConfig, logger *log.Logger) *Notifier {
	return &Notifier{
		store:        store,
		logger:       logger,
		pingInterval: config.ParseDuration(cfg.PingInterval, defaultPingInterval),
		subs:         make(map[string]map[Conn]struct{}),
		done:         make(chan struct{}),
	}
}

// Start 启动存活探测循环
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	go n.pingLoop(ctx)
}

// Subscribe 注册订阅并即刻下发当前快照；Job 不存在返回 jobstore.ErrNotFound，
// 由调用方决定如何通知对端。
// 快照读取、下发与注册在同一临界区内完成，与 Broadcast 串行化：
// 注册前落库的更新一定进快照，注册后的一定被推送，订阅方不会卡在陈旧快照上
func (n *Notifier) Subscribe(ctx context.Context, jobID string, conn Conn) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return jobstore.ErrNotFound
	}
	job, err := n.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := conn.Send(Message{Type: MessageUpdate, Job: job}); err != nil {
		return err
	}
	conns, ok := n.subs[jobID]
	if !ok {
		conns = make(map[Conn]struct{})
		n.subs[jobID] = conns
	}
	conns[conn] = struct{}{}
	metrics.NotifierSubscribers.Inc()
	return nil
}

// Unsubscribe 摘除订阅；连接的关闭由调用方负责
func (n *Notifier) Unsubscribe(jobID string, conn Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeLocked(jobID, conn)
}

// Broadcast 向该 Job 的全部订阅方下发快照；写失败的连接就地摘除
func (n *Notifier) Broadcast(job *jobstore.Job) {
	msg := Message{Type: MessageUpdate, Job: job}

	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.subs[job.ID] {
		if err := conn.Send(msg); err != nil {
			n.logger.Debug("推送失败，摘除订阅", "job_id", job.ID, "error", err)
			n.removeLocked(job.ID, conn)
			conn.Close()
		}
	}
}

// Close 向所有订阅方发送关闭通知并断开；幂等
func (n *Notifier) Close() {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	msg := Message{Type: MessageClose, Reason: "server shutting down"}
	for jobID, conns := range n.subs {
		for conn := range conns {
			if err := conn.Send(msg); err != nil {
				n.logger.Debug("关闭通知发送失败", "job_id", jobID, "error", err)
			}
			conn.Close()
			metrics.NotifierSubscribers.Dec()
		}
	}
	n.subs = make(map[string]map[Conn]struct{})
}

// pingLoop 周期性探测所有连接，探测失败的摘除
func (n *Notifier) pingLoop(ctx context.Context) {
	defer close(n.done)
	ticker := time.NewTicker(n.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.pingAll()
		}
	}
}

func (n *Notifier) pingAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for jobID, conns := range n.subs {
		for conn := range conns {
			if err := conn.Ping(); err != nil {
				n.logger.Debug("存活探测失败，摘除订阅", "job_id", jobID, "error", err)
				n.removeLocked(jobID, conn)
				conn.Close()
			}
		}
	}
}

// removeLocked 调用方持有 n.mu
func (n *Notifier) removeLocked(jobID string, conn Conn) {
	conns, ok := n.subs[jobID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(n.subs, jobID)
	}
	metrics.NotifierSubscribers.Dec()
}
