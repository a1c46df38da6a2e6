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

package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docflow/internal/jobstore"
	"docflow/internal/pipeline"
	"docflow/pkg/config"
	"docflow/pkg/log"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []Message
	sendErr  error
	pingErr  error
	closed   bool
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingErr
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) all() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// gatedConn 首条写入前阻塞，用于构造订阅与广播的交错
type gatedConn struct {
	fakeConn
	gate chan struct{}
	once sync.Once
}

func (c *gatedConn) Send(msg Message) error {
	c.once.Do(func() { <-c.gate })
	return c.fakeConn.Send(msg)
}

func newTestNotifier(t *testing.T, cfg config.NotifierConfig) (*Notifier, jobstore.Store) {
	t.Helper()
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	store := jobstore.NewMemory(time.Minute)
	t.Cleanup(func() { store.Close() })
	return New(store, cfg, logger), store
}

func seedJob(t *testing.T, store jobstore.Store, id string) *jobstore.Job {
	t.Helper()
	defs := []pipeline.StageDefinition{{Name: "extract"}, {Name: "index", DisplayIndex: 1}}
	job := jobstore.New(id, defs)
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func TestSubscribeSendsSnapshot(t *testing.T) {
	n, store := newTestNotifier(t, config.NotifierConfig{})
	job := seedJob(t, store, "job-1")

	conn := &fakeConn{}
	if err := n.Subscribe(context.Background(), job.ID, conn); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	msgs := conn.all()
	if len(msgs) != 1 {
		t.Fatalf("订阅后消息数 = %d, want 1", len(msgs))
	}
	if msgs[0].Type != MessageUpdate || msgs[0].Job == nil || msgs[0].Job.ID != job.ID {
		t.Fatalf("首条消息应为当前快照: %+v", msgs[0])
	}
}

func TestSubscribeUnknownJob(t *testing.T) {
	n, _ := newTestNotifier(t, config.NotifierConfig{})

	conn := &fakeConn{}
	err := n.Subscribe(context.Background(), "job-missing", conn)
	if !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(conn.all()) != 0 {
		t.Fatal("未知 Job 不应收到消息")
	}
}

// TestSubscribeDoesNotMissConcurrentBroadcast 订阅尚未注册完成时落库的更新
// 不能丢：要么进快照，要么随后被推送，订阅方最终看到终态
func TestSubscribeDoesNotMissConcurrentBroadcast(t *testing.T) {
	n, store := newTestNotifier(t, config.NotifierConfig{})
	job := seedJob(t, store, "job-1")

	conn := &gatedConn{gate: make(chan struct{})}
	subErr := make(chan error, 1)
	go func() { subErr <- n.Subscribe(context.Background(), job.ID, conn) }()

	// 订阅还卡在快照写入时，Job 推进到终态并广播
	updated, err := store.Update(context.Background(), job.ID, func(j *jobstore.Job) error {
		now := time.Now()
		j.Status = jobstore.StatusCompleted
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	broadcastDone := make(chan struct{})
	go func() {
		n.Broadcast(updated)
		close(broadcastDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(conn.gate)
	if err := <-subErr; err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	<-broadcastDone

	msgs := conn.all()
	if len(msgs) == 0 {
		t.Fatal("订阅方未收到任何消息")
	}
	last := msgs[len(msgs)-1]
	if last.Job == nil || last.Job.Status != jobstore.StatusCompleted {
		t.Fatalf("订阅方最后快照 = %+v, want completed", last.Job)
	}
}

func TestBroadcastReachesSubscribersOnly(t *testing.T) {
	n, store := newTestNotifier(t, config.NotifierConfig{})
	job1 := seedJob(t, store, "job-1")
	job2 := seedJob(t, store, "job-2")

	conn1 := &fakeConn{}
	conn2 := &fakeConn{}
	if err := n.Subscribe(context.Background(), job1.ID, conn1); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := n.Subscribe(context.Background(), job2.ID, conn2); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	job1.Status = jobstore.StatusProcessing
	n.Broadcast(job1)

	if got := len(conn1.all()); got != 2 {
		t.Fatalf("conn1 消息数 = %d, want 2", got)
	}
	if got := len(conn2.all()); got != 1 {
		t.Fatalf("conn2 不应收到其他 Job 的广播, 消息数 = %d", got)
	}
	last := conn1.all()[1]
	if last.Job.Status != jobstore.StatusProcessing {
		t.Fatalf("广播快照状态 = %s, want processing", last.Job.Status)
	}
}

func TestBroadcastDropsDeadConn(t *testing.T) {
	n, store := newTestNotifier(t, config.NotifierConfig{})
	job := seedJob(t, store, "job-1")

	conn := &fakeConn{}
	if err := n.Subscribe(context.Background(), job.ID, conn); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	conn.mu.Lock()
	conn.sendErr = errors.New("broken pipe")
	conn.mu.Unlock()

	n.Broadcast(job)
	if !conn.isClosed() {
		t.Fatal("写失败的连接应被关闭")
	}

	// 摘除后不再收到广播
	conn.mu.Lock()
	conn.sendErr = nil
	conn.mu.Unlock()
	n.Broadcast(job)
	if got := len(conn.all()); got != 1 {
		t.Fatalf("摘除后仍收到广播, 消息数 = %d", got)
	}
}

func TestPingDropsDeadConn(t *testing.T) {
	n, store := newTestNotifier(t, config.NotifierConfig{PingInterval: "20ms"})
	job := seedJob(t, store, "job-1")

	alive := &fakeConn{}
	dead := &fakeConn{pingErr: errors.New("timeout")}
	if err := n.Subscribe(context.Background(), job.ID, alive); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := n.Subscribe(context.Background(), job.ID, dead); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	n.Start(context.Background())
	defer n.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !dead.isClosed() {
		time.Sleep(10 * time.Millisecond)
	}
	if !dead.isClosed() {
		t.Fatal("探测失败的连接未被摘除")
	}
	if alive.isClosed() {
		t.Fatal("存活连接不应被摘除")
	}
}

func TestCloseNotifiesSubscribers(t *testing.T) {
	n, store := newTestNotifier(t, config.NotifierConfig{})
	job := seedJob(t, store, "job-1")

	conn := &fakeConn{}
	if err := n.Subscribe(context.Background(), job.ID, conn); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	n.Close()

	msgs := conn.all()
	last := msgs[len(msgs)-1]
	if last.Type != MessageClose {
		t.Fatalf("最后一条消息类型 = %s, want close", last.Type)
	}
	if !conn.isClosed() {
		t.Fatal("Close 后连接应断开")
	}

	// 关闭后订阅被拒绝
	if err := n.Subscribe(context.Background(), job.ID, &fakeConn{}); err == nil {
		t.Fatal("关闭后 Subscribe 应失败")
	}
}
