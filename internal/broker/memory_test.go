package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})
	err := b.Subscribe(TopicStageCompleted, func(ctx context.Context, ev Event) {
		mu.Lock()
		got = append(got, ev)
		if len(got) == 2 {
			close(done)
		}
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ev1 := NewEvent("job-1", "extraction")
	ev2 := NewEvent("job-1", "validation")
	ctx := context.Background()
	if err := b.Publish(ctx, TopicStageCompleted, ev1); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, TopicStageCompleted, ev2); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("等待事件投递超时")
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0].Stage != "extraction" || got[1].Stage != "validation" {
		t.Errorf("主题内投递顺序不符: %s, %s", got[0].Stage, got[1].Stage)
	}
}

func TestMemoryBroker_TopicIsolation(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	var startCount atomic.Int32
	_ = b.Subscribe(TopicStageStart, func(ctx context.Context, ev Event) {
		startCount.Add(1)
	})

	_ = b.Publish(context.Background(), TopicStageFailed, NewEvent("job-1", "audit"))
	time.Sleep(50 * time.Millisecond)
	if n := startCount.Load(); n != 0 {
		t.Errorf("stage.start 订阅不应收到 stage.failed 事件, got %d", n)
	}
}

func TestMemoryBroker_ClosedPublish(t *testing.T) {
	b := NewMemory()
	_ = b.Close()
	if err := b.Publish(context.Background(), TopicStageStart, NewEvent("job-1", "x")); err == nil {
		t.Fatal("关闭后 Publish 应返回错误")
	}
}

func TestWithPublishRetry_Recovers(t *testing.T) {
	inner := &flakyBroker{failFirst: 2}
	b := WithPublishRetry(inner, PublishRetryConfig{Retries: 3, Backoff: time.Millisecond})
	if err := b.Publish(context.Background(), TopicStageStart, NewEvent("job-1", "x")); err != nil {
		t.Fatalf("重试后仍失败: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("Publish 调用次数 = %d, want 3", inner.calls)
	}
}

func TestWithPublishRetry_Exhausted(t *testing.T) {
	inner := &flakyBroker{failFirst: 10}
	b := WithPublishRetry(inner, PublishRetryConfig{Retries: 2, Backoff: time.Millisecond})
	if err := b.Publish(context.Background(), TopicStageStart, NewEvent("job-1", "x")); err == nil {
		t.Fatal("重试耗尽应返回错误")
	}
	if inner.calls != 3 {
		t.Errorf("Publish 调用次数 = %d, want 3（首次+2 次重试）", inner.calls)
	}
}

// flakyBroker 前 failFirst 次 Publish 失败，之后成功
type flakyBroker struct {
	calls     int
	failFirst int
}

func (f *flakyBroker) Publish(ctx context.Context, topic Topic, ev Event) error {
	f.calls++
	if f.calls <= f.failFirst {
		return errors.New("broker unreachable")
	}
	return nil
}

func (f *flakyBroker) Subscribe(topic Topic, handler Handler) error { return nil }
func (f *flakyBroker) Close() error                                 { return nil }
