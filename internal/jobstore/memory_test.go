package jobstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docflow/internal/pipeline"
	"docflow/pkg/config"
)

func testGraph(t *testing.T) *pipeline.Graph {
	t.Helper()
	g, err := pipeline.Load(config.PipelineConfig{Stages: []config.StageDefConfig{
		{Name: "extract", Next: "classify"},
		{Name: "classify", Next: "finalize"},
		{Name: "finalize"},
	}})
	if err != nil {
		t.Fatalf("pipeline.Load: %v", err)
	}
	return g
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Hour)
	defer s.Close()

	job := New("job-1", testGraph(t).Stages())
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusQueued || len(got.Pipeline) != 3 {
		t.Errorf("记录不符: %+v", got)
	}
	if got.Pipeline[0].State != StagePending {
		t.Errorf("初始 stage 状态 = %s, want pending", got.Pipeline[0].State)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemory(time.Hour)
	defer s.Close()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_UpdateAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Hour)
	defer s.Close()
	_ = s.Create(ctx, New("job-1", testGraph(t).Stages()))

	updated, err := s.Update(ctx, "job-1", func(j *Job) error {
		j.Status = StatusProcessing
		j.Stage("extract").State = StageInProgress
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != StatusProcessing || updated.Stage("extract").State != StageInProgress {
		t.Errorf("更新结果不符: %+v", updated)
	}
}

func TestMemoryStore_UpdateAbortKeepsRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Hour)
	defer s.Close()
	_ = s.Create(ctx, New("job-1", testGraph(t).Stages()))

	_, err := s.Update(ctx, "job-1", func(j *Job) error {
		j.Status = StatusFailed // 修改后报错，写入应被放弃
		return ErrStageConflict
	})
	if !errors.Is(err, ErrStageConflict) {
		t.Fatalf("err = %v, want ErrStageConflict", err)
	}
	got, _ := s.Get(ctx, "job-1")
	if got.Status != StatusQueued {
		t.Errorf("放弃写入后状态被污染: %s", got.Status)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(30 * time.Millisecond)
	defer s.Close()
	_ = s.Create(ctx, New("job-1", testGraph(t).Stages()))

	time.Sleep(60 * time.Millisecond)
	if _, err := s.Get(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("过期后 Get err = %v, want ErrNotFound", err)
	}
	if _, err := s.Update(ctx, "job-1", func(j *Job) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("过期后 Update err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_WriteRenewsTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(80 * time.Millisecond)
	defer s.Close()
	_ = s.Create(ctx, New("job-1", testGraph(t).Stages()))

	// 持续写入应续期
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		if _, err := s.Update(ctx, "job-1", func(j *Job) error { return nil }); err != nil {
			t.Fatalf("第 %d 次续期写入失败: %v", i, err)
		}
	}
	if _, err := s.Get(ctx, "job-1"); err != nil {
		t.Fatalf("续期后 Get: %v", err)
	}
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Hour)
	defer s.Close()
	_ = s.Create(ctx, New("job-1", testGraph(t).Stages()))

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = s.Update(ctx, "job-1", func(j *Job) error {
				cnt, _ := j.Result["count"].(int)
				j.Result["count"] = cnt + 1
				return nil
			})
		}(i)
	}
	wg.Wait()
	got, _ := s.Get(ctx, "job-1")
	if cnt, _ := got.Result["count"].(int); cnt != n {
		t.Errorf("并发更新丢失: count = %v, want %d", got.Result["count"], n)
	}
}

func TestJob_MergeResultOverwrites(t *testing.T) {
	j := New("job-1", testGraph(t).Stages())
	j.MergeResult(map[string]any{"a": 1})
	j.MergeResult(map[string]any{"a": 2, "b": 3})
	if j.Result["a"] != 2 || j.Result["b"] != 3 {
		t.Errorf("合并语义不符: %+v", j.Result)
	}
}

func TestJob_Terminal(t *testing.T) {
	j := New("job-1", testGraph(t).Stages())
	if j.Terminal() {
		t.Error("queued 不应为终态")
	}
	j.Status = StatusCompleted
	if !j.Terminal() {
		t.Error("completed 应为终态")
	}
	j.Status = StatusFailed
	if !j.Terminal() {
		t.Error("failed 应为终态")
	}
}
