package pipeline

import (
	"testing"

	"docflow/pkg/config"
)

func chainConfig(stages ...[2]string) config.PipelineConfig {
	cfg := config.PipelineConfig{}
	for i, s := range stages {
		cfg.Stages = append(cfg.Stages, config.StageDefConfig{
			Name: s[0], Next: s[1], DisplayIndex: i,
		})
	}
	return cfg
}

func TestLoad_ValidChain(t *testing.T) {
	g, err := Load(chainConfig(
		[2]string{"extraction", "validation"},
		[2]string{"validation", "indexing"},
		[2]string{"indexing", ""},
	))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.FirstStage() != "extraction" {
		t.Errorf("FirstStage = %s, want extraction", g.FirstStage())
	}
	next, ok := g.NextStage("validation")
	if !ok || next != "indexing" {
		t.Errorf("NextStage(validation) = %q, %v", next, ok)
	}
	next, ok = g.NextStage("indexing")
	if !ok || next != "" {
		t.Errorf("链尾 NextStage = %q, %v, want \"\", true", next, ok)
	}
	if _, ok := g.NextStage("unknown"); ok {
		t.Error("未知 stage 应返回 ok=false")
	}
	if idx := g.IndexOf("indexing"); idx != 2 {
		t.Errorf("IndexOf(indexing) = %d, want 2", idx)
	}
	if idx := g.IndexOf("unknown"); idx != -1 {
		t.Errorf("IndexOf(unknown) = %d, want -1", idx)
	}
	if g.Len() != 3 {
		t.Errorf("Len = %d, want 3", g.Len())
	}
}

func TestLoad_Empty(t *testing.T) {
	if _, err := Load(config.PipelineConfig{}); err == nil {
		t.Fatal("空定义应报错")
	}
}

func TestLoad_DuplicateName(t *testing.T) {
	_, err := Load(chainConfig(
		[2]string{"a", "b"},
		[2]string{"a", ""},
	))
	if err == nil {
		t.Fatal("重复名称应报错")
	}
}

func TestLoad_DanglingNext(t *testing.T) {
	_, err := Load(chainConfig([2]string{"a", "missing"}))
	if err == nil {
		t.Fatal("next 指向未定义 stage 应报错")
	}
}

func TestLoad_Branch(t *testing.T) {
	_, err := Load(chainConfig(
		[2]string{"a", "c"},
		[2]string{"b", "c"},
		[2]string{"c", ""},
	))
	if err == nil {
		t.Fatal("分支应报错")
	}
}

func TestLoad_Cycle(t *testing.T) {
	_, err := Load(chainConfig(
		[2]string{"a", "b"},
		[2]string{"b", "a"},
	))
	if err == nil {
		t.Fatal("环应报错")
	}
}

func TestLoad_StagesInOrder(t *testing.T) {
	g, err := Load(chainConfig(
		// 定义顺序打乱，链序由 next 决定
		[2]string{"validation", "indexing"},
		[2]string{"indexing", ""},
		[2]string{"extraction", "validation"},
	))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defs := g.Stages()
	want := []string{"extraction", "validation", "indexing"}
	for i, w := range want {
		if defs[i].Name != w {
			t.Errorf("Stages()[%d] = %s, want %s", i, defs[i].Name, w)
		}
	}
}
