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

package http

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"docflow/internal/api/http/middleware"
	"docflow/internal/broker"
	"docflow/internal/jobstore"
	"docflow/internal/orchestrator"
	"docflow/internal/pipeline"
	"docflow/internal/tool/registry"
	"docflow/pkg/config"
	"docflow/pkg/log"
)

func buildServerForTest(t *testing.T) (*server.Hertz, jobstore.Store) {
	t.Helper()
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	graph, err := pipeline.Load(config.PipelineConfig{Stages: []config.StageDefConfig{
		{Name: "extract", Next: "index"},
		{Name: "index", DisplayIndex: 1},
	}})
	if err != nil {
		t.Fatalf("pipeline.Load: %v", err)
	}

	bus := broker.NewMemory()
	store := jobstore.NewMemory(time.Minute)
	t.Cleanup(func() {
		bus.Close()
		store.Close()
	})

	orch := orchestrator.New(graph, store, bus, nil, nil, logger)
	if err := orch.Start(); err != nil {
		t.Fatalf("orchestrator.Start: %v", err)
	}

	handler := NewHandler(orch, nil, registry.New(), graph, logger)
	mw := middleware.NewMiddleware(config.MiddlewareConfig{})
	return NewRouter(handler, mw).Build(":0"), store
}

func performJSON(t *testing.T, s *server.Hertz, method, path string, body []byte) *ut.ResponseRecorder {
	t.Helper()
	return ut.PerformRequest(s.Engine, method, path,
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func TestHealthCheck(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "GET", "/api/health", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/health status = %d, want 200", got)
	}
	if !strings.Contains(string(w.Result().Body()), `"ok"`) {
		t.Fatalf("body = %s", w.Result().Body())
	}
}

func TestSubmitJobEmptyBody(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "POST", "/api/jobs", nil)
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("空请求体 status = %d, want 400", got)
	}
}

func TestSubmitJobInvalidJSON(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "POST", "/api/jobs", []byte("{not json"))
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("非法 JSON status = %d, want 400", got)
	}
}

func TestSubmitAndGetJob(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "POST", "/api/jobs", []byte(`{"text":"hello"}`))
	if got := w.Result().StatusCode(); got != 202 {
		t.Fatalf("POST /api/jobs status = %d, want 202 (%s)", got, w.Result().Body())
	}

	var job jobstore.Job
	if err := json.Unmarshal(w.Result().Body(), &job); err != nil {
		t.Fatalf("解析响应failed: %v", err)
	}
	if job.ID == "" || job.Status != jobstore.StatusProcessing {
		t.Fatalf("job = %+v", job)
	}
	if len(job.Pipeline) != 2 || job.Pipeline[0].State != jobstore.StageInProgress {
		t.Fatalf("pipeline = %+v", job.Pipeline)
	}

	w = performJSON(t, s, "GET", "/api/jobs/"+job.ID, nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/jobs/:id status = %d, want 200", got)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "GET", "/api/jobs/job-missing", nil)
	if got := w.Result().StatusCode(); got != 404 {
		t.Fatalf("未知 job status = %d, want 404", got)
	}
}

func TestSystemStatus(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "GET", "/api/system/status", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/system/status status = %d, want 200", got)
	}
	body := string(w.Result().Body())
	if !strings.Contains(body, "extract") || !strings.Contains(body, "index") {
		t.Fatalf("status 应包含 stage 链: %s", body)
	}
}

func TestSystemMetrics(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "GET", "/api/system/metrics", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/system/metrics status = %d, want 200", got)
	}
	if !strings.Contains(string(w.Result().Body()), "docflow_") {
		t.Fatalf("指标输出缺少 docflow 序列: %s", w.Result().Body())
	}
}

func TestListTools(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := performJSON(t, s, "GET", "/api/tools", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/tools status = %d, want 200", got)
	}
	var out map[string]any
	if err := json.Unmarshal(w.Result().Body(), &out); err != nil {
		t.Fatalf("解析failed: %v", err)
	}
	if out["total"] != float64(0) {
		t.Fatalf("total = %v", out["total"])
	}
}
