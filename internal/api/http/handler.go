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
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"docflow/internal/jobstore"
	"docflow/internal/notifier"
	"docflow/internal/orchestrator"
	"docflow/internal/pipeline"
	"docflow/internal/tool/registry"
	"docflow/pkg/log"
	"docflow/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	orch      *orchestrator.Orchestrator
	notifier  *notifier.Notifier
	tools     *registry.Registry
	graph     *pipeline.Graph
	logger    *log.Logger
	startedAt time.Time
}

// NewHandler 创建新的 HTTP 处理器；notifier 与 tools 可为 nil
func NewHandler(orch *orchestrator.Orchestrator, nt *notifier.Notifier, tools *registry.Registry, graph *pipeline.Graph, logger *log.Logger) *Handler {
	return &Handler{
		orch:      orch,
		notifier:  nt,
		tools:     tools,
		graph:     graph,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "docflow-api",
	})
}

// SubmitJob 提交文档进入流水线
// POST /api/jobs
func (h *Handler) SubmitJob(c context.Context, ctx *app.RequestContext) {
	var payload map[string]any
	if body := ctx.Request.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			ctx.JSON(consts.StatusBadRequest, map[string]string{
				"error": "请求体不是合法 JSON",
			})
			return
		}
	}
	if len(payload) == 0 {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "请求体不能为空，至少提供 text / content_base64 / path 之一",
		})
		return
	}

	job, err := h.orch.Submit(c, payload)
	if err != nil {
		h.logger.Error("提交 job 失败", "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "提交失败",
		})
		return
	}
	ctx.JSON(consts.StatusAccepted, job)
}

// GetJob 查询 Job 状态
// GET /api/jobs/:id
func (h *Handler) GetJob(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")
	job, err := h.orch.Get(c, jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]string{
				"error": "job 不存在或已过期",
			})
			return
		}
		h.logger.Error("查询 job 失败", "job_id", jobID, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "查询失败",
		})
		return
	}
	ctx.JSON(consts.StatusOK, job)
}

// ListTools 列出已注册工具
// GET /api/tools
func (h *Handler) ListTools(c context.Context, ctx *app.RequestContext) {
	if h.tools == nil {
		ctx.JSON(consts.StatusOK, map[string]any{"tools": []any{}, "total": 0})
		return
	}
	list := h.tools.DescribeAll()
	ctx.JSON(consts.StatusOK, map[string]any{
		"tools": list,
		"total": len(list),
	})
}

// SystemStatus 系统状态
// GET /api/system/status
func (h *Handler) SystemStatus(c context.Context, ctx *app.RequestContext) {
	stages := make([]string, 0, h.graph.Len())
	for _, def := range h.graph.Stages() {
		stages = append(stages, def.Name)
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"api_service":    "running",
		"pipeline":       stages,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now(),
	})
}

// SystemMetrics Prometheus 文本格式指标
// GET /api/system/metrics
func (h *Handler) SystemMetrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "导出指标失败",
		})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
