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

// Package api API 服务装配：控制面。接收提交、编排 Stage 推进、
// 执行工具调用、向 WebSocket 订阅方推送状态。Stage 本身由 worker 执行
package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apihttp "docflow/internal/api/http"
	"docflow/internal/api/http/middleware"
	"docflow/internal/app"
	"docflow/internal/notifier"
	"docflow/internal/orchestrator"
	"docflow/internal/tool/builtin"
	"docflow/internal/tool/registry"
)

// App API 服务
type App struct {
	bootstrap *app.Bootstrap
	orch      *orchestrator.Orchestrator
	notifier  *notifier.Notifier
	tools     *registry.Registry
	router    *apihttp.Router
	hertz     *server.Hertz

	otelProvider provider.OtelProvider
}

// New 装配 API 服务
func New(b *app.Bootstrap) (*App, error) {
	tools := registry.New()
	builtin.RegisterBuiltin(tools, b.Config.Tools, b.Secrets)
	executor := registry.NewExecutor(tools, b.Config.Tools, b.Logger)

	nt := notifier.New(b.Store, b.Config.Notifier, b.Logger)

	orch := orchestrator.New(b.Graph, b.Store, b.Bus, executor, nt, b.Logger)
	if err := orch.Start(); err != nil {
		return nil, fmt.Errorf("启动编排器failed: %w", err)
	}

	handler := apihttp.NewHandler(orch, nt, tools, b.Graph, b.Logger)
	mw := middleware.NewMiddleware(b.Config.API.Middleware)
	router := apihttp.NewRouter(handler, mw)

	return &App{
		bootstrap: b,
		orch:      orch,
		notifier:  nt,
		tools:     tools,
		router:    router,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// Hertz 侧日志与主日志配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tracing := cfg.Monitoring.Tracing
	if tracing.Enable {
		serviceName := tracing.ServiceName
		if serviceName == "" {
			serviceName = "docflow-api"
		}
		exportEndpoint := tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		}
	}
	if a.hertz == nil {
		a.hertz = a.router.Build(addr)
	}

	a.notifier.Start(context.Background())
	return a.hertz.Run()
}

// Shutdown 优雅关闭：先通知 WebSocket 订阅方，再停 HTTP 与底层连接
func (a *App) Shutdown(ctx context.Context) error {
	a.notifier.Close()
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	a.bootstrap.Close()
	return nil
}
