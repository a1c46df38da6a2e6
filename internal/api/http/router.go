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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"docflow/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// Build 构建 Hertz 服务并注册全部路由；addr 如 ":8080"
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	hertzOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	s := server.Default(hertzOpts...)

	api := s.Group("/api")
	if r.middleware != nil {
		api.Use(r.middleware.CORS())
		auth, err := r.middleware.Auth()
		if err != nil {
			hlog.Errorf("构建 JWT 中间件失败，鉴权未启用: %v", err)
		} else if auth != nil {
			api.Use(auth)
		}
	}

	api.GET("/health", r.handler.HealthCheck)
	api.GET("/tools", r.handler.ListTools)

	jobs := api.Group("/jobs")
	{
		jobs.POST("", r.handler.SubmitJob)
		jobs.GET("/:id", r.handler.GetJob)
		jobs.GET("/:id/ws", r.handler.JobUpdates)
	}

	system := api.Group("/system")
	{
		system.GET("/status", r.handler.SystemStatus)
		system.GET("/metrics", r.handler.SystemMetrics)
	}

	return s
}
