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

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体（API/Worker 共用，按需取子树）
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Queue      QueueConfig      `mapstructure:"queue"`
	JobStore   JobStoreConfig   `mapstructure:"jobstore"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置（认证策略本身在外部，这里仅开关与密钥）
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// PipelineConfig 流水线 Stage 链定义；加载时校验为单链无环
type PipelineConfig struct {
	Stages []StageDefConfig `mapstructure:"stages"`
}

// StageDefConfig 单个 Stage 的静态定义；next 为空表示链尾
type StageDefConfig struct {
	Name         string `mapstructure:"name"`
	Next         string `mapstructure:"next"`
	DisplayIndex int    `mapstructure:"display_index"`
}

// BrokerConfig 事件总线配置
type BrokerConfig struct {
	Type           string `mapstructure:"type"` // memory | redis
	Addr           string `mapstructure:"addr"`
	DB             int    `mapstructure:"db"`
	Password       string `mapstructure:"password"`
	PublishRetries int    `mapstructure:"publish_retries"` // 发布失败重试次数，<=0 默认 3
	PublishBackoff string `mapstructure:"publish_backoff"` // 重试间隔基值，如 "200ms"
}

// QueueConfig Stage 队列配置
type QueueConfig struct {
	Type     string `mapstructure:"type"` // memory | redis | postgres
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	DSN      string `mapstructure:"dsn"` // type=postgres 时必填
}

// JobStoreConfig Job 记录存储配置（KV + TTL）
type JobStoreConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 记录保留时长，如 "24h"，每次写入续期
}

// WorkerConfig Worker 服务配置；Stages 按 Stage 名覆盖默认值
type WorkerConfig struct {
	Concurrency int                          `mapstructure:"concurrency"` // 默认每 Stage 并发，<=0 为 1
	Timeout     string                       `mapstructure:"timeout"`     // 默认 Stage 超时，空为不限
	RetryCount  int                          `mapstructure:"retry_count"` // Handler 失败重试次数（不含首次）
	RetryDelay  string                       `mapstructure:"retry_delay"` // 重试间隔，如 "1s"
	Stages      map[string]StageWorkerConfig `mapstructure:"stages"`
}

// StageWorkerConfig 单个 Stage 的 Worker 覆盖配置
type StageWorkerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Timeout     string `mapstructure:"timeout"`
	RetryCount  *int   `mapstructure:"retry_count"`
	RetryDelay  string `mapstructure:"retry_delay"`
}

// NotifierConfig 实时推送配置
type NotifierConfig struct {
	PingInterval string `mapstructure:"ping_interval"` // 存活探测间隔，空则默认 30s
	WriteTimeout string `mapstructure:"write_timeout"` // 单次推送写超时，空则默认 5s
}

// ToolsConfig 外部工具配置；按工具名覆盖端点与限流
type ToolsConfig struct {
	Endpoints map[string]ToolEndpointConfig `mapstructure:"endpoints"`
}

// ToolEndpointConfig 单个工具的端点与限流配置
type ToolEndpointConfig struct {
	URL     string  `mapstructure:"url"`
	Timeout string  `mapstructure:"timeout"`
	QPS     float64 `mapstructure:"qps"`
	Burst   int     `mapstructure:"burst"`
}

// SecretsConfig Secret Store 配置（工具凭证等）
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // vault | env | memory
	Config   map[string]string `mapstructure:"config"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}
	return &config, nil
}

// LoadAPIConfig 加载 API 配置并合并 pipeline 定义
func LoadAPIConfig() (*Config, error) {
	return loadWithPipeline("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置并合并 pipeline 定义
func LoadWorkerConfig() (*Config, error) {
	return loadWithPipeline("configs/worker.yaml")
}

// loadWithPipeline 加载主配置并合并同目录下的 pipeline.yaml；pipeline 路径解析为与
// 主配置同目录，避免 cwd 导致 pipeline.yaml 未加载。Stage 链缺失或非法时由
// pipeline.Load 在启动时快速失败，这里不做校验。
func loadWithPipeline(mainPath string) (*Config, error) {
	cfg, err := LoadConfig(mainPath)
	if err != nil {
		return nil, err
	}
	if len(cfg.Pipeline.Stages) > 0 {
		return cfg, nil
	}
	pipelinePath := filepath.Join(filepath.Dir(mainPath), "pipeline.yaml")
	if abs, errAbs := filepath.Abs(mainPath); errAbs == nil {
		pipelinePath = filepath.Join(filepath.Dir(abs), "pipeline.yaml")
	}
	pipelineCfg, err := LoadConfig(pipelinePath)
	if err != nil {
		return cfg, nil
	}
	cfg.Pipeline = pipelineCfg.Pipeline
	return cfg, nil
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
