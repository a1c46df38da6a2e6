package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		JobTotal, JobDuration,
		StageDuration, StageFailTotal,
		QueueDepth, WorkerBusy,
		ToolDuration, NotifierSubscribers,
		PublishRetryTotal,
	)
}

// JobTotal Job 总数（按终态）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docflow_job_total",
		Help: "Job 总数（按终态）",
	},
	[]string{"status"}, // completed | failed
)

// JobDuration Job 从提交到终态的耗时（秒）
var JobDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "docflow_job_duration_seconds",
		Help:    "Job 从提交到终态的耗时（秒）",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	},
)

// StageDuration Stage Handler 执行耗时（秒）
var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "docflow_stage_duration_seconds",
		Help:    "Stage Handler 执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"},
)

// StageFailTotal Stage 失败总数（含超时）
var StageFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docflow_stage_fail_total",
		Help: "Stage 失败总数",
	},
	[]string{"stage", "reason"}, // handler | timeout
)

// QueueDepth 各 Stage 队列当前深度
var QueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "docflow_queue_depth",
		Help: "各 Stage 队列当前深度",
	},
	[]string{"stage"},
)

// WorkerBusy 当前正在执行任务的 Worker 数（每 Stage）
var WorkerBusy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "docflow_worker_busy",
		Help: "当前正在执行任务的 Worker 数",
	},
	[]string{"stage"},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "docflow_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// NotifierSubscribers 当前活跃的实时订阅连接数
var NotifierSubscribers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "docflow_notifier_subscribers",
		Help: "当前活跃的实时订阅连接数",
	},
)

// PublishRetryTotal 事件发布重试总数（broker 不可达）
var PublishRetryTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "docflow_publish_retry_total",
		Help: "事件发布重试总数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
