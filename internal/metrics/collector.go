// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法对 nil 接收者是空操作，调用方无需判空。
type Collector struct {
	// 单次 HTTP 往返（一轮）
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	// 一次 chat / chatStream 调用
	llmCallsTotal *prometheus.CounterVec
	llmToolRounds *prometheus.HistogramVec
	llmRetries    *prometheus.CounterVec

	// 工具执行
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时使用 prometheus.DefaultRegisterer。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of upstream LLM HTTP requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Upstream LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 360},
		},
		[]string{"provider", "model"},
	)

	c.llmCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of chat calls by outcome",
		},
		[]string{"provider", "mode", "outcome"},
	)

	c.llmToolRounds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_tool_rounds",
			Help:      "Request/response rounds used per chat call",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 12},
		},
		[]string{"provider"},
	)

	c.llmRetries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Total number of retried chat attempts by error kind",
		},
		[]string{"provider", "kind"},
	)

	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	c.toolCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordLLMRequest 记录一次上游 HTTP 往返
func (c *Collector) RecordLLMRequest(provider, model string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, statusCode(status)).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordCall 记录一次 chat 调用的最终结果（ok / error / config_error / exhausted）
func (c *Collector) RecordCall(provider, mode, outcome string) {
	if c == nil {
		return
	}
	c.llmCallsTotal.WithLabelValues(provider, mode, outcome).Inc()
}

// RecordRounds 记录一次调用使用的轮数
func (c *Collector) RecordRounds(provider string, rounds int) {
	if c == nil {
		return
	}
	c.llmToolRounds.WithLabelValues(provider).Observe(float64(rounds))
}

// RecordRetry 记录一次重试
func (c *Collector) RecordRetry(provider, kind string) {
	if c == nil {
		return
	}
	c.llmRetries.WithLabelValues(provider, kind).Inc()
}

// RecordToolCall 记录一次工具执行
func (c *Collector) RecordToolCall(tool string, success bool, duration time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码归类为 2xx / 4xx / 5xx，0 表示传输层失败
func statusCode(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
