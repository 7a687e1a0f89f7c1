package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func newTestCollector() *Collector {
	return NewCollector(nextTestNamespace(), prometheus.NewRegistry(), zap.NewNop())
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := newTestCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmRequestDuration)
	assert.NotNil(t, collector.llmCallsTotal)
	assert.NotNil(t, collector.llmRetries)
	assert.NotNil(t, collector.toolCallsTotal)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := newTestCollector()

	collector.RecordLLMRequest("openai", "gpt-4o", 200, 100*time.Millisecond)
	collector.RecordLLMRequest("openai", "gpt-4o", 200, 50*time.Millisecond)
	collector.RecordLLMRequest("openai", "gpt-4o", 429, 10*time.Millisecond)
	collector.RecordLLMRequest("openai", "gpt-4o", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("openai", "gpt-4o", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("openai", "gpt-4o", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("openai", "gpt-4o", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.llmRequestDuration))
}

func TestCollector_RecordCallAndRetry(t *testing.T) {
	collector := newTestCollector()

	collector.RecordCall("gemini", "stream", "ok")
	collector.RecordCall("gemini", "stream", "exhausted")
	collector.RecordRetry("gemini", "rate_limit")
	collector.RecordRetry("gemini", "rate_limit")
	collector.RecordRounds("gemini", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.llmCallsTotal.WithLabelValues("gemini", "stream", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.llmRetries.WithLabelValues("gemini", "rate_limit")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.llmToolRounds))
}

func TestCollector_RecordToolCall(t *testing.T) {
	collector := newTestCollector()

	collector.RecordToolCall("search", true, 20*time.Millisecond)
	collector.RecordToolCall("search", false, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.toolCallsTotal.WithLabelValues("search", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.toolCallsTotal.WithLabelValues("search", "error")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector
	assert.NotPanics(t, func() {
		collector.RecordLLMRequest("p", "m", 200, time.Second)
		collector.RecordCall("p", "chat", "ok")
		collector.RecordRounds("p", 1)
		collector.RecordRetry("p", "timeout")
		collector.RecordToolCall("t", true, time.Second)
	})
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{0, "error"},
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{529, "5xx"},
		{-1, "unknown"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusCode(tt.code))
		})
	}
}
