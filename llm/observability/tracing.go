package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/sunflowermm/XRK-Yunzai-sub003/llm"

// Span 名称
const (
	SpanCall  = "llm.call"
	SpanRound = "llm.round"
	SpanTool  = "llm.tool"
)

// Tracer 为一次调用、每一轮 HTTP 往返与每个工具调用创建 OpenTelemetry span。
// nil *Tracer 可直接使用，此时 span 来自全局 TracerProvider（默认 no-op）。
type Tracer struct {
	otelTrace oteltrace.Tracer
	logger    *zap.Logger
}

// NewTracer wraps otelTracer. A nil otelTracer uses otel.Tracer from the global provider.
func NewTracer(otelTracer oteltrace.Tracer, logger *zap.Logger) *Tracer {
	if otelTracer == nil {
		otelTracer = otel.Tracer(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{
		otelTrace: otelTracer,
		logger:    logger.With(zap.String("component", "tracer")),
	}
}

func (t *Tracer) tracer() oteltrace.Tracer {
	if t == nil || t.otelTrace == nil {
		return otel.Tracer(instrumentationName)
	}
	return t.otelTrace
}

// StartCall 开始一次 chat / chatStream 调用的 span。
func (t *Tracer) StartCall(ctx context.Context, provider, model string, stream bool) (context.Context, oteltrace.Span) {
	return t.tracer().Start(ctx, SpanCall, oteltrace.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
		attribute.Bool("llm.stream", stream),
	))
}

// StartRound 开始一轮请求/响应的 span，round 从 1 开始。
func (t *Tracer) StartRound(ctx context.Context, provider string, round int) (context.Context, oteltrace.Span) {
	return t.tracer().Start(ctx, SpanRound, oteltrace.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.Int("llm.round", round),
	))
}

// StartTool 开始一次工具执行的 span。
func (t *Tracer) StartTool(ctx context.Context, name, callID string) (context.Context, oteltrace.Span) {
	return t.tracer().Start(ctx, SpanTool, oteltrace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.call_id", callID),
	))
}

// End records err on span (if any) and ends it.
func End(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
