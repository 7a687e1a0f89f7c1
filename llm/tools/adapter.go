package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sunflowermm/XRK-Yunzai-sub003/internal/metrics"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/cache"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/observability"
)

// ErrServiceUnavailable 是未配置注册表时合成的错误信息。
const ErrServiceUnavailable = "tool service unavailable"

// Adapter 连接工具注册表与厂商协议：生成函数声明、并发执行工具调用、打包结果消息。
// 每个 Provider 客户端实例持有一个 Adapter，名称映射缓存随实例存在，条目 5 分钟过期。
type Adapter struct {
	registry Registry
	streams  []string
	names    *cache.TTLCache[string] // 清洗后名称 → 注册表原名
	logger   *zap.Logger
	metrics  *metrics.Collector
	tracer   *observability.Tracer
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records tool executions on c.
func WithMetrics(c *metrics.Collector) AdapterOption {
	return func(a *Adapter) { a.metrics = c }
}

// WithTracer wraps every tool execution in a span.
func WithTracer(t *observability.Tracer) AdapterOption {
	return func(a *Adapter) { a.tracer = t }
}

// NewAdapter creates an adapter. registry may be nil: declarations are then empty and every
// call resolves to a "tool service unavailable" result. streams filters ListTools; empty
// means all tools.
func NewAdapter(registry Registry, streams []string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		registry: registry,
		streams:  append([]string(nil), streams...),
		names:    cache.NewTTLCache[string](0, cache.DefaultTTL),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "tool_adapter"))
	return a
}

// Declarations converts the registry tools into OpenAI-style function declarations.
// Tools listed under several streams appear once. Names are sanitized for the vendor
// and the mapping back to registry names is remembered.
func (a *Adapter) Declarations() []llm.Tool {
	if a == nil || a.registry == nil {
		return nil
	}

	var defs []Definition
	if len(a.streams) == 0 {
		defs = a.registry.ListTools("")
	} else {
		seen := make(map[string]bool)
		for _, s := range a.streams {
			for _, d := range a.registry.ListTools(s) {
				if !seen[d.Name] {
					seen[d.Name] = true
					defs = append(defs, d)
				}
			}
		}
	}

	out := make([]llm.Tool, 0, len(defs))
	taken := make(map[string]bool, len(defs))
	for _, d := range defs {
		name := uniqueName(SanitizeName(d.Name), taken)
		taken[name] = true
		if name != d.Name {
			a.names.Set(name, d.Name)
		}
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.FunctionDefinition{
				Name:        name,
				Description: d.Description,
				Parameters:  NormalizeSchema(d.InputSchema),
			},
		})
	}
	return out
}

// ResolveName maps a vendor-facing (sanitized) name back to the registry name.
func (a *Adapter) ResolveName(name string) string {
	if a == nil {
		return name
	}
	if original, ok := a.names.Get(name); ok {
		return original
	}
	return name
}

// ExecuteAll dispatches every call concurrently and returns one tool message per call,
// in the order of calls. A failing call yields {"success":false,"error":...} and never
// affects the others.
func (a *Adapter) ExecuteAll(ctx context.Context, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, len(calls))

	// 并发执行所有工具调用，结果按下标写回
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = llm.ToolMessage(call.ID, call.Function.Name, a.executeOne(ctx, call))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Adapter) executeOne(ctx context.Context, call llm.ToolCall) string {
	if a == nil || a.registry == nil {
		return failureJSON(ErrServiceUnavailable)
	}

	name := a.ResolveName(call.Function.Name)
	start := time.Now()
	ctx, span := a.tracer.StartTool(ctx, name, call.ID)

	res, err := a.dispatch(ctx, Call{Name: name, Arguments: call.ParseArguments()})
	duration := time.Since(start)
	observability.End(span, err)

	if err != nil {
		a.logger.Error("tool execution failed",
			zap.String("name", name),
			zap.Error(err),
			zap.Duration("duration", duration))
		a.metrics.RecordToolCall(name, false, duration)
		return failureJSON(err.Error())
	}

	a.metrics.RecordToolCall(name, !res.IsError, duration)
	a.logger.Debug("tool executed",
		zap.String("name", name),
		zap.Bool("is_error", res.IsError),
		zap.Duration("duration", duration))

	text := res.Text()
	if res.IsError && !json.Valid([]byte(text)) {
		return failureJSON(text)
	}
	return text
}

// Invocations builds the display payload {name, arguments, result} per call for the
// delta sink's metadata channel. results must be the ExecuteAll output for calls.
func Invocations(calls []llm.ToolCall, results []llm.Message) []llm.ToolInvocation {
	out := make([]llm.ToolInvocation, len(calls))
	for i, call := range calls {
		inv := llm.ToolInvocation{Name: call.Function.Name, Arguments: call.ParseArguments()}
		if i < len(results) {
			inv.Result = results[i].Content.PlainText()
		}
		out[i] = inv
	}
	return out
}

// NormalizeSchema returns an object schema suitable for a function declaration.
// Missing or malformed schemas become {"type":"object","properties":{}}.
func NormalizeSchema(raw json.RawMessage) json.RawMessage {
	schema := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
			schema = map[string]any{}
		}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if schema["type"] == "object" {
		if _, ok := schema["properties"]; !ok {
			schema["properties"] = map[string]any{}
		}
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return b
}

func failureJSON(msg string) string {
	b, _ := json.Marshal(map[string]any{"success": false, "error": msg})
	return string(b)
}

// dispatch 调用注册表；注册表内部的 panic 转为错误，不会越过适配层
func (a *Adapter) dispatch(ctx context.Context, call Call) (res CallResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("tool registry panicked",
				zap.String("name", call.Name),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return a.registry.HandleToolCall(ctx, call)
}
