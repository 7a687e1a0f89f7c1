package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Result 是本地工具处理函数的返回值：成功时携带 Data，失败时携带 Error。
// 处理函数通过返回值报告失败，而不是 panic。
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK builds a successful result.
func OK(data any) Result { return Result{Success: true, Data: data} }

// Fail builds a failed result.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Handler 本地工具处理函数。
type Handler func(ctx context.Context, args map[string]any) Result

// Spec 描述一个本地工具。
type Spec struct {
	Name        string          // 工具名
	Description string          // 描述
	InputSchema json.RawMessage // JSON Schema，可为空
	Streams     []string        // 所属能力流，空表示只在未过滤时列出
	Timeout     time.Duration   // 执行超时（默认 30s）
	RateLimit   *RateLimitConfig
}

// RateLimitConfig defines rate limit configuration.
type RateLimitConfig struct {
	MaxCalls int           // Maximum calls
	Window   time.Duration // Time window
}

// Errors returned by LocalRegistry.HandleToolCall.
var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

type localTool struct {
	spec    Spec
	handler Handler
	limiter *rate.Limiter
}

// ====== 实现：LocalRegistry ======

// LocalRegistry 是进程内的工具注册表，实现 Registry 接口。
type LocalRegistry struct {
	mu     sync.RWMutex
	tools  map[string]*localTool
	logger *zap.Logger
}

// NewLocalRegistry 创建本地工具注册表。
func NewLocalRegistry(logger *zap.Logger) *LocalRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalRegistry{
		tools:  make(map[string]*localTool),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool. Names must be unique.
func (r *LocalRegistry) Register(spec Spec, handler Handler) error {
	if spec.Name == "" {
		return errors.New("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is nil", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}

	// 设置默认超时
	if spec.Timeout == 0 {
		spec.Timeout = 30 * time.Second
	}

	t := &localTool{spec: spec, handler: handler}
	if rl := spec.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		t.limiter = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}
	r.tools[spec.Name] = t

	r.logger.Info("tool registered", zap.String("name", spec.Name), zap.Duration("timeout", spec.Timeout))
	return nil
}

// Unregister removes a tool.
func (r *LocalRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s not found", name)
	}
	delete(r.tools, name)

	r.logger.Info("tool unregistered", zap.String("name", name))
	return nil
}

// Has reports whether name is registered.
func (r *LocalRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// ListTools returns definitions sorted by name. A non-empty stream keeps only tools tagged with it.
func (r *LocalRegistry) ListTools(stream string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		if stream != "" && !contains(t.spec.Streams, stream) {
			continue
		}
		defs = append(defs, Definition{
			Name:        t.spec.Name,
			Description: t.spec.Description,
			InputSchema: t.spec.InputSchema,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// HandleToolCall runs the handler with its timeout. Handler failures and panics come back as
// an IsError result; unknown tools and rate limiting are returned as errors.
func (r *LocalRegistry) HandleToolCall(ctx context.Context, call Call) (CallResult, error) {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return CallResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}

	if t.limiter != nil && !t.limiter.Allow() {
		r.logger.Warn("rate limit exceeded", zap.String("name", call.Name))
		return CallResult{}, fmt.Errorf("%w: %s", ErrRateLimitExceeded, call.Name)
	}

	execCtx, cancel := context.WithTimeout(ctx, t.spec.Timeout)
	defer cancel()

	// 带缓冲的 channel，超时后 goroutine 仍能退出
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("tool panicked",
					zap.String("name", call.Name),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()))
				done <- Fail("tool panicked: %v", p)
			}
		}()
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		done <- t.handler(execCtx, args)
	}()

	var res Result
	select {
	case res = <-done:
	case <-execCtx.Done():
		res = Fail("execution timeout after %s", t.spec.Timeout)
		r.logger.Error("tool execution timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", t.spec.Timeout))
	}

	return toCallResult(res), nil
}

// toCallResult encodes a Result: string data is passed through as plain text,
// anything else is JSON-encoded; failures become {"success":false,"error":...}.
func toCallResult(res Result) CallResult {
	if !res.Success {
		return CallResult{Content: []ContentItem{{Type: "text", Text: failureJSON(res.Error)}}, IsError: true}
	}
	if s, ok := res.Data.(string); ok {
		return CallResult{Content: []ContentItem{{Type: "text", Text: s}}}
	}
	b, err := json.Marshal(res.Data)
	if err != nil {
		return CallResult{Content: []ContentItem{{Type: "text", Text: failureJSON(err.Error())}}, IsError: true}
	}
	return CallResult{Content: []ContentItem{{Type: "text", Text: string(b)}}}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
