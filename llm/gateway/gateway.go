package gateway

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/internal/metrics"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/factory"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/retry"
)

// ErrorPrefix 是流式调用失败时终止 delta 的前缀。
const ErrorPrefix = "[ERROR] "

// 以哨兵值结束的调用结果标签：重试耗尽 / 不可重试错误
const (
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "error"
)

// Gateway 组合 Provider 工厂与重试策略。
type Gateway struct {
	factory *factory.Factory
	policy  retry.Policy
	metrics *metrics.Collector
	logger  *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithMetrics records retries and sentinel outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Gateway) { g.metrics = c }
}

// New creates a gateway. policy is normalized on every call.
func New(f *factory.Factory, policy retry.Policy, opts ...Option) *Gateway {
	g := &Gateway{factory: f, policy: policy}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.logger = g.logger.With(zap.String("component", "llm_gateway"))
	return g
}

// Policy returns the retry policy in use.
func (g *Gateway) Policy() retry.Policy { return g.policy.Normalize() }

// Factory returns the underlying provider factory.
func (g *Gateway) Factory() *factory.Factory { return g.factory }

// Chat 返回最终回复。ok=false 表示调用失败且已放弃（哨兵值）；
// err 仅在配置错误时非 nil。
func (g *Gateway) Chat(ctx context.Context, cfg config.ProviderConfig, messages []llm.Message, ov llm.Overrides) (string, bool, error) {
	client, err := g.prepare(ctx, cfg, ov)
	if err != nil {
		return "", false, err
	}

	start := time.Now()
	reply, err := retry.Do(ctx, g.retrier(client.Name()), func(ctx context.Context) (string, error) {
		return client.Chat(ctx, messages, ov)
	})
	if err != nil {
		if llm.IsConfigError(err) {
			return "", false, err
		}
		g.giveUp(client.Name(), "chat", err, time.Since(start))
		return "", false, nil
	}
	return reply, true, nil
}

// ChatStream 通过 onDelta 推送增量文本。除配置错误外从不返回错误：
// 失败时推送一次 "[ERROR] <message>" 后返回 nil。
func (g *Gateway) ChatStream(ctx context.Context, cfg config.ProviderConfig, messages []llm.Message,
	onDelta llm.DeltaFunc, ov llm.Overrides) error {

	if onDelta == nil {
		onDelta = func(string, *llm.DeltaMetadata) {}
	}
	client, err := g.prepare(ctx, cfg, ov)
	if err != nil {
		return err
	}

	start := time.Now()
	err = g.retrier(client.Name()).Stream(ctx, onDelta, func(ctx context.Context, sink llm.DeltaFunc) error {
		return client.ChatStream(ctx, messages, sink, ov)
	})
	if err != nil {
		if llm.IsConfigError(err) {
			return err
		}
		g.giveUp(client.Name(), "stream", err, time.Since(start))
		onDelta(ErrorPrefix+Message(err), nil)
	}
	return nil
}

// prepare 创建客户端并在发出请求前校验配置。
func (g *Gateway) prepare(ctx context.Context, cfg config.ProviderConfig, ov llm.Overrides) (llm.Client, error) {
	client, err := g.factory.Create(cfg)
	if err != nil {
		return nil, err
	}
	if checker, ok := client.(llm.ConfigChecker); ok {
		if err := checker.CheckConfig(ctx, ov); err != nil {
			g.metrics.RecordCall(client.Name(), "check", "config_error")
			return nil, err
		}
	}
	return client, nil
}

func (g *Gateway) retrier(provider string) *retry.Retrier {
	return retry.New(g.policy, g.logger.With(zap.String("provider", provider)),
		retry.WithOnRetry(func(attempt int, err error, c retry.Classification, delay time.Duration) {
			for _, kind := range c.Kinds() {
				g.metrics.RecordRetry(provider, string(kind))
			}
		}))
}

func (g *Gateway) giveUp(provider, mode string, err error, elapsed time.Duration) {
	attempts, outcome := 1, OutcomeFailed
	if retry.IsExhausted(err) {
		var ex *retry.ExhaustedError
		errors.As(err, &ex)
		attempts, outcome = ex.Attempts, OutcomeExhausted
	}
	g.logger.Warn("llm call failed",
		zap.String("provider", provider),
		zap.String("mode", mode),
		zap.Int("attempts", attempts),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))
	g.metrics.RecordCall(provider, mode, outcome)
}

// Message 返回面向用户的错误文本：优先使用上游错误的 Message。
func Message(err error) string {
	if err == nil {
		return ""
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) && llmErr.Message != "" {
		return llmErr.Message
	}
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) && ex.Err != nil {
		return ex.Err.Error()
	}
	return err.Error()
}
