package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/multimodal"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/observability"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/streaming"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/tools"
)

// 调用结果，用于指标标签
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeConfigError = "config_error"
)

// Request 是一轮请求的输入：当前消息列表、本次调用解析后的配置与覆盖参数。
type Request struct {
	Messages  []llm.Message
	Config    config.ProviderConfig
	Overrides llm.Overrides
	Tools     ToolSource
	Stream    bool
}

// Dialect 描述一种厂商协议。共享的轮次循环（Client）负责发送、重试之外的一切流程控制，
// Dialect 只负责协议差异：端点、请求体、响应解析与流式消费。
type Dialect interface {
	// Defaults 返回厂商静态默认配置（base URL、默认模型、鉴权模式、固定请求头……）。
	Defaults() config.ProviderConfig
	// Validate 在任何网络请求之前检查配置，失败返回 *llm.ConfigError。
	Validate(cfg config.ProviderConfig) error
	Endpoint(cfg config.ProviderConfig, stream bool) (string, error)
	BuildRequest(ctx context.Context, req Request) (any, error)
	ParseResponse(data []byte) (streaming.Result, error)
	ConsumeStream(ctx context.Context, body io.Reader, provider string, onText streaming.TextFunc) (streaming.Result, error)
}

// =============================================================================
// Client
// =============================================================================

// Client 实现 llm.Client：归一化 → 构建 → 发送 →（有工具调用则执行工具并追加结果，重复发送）→ 返回。
// 轮数受 MaxToolRounds 限制，达到上限时返回最后一次得到的 assistant 文本而不是报错。
type Client struct {
	name    string
	dialect Dialect
	base    config.ProviderConfig
	deps    Deps
	adapter *tools.Adapter
	logger  *zap.Logger
}

var (
	_ llm.Client        = (*Client)(nil)
	_ llm.ConfigChecker = (*Client)(nil)
)

// NewClient creates a client. cfg is layered on top of the dialect defaults.
func NewClient(name string, dialect Dialect, cfg config.ProviderConfig, deps Deps) *Client {
	deps = deps.WithDefaults()
	base := config.Merge(dialect.Defaults(), cfg)
	base.Provider = name
	logger := deps.Logger.With(zap.String("provider", name))
	return &Client{
		name:    name,
		dialect: dialect,
		base:    base,
		deps:    deps,
		adapter: newAdapter(deps, base.ToolStreams, logger),
		logger:  logger,
	}
}

func newAdapter(deps Deps, streams []string, logger *zap.Logger) *tools.Adapter {
	return tools.NewAdapter(deps.Tools, streams,
		tools.WithLogger(logger),
		tools.WithMetrics(deps.Metrics),
		tools.WithTracer(deps.Tracer))
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// Config returns the instance configuration (dialect defaults + caller config).
func (c *Client) Config() config.ProviderConfig { return c.base }

// Resolve returns the immutable per-call configuration.
func (c *Client) Resolve(ov llm.Overrides) config.ProviderConfig {
	return config.Resolve(c.base, ov.Layer())
}

// CheckConfig validates the resolved configuration without network activity.
func (c *Client) CheckConfig(ctx context.Context, ov llm.Overrides) error {
	return c.check(ctx, c.Resolve(ov))
}

func (c *Client) check(ctx context.Context, cfg config.ProviderConfig) error {
	if err := c.dialect.Validate(cfg); err != nil {
		return err
	}
	if RequiresKey(cfg.AuthMode, AuthBearer) && ResolveAPIKey(ctx, cfg) == "" {
		return &llm.ConfigError{Provider: c.name, Field: "api_key", Reason: "is required"}
	}
	return nil
}

// Chat 返回最终的 assistant 文本。
func (c *Client) Chat(ctx context.Context, messages []llm.Message, ov llm.Overrides) (string, error) {
	return c.call(ctx, messages, nil, ov, false)
}

// ChatStream 通过 onDelta 推送增量文本；使用了工具的轮次结束后推送一次携带 ToolInvocations 的元数据事件。
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, onDelta llm.DeltaFunc, ov llm.Overrides) error {
	if onDelta == nil {
		onDelta = func(string, *llm.DeltaMetadata) {}
	}
	_, err := c.call(ctx, messages, onDelta, ov, true)
	return err
}

func (c *Client) call(ctx context.Context, messages []llm.Message, onDelta llm.DeltaFunc, ov llm.Overrides, stream bool) (string, error) {
	mode := "chat"
	if stream {
		mode = "stream"
	}

	cfg := c.Resolve(ov)
	if err := c.check(ctx, cfg); err != nil {
		c.deps.Metrics.RecordCall(c.name, mode, OutcomeConfigError)
		return "", err
	}

	ctx, span := c.deps.Tracer.StartCall(ctx, c.name, cfg.Model, stream)
	content, rounds, err := c.run(ctx, cfg, ov, messages, onDelta, stream)
	observability.End(span, err)

	c.deps.Metrics.RecordRounds(c.name, rounds)
	if err != nil {
		c.deps.Metrics.RecordCall(c.name, mode, OutcomeError)
		return "", err
	}
	c.deps.Metrics.RecordCall(c.name, mode, OutcomeOK)
	return content, nil
}

// run 执行轮次循环，返回最终文本与实际使用的轮数。
// 第 k+1 轮请求只会在第 k 轮的工具结果追加进消息列表之后发出。
func (c *Client) run(ctx context.Context, cfg config.ProviderConfig, ov llm.Overrides, messages []llm.Message,
	onDelta llm.DeltaFunc, stream bool) (string, int, error) {

	hc, err := c.deps.HTTPClient(cfg)
	if err != nil {
		return "", 0, &llm.ConfigError{Provider: c.name, Field: "proxy", Reason: err.Error()}
	}

	adapter := c.adapter
	if ov.Config.ToolStreams != nil {
		adapter = newAdapter(c.deps, cfg.ToolStreams, c.logger)
	}

	var onText streaming.TextFunc
	if stream {
		onText = func(text string) { onDelta(text, nil) }
	}

	msgs := multimodal.Normalize(messages, cfg.ContentMode, cfg.DefaultImageMIME)
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = config.DefaultMaxToolRounds
	}

	var last string
	for round := 1; round <= maxRounds; round++ {
		req := Request{Messages: msgs, Config: cfg, Overrides: ov, Tools: adapter, Stream: stream}
		res, err := c.round(ctx, hc, req, round, onText)
		if err != nil {
			return "", round, err
		}
		if res.Content != "" {
			last = res.Content
		}

		c.logger.Debug("round completed",
			zap.Int("round", round),
			zap.Int("tool_calls", len(res.ToolCalls)),
			zap.String("finish_reason", res.FinishReason))

		if len(res.ToolCalls) == 0 {
			return last, round, nil
		}
		if round == maxRounds {
			break
		}

		results := adapter.ExecuteAll(ctx, res.ToolCalls)
		assistant := llm.Message{Role: llm.RoleAssistant, Content: llm.NullContent(), ToolCalls: res.ToolCalls}
		if res.Content != "" {
			assistant.Content = llm.TextContent(res.Content)
		}
		msgs = append(msgs, assistant)
		msgs = append(msgs, results...)

		if stream {
			onDelta("", &llm.DeltaMetadata{ToolInvocations: tools.Invocations(res.ToolCalls, results)})
		}
	}

	c.logger.Warn("max tool rounds reached", zap.Int("max_tool_rounds", maxRounds))
	return last, maxRounds, nil
}

func (c *Client) round(ctx context.Context, hc *http.Client, req Request, round int, onText streaming.TextFunc) (streaming.Result, error) {
	ctx, span := c.deps.Tracer.StartRound(ctx, c.name, round)
	res, err := c.roundTrip(ctx, hc, req, onText)
	observability.End(span, err)
	return res, err
}

// roundTrip 发送一次 HTTP 请求。非 2xx 响应是本轮的硬失败，错误中携带状态码与响应体。
// 响应体结构不符合预期时视为"本轮无回答"，不报错。
func (c *Client) roundTrip(ctx context.Context, hc *http.Client, req Request, onText streaming.TextFunc) (streaming.Result, error) {
	cfg := req.Config

	body, err := c.dialect.BuildRequest(ctx, req)
	if err != nil {
		return streaming.Result{}, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return streaming.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint, err := c.dialect.Endpoint(cfg, req.Stream)
	if err != nil {
		return streaming.Result{}, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return streaming.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	ApplyAuth(httpReq, cfg.AuthMode, AuthBearer, ResolveAPIKey(ctx, cfg))

	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		c.deps.Metrics.RecordLLMRequest(c.name, cfg.Model, 0, time.Since(start))
		return streaming.Result{}, TransportError(err, c.name)
	}
	defer SafeCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.deps.Metrics.RecordLLMRequest(c.name, cfg.Model, resp.StatusCode, time.Since(start))
		e := ReadError(resp, c.name)
		c.logger.Warn("upstream returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("code", string(e.Code)),
			zap.String("message", e.Message))
		return streaming.Result{}, e
	}

	var res streaming.Result
	if req.Stream {
		res, err = c.dialect.ConsumeStream(ctx, resp.Body, c.name, onText)
	} else {
		res, err = c.readResponse(resp.Body)
	}
	c.deps.Metrics.RecordLLMRequest(c.name, cfg.Model, resp.StatusCode, time.Since(start))
	if err != nil {
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			return streaming.Result{}, llmErr
		}
		return streaming.Result{}, TransportError(err, c.name)
	}
	return res, nil
}

func (c *Client) readResponse(body io.Reader) (streaming.Result, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return streaming.Result{}, err
	}
	res, err := c.dialect.ParseResponse(data)
	if err != nil {
		c.logger.Warn("malformed response, treating round as empty",
			zap.Error(MalformedError(err, c.name)),
			zap.String("body", truncate(string(data), 512)))
		return streaming.Result{}, nil
	}
	return res, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ====== 配置校验辅助 ======

// RequireBaseURL returns a ConfigError when cfg has no base URL.
func RequireBaseURL(cfg config.ProviderConfig, provider string) error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return &llm.ConfigError{Provider: provider, Field: "base_url", Reason: "is required"}
	}
	return nil
}

// JoinURL joins base and path with exactly one slash.
func JoinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}
