package llm

import (
	"context"
	"encoding/json"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
)

// FunctionDefinition 是厂商函数声明中的函数部分。
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"` // JSON Schema
}

// Tool 是 OpenAI 风格的工具声明 {type:"function", function:{...}}。
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// ToolInvocation is the per-call display payload forwarded to a caller-side UI.
type ToolInvocation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    string         `json:"result"`
}

// DeltaMetadata 随增量一起下发的元数据。
type DeltaMetadata struct {
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`
}

// DeltaFunc receives streamed output. text may be empty when only metadata is carried.
type DeltaFunc func(text string, meta *DeltaMetadata)

// Overrides 单次调用的覆盖参数，优先级高于实例配置。
// 指针字段为 nil 表示未设置。
type Overrides struct {
	Model             string             `json:"model,omitempty"`
	Temperature       *float64           `json:"temperature,omitempty"`
	MaxTokens         *int               `json:"max_tokens,omitempty"`
	TopP              *float64           `json:"top_p,omitempty"`
	PresencePenalty   *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64           `json:"frequency_penalty,omitempty"`
	Stop              []string           `json:"stop,omitempty"`
	ResponseFormat    any                `json:"response_format,omitempty"`
	Seed              *int               `json:"seed,omitempty"`
	LogitBias         map[string]float64 `json:"logit_bias,omitempty"`
	User              string             `json:"user,omitempty"`
	ToolChoice        any                `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool              `json:"parallel_tool_calls,omitempty"`
	ExtraBody         map[string]any     `json:"extra_body,omitempty"`
	Headers           map[string]string  `json:"headers,omitempty"`

	// Tools, when non-nil, replaces the registry tools for this call.
	// A non-nil empty slice disables tools.
	Tools []Tool `json:"tools,omitempty"`

	// Config overlays provider settings (base URL, API key, timeout, max tool rounds, ...).
	Config config.ProviderConfig `json:"-"`
}

// Layer converts the overrides into a config layer so they can take part in Resolve.
func (o Overrides) Layer() config.ProviderConfig {
	l := o.Config
	if o.Model != "" {
		l.Model = o.Model
	}
	if o.Temperature != nil {
		l.Temperature = o.Temperature
	}
	if o.MaxTokens != nil {
		l.MaxTokens = o.MaxTokens
	}
	if o.TopP != nil {
		l.TopP = o.TopP
	}
	if o.PresencePenalty != nil {
		l.PresencePenalty = o.PresencePenalty
	}
	if o.FrequencyPenalty != nil {
		l.FrequencyPenalty = o.FrequencyPenalty
	}
	if s, ok := o.ToolChoice.(string); ok && s != "" {
		l.ToolChoice = s
	}
	if o.ParallelToolCalls != nil {
		l.ParallelToolCalls = o.ParallelToolCalls
	}
	if len(o.Headers) > 0 {
		l.Headers = mergeStrings(l.Headers, o.Headers)
	}
	if len(o.ExtraBody) > 0 {
		l.ExtraBody = mergeAny(l.ExtraBody, o.ExtraBody)
	}
	return l
}

// ToolsExplicit reports whether the caller passed Tools explicitly.
func (o Overrides) ToolsExplicit() bool {
	return o.Tools != nil
}

// Client 是统一的厂商客户端接口。
//
// Chat 返回最终的 assistant 文本；ChatStream 通过 onDelta 增量推送，
// 若某轮使用了工具，onDelta 会收到携带 ToolInvocations 的元数据事件。
type Client interface {
	Name() string
	Chat(ctx context.Context, messages []Message, overrides Overrides) (string, error)
	ChatStream(ctx context.Context, messages []Message, onDelta DeltaFunc, overrides Overrides) error
}

// ConfigChecker is implemented by clients that can validate a call's resolved
// configuration before any network activity.
type ConfigChecker interface {
	CheckConfig(ctx context.Context, overrides Overrides) error
}

func mergeStrings(base, top map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

func mergeAny(base, top map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}
