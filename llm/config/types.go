// Package config holds the provider configuration model and its layered resolution.
package config

import (
	"strings"
	"time"
)

// ContentMode 决定消息归一化方式：多模态数组或纯文本展开。
type ContentMode string

const (
	ModeMultimodal ContentMode = "multimodal"
	ModeTextOnly   ContentMode = "text_only"
)

// Hard-coded defaults, the lowest resolution layer.
const (
	DefaultTimeout          = 360 * time.Second
	DefaultMaxToolRounds    = 5
	DefaultImageMIME        = "image/png"
	DefaultTemperature      = 0.7
	DefaultProviderFallback = "openai"
)

// ProviderConfig 单个 Provider 的配置。
// 解析优先级：单次调用覆盖 > 实例配置 > 外部 Provider 配置 > 厂商默认 > 硬编码默认。
// 字符串为空（BaseURL/APIKey 去空白后为空）、指针为 nil、整数为 0 均视为"未设置"。
type ProviderConfig struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	BaseURL    string            `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey     string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	AuthMode   string            `json:"auth_mode,omitempty" yaml:"auth_mode,omitempty"` // bearer | api-key | x-api-key | header:<Name> | query | none
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Path       string            `json:"path,omitempty" yaml:"path,omitempty"` // endpoint path override
	Deployment string            `json:"deployment,omitempty" yaml:"deployment,omitempty"`
	APIVersion string            `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Proxy      string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Timeout    time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Model            string         `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP             *float64       `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	ExtraBody        map[string]any `json:"extra_body,omitempty" yaml:"extra_body,omitempty"`

	MaxToolRounds     int      `json:"max_tool_rounds,omitempty" yaml:"max_tool_rounds,omitempty"`
	EnableTools       *bool    `json:"enable_tools,omitempty" yaml:"enable_tools,omitempty"`
	ToolChoice        string   `json:"tool_choice,omitempty" yaml:"tool_choice,omitempty"`
	ParallelToolCalls *bool    `json:"parallel_tool_calls,omitempty" yaml:"parallel_tool_calls,omitempty"`
	ToolStreams       []string `json:"tool_streams,omitempty" yaml:"tool_streams,omitempty"`

	ContentMode      ContentMode `json:"content_mode,omitempty" yaml:"content_mode,omitempty"`
	DefaultImageMIME string      `json:"default_image_mime,omitempty" yaml:"default_image_mime,omitempty"`
}

// Defaults returns the hard-coded default layer.
func Defaults() ProviderConfig {
	return ProviderConfig{
		Timeout:          DefaultTimeout,
		MaxToolRounds:    DefaultMaxToolRounds,
		ContentMode:      ModeMultimodal,
		DefaultImageMIME: DefaultImageMIME,
	}
}

// Resolve overlays layers in increasing priority on top of Defaults().
func Resolve(layers ...ProviderConfig) ProviderConfig {
	out := Defaults()
	for _, l := range layers {
		out = overlay(out, l)
	}
	return out
}

// Merge overlays layers in increasing priority without applying Defaults().
func Merge(layers ...ProviderConfig) ProviderConfig {
	var out ProviderConfig
	for _, l := range layers {
		out = overlay(out, l)
	}
	return out
}

func overlay(base, top ProviderConfig) ProviderConfig {
	out := base
	setString(&out.Provider, top.Provider)
	setTrimmed(&out.BaseURL, top.BaseURL)
	setTrimmed(&out.APIKey, top.APIKey)
	setString(&out.AuthMode, top.AuthMode)
	setString(&out.Path, top.Path)
	setString(&out.Deployment, top.Deployment)
	setString(&out.APIVersion, top.APIVersion)
	setString(&out.Proxy, top.Proxy)
	setString(&out.Model, top.Model)
	setString(&out.ToolChoice, top.ToolChoice)
	setString(&out.DefaultImageMIME, top.DefaultImageMIME)
	if top.ContentMode != "" {
		out.ContentMode = top.ContentMode
	}
	if top.Enabled != nil {
		out.Enabled = top.Enabled
	}
	if top.Timeout > 0 {
		out.Timeout = top.Timeout
	}
	if top.MaxToolRounds > 0 {
		out.MaxToolRounds = top.MaxToolRounds
	}
	if top.Temperature != nil {
		out.Temperature = top.Temperature
	}
	if top.MaxTokens != nil {
		out.MaxTokens = top.MaxTokens
	}
	if top.TopP != nil {
		out.TopP = top.TopP
	}
	if top.PresencePenalty != nil {
		out.PresencePenalty = top.PresencePenalty
	}
	if top.FrequencyPenalty != nil {
		out.FrequencyPenalty = top.FrequencyPenalty
	}
	if top.EnableTools != nil {
		out.EnableTools = top.EnableTools
	}
	if top.ParallelToolCalls != nil {
		out.ParallelToolCalls = top.ParallelToolCalls
	}
	if top.ToolStreams != nil {
		out.ToolStreams = append([]string(nil), top.ToolStreams...)
	}
	if len(top.Headers) > 0 {
		merged := make(map[string]string, len(out.Headers)+len(top.Headers))
		for k, v := range out.Headers {
			merged[k] = v
		}
		for k, v := range top.Headers {
			merged[k] = v
		}
		out.Headers = merged
	}
	if len(top.ExtraBody) > 0 {
		merged := make(map[string]any, len(out.ExtraBody)+len(top.ExtraBody))
		for k, v := range out.ExtraBody {
			merged[k] = v
		}
		for k, v := range top.ExtraBody {
			merged[k] = v
		}
		out.ExtraBody = merged
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// setTrimmed treats blank strings as unset.
func setTrimmed(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Disabled reports whether the config explicitly disables the provider.
func (c ProviderConfig) Disabled() bool {
	return c.Enabled != nil && !*c.Enabled
}

// ToolsEnabled defaults to true when EnableTools is unset.
func (c ProviderConfig) ToolsEnabled() bool {
	return c.EnableTools == nil || *c.EnableTools
}

// Float, Int and Bool return pointers for optional fields.
func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

func Bool(v bool) *bool { return &v }
