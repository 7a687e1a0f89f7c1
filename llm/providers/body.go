package providers

import (
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
)

// ToolSource 提供函数声明，*tools.Adapter 实现了它。
type ToolSource interface {
	Declarations() []llm.Tool
}

// BuildChatBody 构建 OpenAI 风格的请求体。
// 每个生成参数的优先级为 overrides > cfg；只有 model 与 temperature 有兜底默认值。
// 可选字段仅在设置时写入；cfg 与 overrides 的 ExtraBody 最后合并，可覆盖任意已计算字段。
func BuildChatBody(messages []llm.Message, cfg config.ProviderConfig, ov llm.Overrides, defaultModel string) map[string]any {
	body := map[string]any{
		"model":    firstNonEmpty(ov.Model, cfg.Model, defaultModel),
		"messages": messages,
	}

	temperature := config.DefaultTemperature
	if t := pickFloat(ov.Temperature, cfg.Temperature); t != nil {
		temperature = *t
	}
	body["temperature"] = temperature

	if v := pickInt(ov.MaxTokens, cfg.MaxTokens); v != nil {
		body["max_tokens"] = *v
	}
	if v := pickFloat(ov.TopP, cfg.TopP); v != nil {
		body["top_p"] = *v
	}
	if v := pickFloat(ov.PresencePenalty, cfg.PresencePenalty); v != nil {
		body["presence_penalty"] = *v
	}
	if v := pickFloat(ov.FrequencyPenalty, cfg.FrequencyPenalty); v != nil {
		body["frequency_penalty"] = *v
	}
	if len(ov.Stop) > 0 {
		body["stop"] = ov.Stop
	}
	if ov.ResponseFormat != nil {
		body["response_format"] = ov.ResponseFormat
	}
	if ov.Seed != nil {
		body["seed"] = *ov.Seed
	}
	if len(ov.LogitBias) > 0 {
		body["logit_bias"] = ov.LogitBias
	}
	if ov.User != "" {
		body["user"] = ov.User
	}

	MergeExtraBody(body, cfg.ExtraBody, ov.ExtraBody)
	return body
}

// MergeExtraBody copies every layer into body, later layers winning.
func MergeExtraBody(body map[string]any, layers ...map[string]any) {
	for _, layer := range layers {
		for k, v := range layer {
			body[k] = v
		}
	}
}

// SelectTools 决定本次调用声明的工具：
// overrides 显式传入的 Tools 永远优先（空切片即禁用）；否则在 EnableTools 未关闭时取注册表工具。
func SelectTools(cfg config.ProviderConfig, ov llm.Overrides, src ToolSource) []llm.Tool {
	if ov.ToolsExplicit() {
		return ov.Tools
	}
	if !cfg.ToolsEnabled() || src == nil {
		return nil
	}
	return src.Declarations()
}

// ApplyTools 在工具列表非空时写入 tools / tool_choice / parallel_tool_calls。
// 已存在的键（来自 ExtraBody）不会被覆盖。返回实际声明的工具。
func ApplyTools(body map[string]any, cfg config.ProviderConfig, ov llm.Overrides, src ToolSource) []llm.Tool {
	list := SelectTools(cfg, ov, src)
	if len(list) == 0 {
		return nil
	}

	setIfAbsent(body, "tools", list)
	setIfAbsent(body, "tool_choice", ToolChoice(cfg, ov))
	if v := pickBool(ov.ParallelToolCalls, cfg.ParallelToolCalls); v != nil {
		setIfAbsent(body, "parallel_tool_calls", *v)
	}
	return list
}

// ToolChoice returns the effective tool_choice, defaulting to "auto".
func ToolChoice(cfg config.ProviderConfig, ov llm.Overrides) any {
	if ov.ToolChoice != nil {
		if s, ok := ov.ToolChoice.(string); !ok || s != "" {
			return ov.ToolChoice
		}
	}
	if cfg.ToolChoice != "" {
		return cfg.ToolChoice
	}
	return "auto"
}

// ====== 辅助函数 ======

func setIfAbsent(body map[string]any, key string, v any) {
	if _, ok := body[key]; !ok {
		body[key] = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func pickInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func pickBool(values ...*bool) *bool {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
