package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/multimodal"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/streaming"
)

const (
	// Name is the registry name of this provider.
	Name = "anthropic"

	// APIVersion is the mandatory anthropic-version header value.
	APIVersion = "2023-06-01"

	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-3-5-sonnet-latest"
	defaultMaxTokens = 4096
	messagesPath     = "/v1/messages"
)

// Defaults returns the vendor default layer.
func Defaults() config.ProviderConfig {
	return config.ProviderConfig{
		Provider: Name,
		BaseURL:  defaultBaseURL,
		Model:    defaultModel,
		AuthMode: providers.AuthXAPIKey,
		Headers:  map[string]string{"anthropic-version": APIVersion},
	}
}

// New creates a client for the Anthropic Messages API.
func New(cfg config.ProviderConfig, deps providers.Deps) *providers.Client {
	deps = deps.WithDefaults()
	return providers.NewClient(Name, &Dialect{deps: deps, logger: deps.Logger.With(zap.String("provider", Name))}, cfg, deps)
}

// Dialect implements providers.Dialect for the Anthropic Messages API.
// 认证使用 x-api-key + anthropic-version；system 消息单独放入 system 字段；
// 工具调用与结果分别映射为 tool_use / tool_result 内容块。
type Dialect struct {
	deps   providers.Deps
	logger *zap.Logger
}

// Defaults returns the vendor default layer.
func (d *Dialect) Defaults() config.ProviderConfig { return Defaults() }

// Validate checks the base URL.
func (d *Dialect) Validate(cfg config.ProviderConfig) error {
	return providers.RequireBaseURL(cfg, Name)
}

// Endpoint returns the messages URL; streaming uses the same endpoint.
func (d *Dialect) Endpoint(cfg config.ProviderConfig, _ bool) (string, error) {
	path := cfg.Path
	if path == "" {
		path = messagesPath
	}
	return providers.JoinURL(cfg.BaseURL, path), nil
}

// =============================================================================
// 请求构建
// =============================================================================

type claudeMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *imageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"` // base64 | url
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type claudeTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// BuildRequest converts messages into the Messages API shape.
func (d *Dialect) BuildRequest(ctx context.Context, req providers.Request) (any, error) {
	cfg, ov := req.Config, req.Overrides
	resolver := d.deps.ImageResolver(cfg)

	system, messages := d.convertMessages(ctx, req.Messages, resolver)

	maxTokens := defaultMaxTokens
	if ov.MaxTokens != nil {
		maxTokens = *ov.MaxTokens
	} else if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	temperature := config.DefaultTemperature
	if ov.Temperature != nil {
		temperature = *ov.Temperature
	} else if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	model := ov.Model
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		model = defaultModel
	}

	body := map[string]any{
		"model":       model,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"messages":    messages,
	}
	if system != "" {
		body["system"] = system
	}
	if ov.TopP != nil {
		body["top_p"] = *ov.TopP
	} else if cfg.TopP != nil {
		body["top_p"] = *cfg.TopP
	}
	if len(ov.Stop) > 0 {
		body["stop_sequences"] = ov.Stop
	}
	if req.Stream {
		body["stream"] = true
	}

	if list := providers.SelectTools(cfg, ov, req.Tools); len(list) > 0 {
		body["tools"] = convertTools(list)
		if choice := toolChoice(providers.ToolChoice(cfg, ov), ov, cfg); choice != nil {
			body["tool_choice"] = choice
		}
	}

	providers.MergeExtraBody(body, cfg.ExtraBody, ov.ExtraBody)
	return body, nil
}

// convertMessages 提取 system 文本，并把连续同角色消息合并为一条（tool 结果归入 user）。
func (d *Dialect) convertMessages(ctx context.Context, msgs []llm.Message, resolver *multimodal.ImageResolver) (string, []claudeMessage) {
	var system []string
	var out []claudeMessage

	push := func(role string, blocks []contentBlock) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, claudeMessage{Role: role, Content: blocks})
	}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if text := m.Content.PlainText(); text != "" {
				system = append(system, text)
			}
		case llm.RoleTool:
			push("user", []contentBlock{{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content.PlainText(),
			}})
		case llm.RoleAssistant:
			blocks := d.contentBlocks(ctx, m.Content, resolver)
			for _, tc := range m.ToolCalls {
				input, err := json.Marshal(tc.ParseArguments())
				if err != nil {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, contentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Function.Name, Input: input})
			}
			push("assistant", blocks)
		default:
			push("user", d.contentBlocks(ctx, m.Content, resolver))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func (d *Dialect) contentBlocks(ctx context.Context, c llm.Content, resolver *multimodal.ImageResolver) []contentBlock {
	if !c.IsParts() {
		if c.Text == "" {
			return nil
		}
		return []contentBlock{{Type: "text", Text: c.Text}}
	}

	blocks := make([]contentBlock, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch {
		case p.Type == "text" && p.Text != "":
			blocks = append(blocks, contentBlock{Type: "text", Text: p.Text})
		case p.Type == "image_url" && p.ImageURL != nil:
			if block, ok := d.imageBlock(ctx, p.ImageURL.URL, resolver); ok {
				blocks = append(blocks, block)
			}
		}
	}
	return blocks
}

// imageBlock 优先内联 base64；下载失败时退化为 URL 来源。
func (d *Dialect) imageBlock(ctx context.Context, ref string, resolver *multimodal.ImageResolver) (contentBlock, bool) {
	img, err := resolver.Resolve(ctx, ref)
	if err == nil {
		return contentBlock{Type: "image", Source: &imageSource{Type: "base64", MediaType: img.MIMEType, Data: img.Data}}, true
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		d.logger.Debug("image inlining failed, sending url source", zap.String("url", ref), zap.Error(err))
		return contentBlock{Type: "image", Source: &imageSource{Type: "url", URL: ref}}, true
	}
	d.logger.Warn("dropping unsupported image reference", zap.Error(err))
	return contentBlock{}, false
}

func convertTools(list []llm.Tool) []claudeTool {
	out := make([]claudeTool, 0, len(list))
	for _, t := range list {
		schema := t.Function.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		out = append(out, claudeTool{Name: t.Function.Name, Description: t.Function.Description, InputSchema: schema})
	}
	return out
}

// toolChoice maps OpenAI-style tool_choice values to Anthropic's object form.
func toolChoice(choice any, ov llm.Overrides, cfg config.ProviderConfig) map[string]any {
	var out map[string]any
	switch v := choice.(type) {
	case string:
		switch v {
		case "required", "any":
			out = map[string]any{"type": "any"}
		case "none":
			out = map[string]any{"type": "none"}
		default:
			out = map[string]any{"type": "auto"}
		}
	case map[string]any:
		if fn, ok := v["function"].(map[string]any); ok {
			out = map[string]any{"type": "tool", "name": fn["name"]}
		} else {
			out = v
		}
	default:
		return nil
	}

	parallel := ov.ParallelToolCalls
	if parallel == nil {
		parallel = cfg.ParallelToolCalls
	}
	if parallel != nil && !*parallel && out["type"] != "none" {
		out["disable_parallel_tool_use"] = true
	}
	return out
}

// =============================================================================
// 响应解析
// =============================================================================

type claudeResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// ParseResponse joins text blocks and collects tool_use blocks.
func (d *Dialect) ParseResponse(data []byte) (streaming.Result, error) {
	var resp claudeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streaming.Result{}, err
	}

	var text strings.Builder
	res := streaming.Result{FinishReason: resp.StopReason}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := "{}"
			if len(block.Input) > 0 && string(block.Input) != "null" {
				args = string(block.Input)
			}
			res.ToolCalls = append(res.ToolCalls, llm.NewToolCall(block.ID, block.Name, args))
		}
	}
	res.Content = text.String()
	return res, nil
}

// ConsumeStream reads one SSE round.
func (d *Dialect) ConsumeStream(ctx context.Context, body io.Reader, provider string, onText streaming.TextFunc) (streaming.Result, error) {
	return streaming.ConsumeAnthropic(ctx, body, provider, onText)
}
