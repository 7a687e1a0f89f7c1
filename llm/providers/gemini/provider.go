package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
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
	Name = "gemini"

	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
	apiPrefix      = "/v1beta/models/"
)

// Defaults returns the vendor default layer. The API key travels as the "key" query parameter.
func Defaults() config.ProviderConfig {
	return config.ProviderConfig{
		Provider: Name,
		BaseURL:  defaultBaseURL,
		Model:    defaultModel,
		AuthMode: providers.AuthQuery,
	}
}

// New creates a client for the Gemini generateContent API.
func New(cfg config.ProviderConfig, deps providers.Deps) *providers.Client {
	deps = deps.WithDefaults()
	return providers.NewClient(Name, &Dialect{deps: deps, logger: deps.Logger.With(zap.String("provider", Name))}, cfg, deps)
}

// Dialect implements providers.Dialect for Gemini.
type Dialect struct {
	deps   providers.Deps
	logger *zap.Logger
}

// Defaults returns the vendor default layer.
func (d *Dialect) Defaults() config.ProviderConfig { return Defaults() }

// Validate checks the base URL and model; the model is part of the URL path.
func (d *Dialect) Validate(cfg config.ProviderConfig) error {
	if err := providers.RequireBaseURL(cfg, Name); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return &llm.ConfigError{Provider: Name, Field: "model", Reason: "is required"}
	}
	return nil
}

// Endpoint returns :generateContent, or :streamGenerateContent?alt=sse when streaming.
func (d *Dialect) Endpoint(cfg config.ProviderConfig, stream bool) (string, error) {
	if cfg.Path != "" {
		endpoint := providers.JoinURL(cfg.BaseURL, cfg.Path)
		if stream {
			endpoint += "?alt=sse"
		}
		return endpoint, nil
	}

	model := url.PathEscape(strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/"))
	if stream {
		return providers.JoinURL(cfg.BaseURL, apiPrefix+model+":streamGenerateContent") + "?alt=sse", nil
	}
	return providers.JoinURL(cfg.BaseURL, apiPrefix+model+":generateContent"), nil
}

// =============================================================================
// Gemini 请求结构
// =============================================================================

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *geminiInlineData       `json:"inlineData,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema 子集
}

// BuildRequest converts messages into contents/parts with assistant→model role mapping.
func (d *Dialect) BuildRequest(ctx context.Context, req providers.Request) (any, error) {
	cfg, ov := req.Config, req.Overrides
	resolver := d.deps.ImageResolver(cfg)

	system, contents := d.convertContents(ctx, req.Messages, resolver)

	body := map[string]any{
		"contents":         contents,
		"generationConfig": generationConfig(cfg, ov),
	}
	if system != nil {
		body["systemInstruction"] = system
	}

	if list := providers.SelectTools(cfg, ov, req.Tools); len(list) > 0 {
		body["tools"] = []geminiTool{{FunctionDeclarations: convertTools(list)}}
		body["toolConfig"] = map[string]any{
			"functionCallingConfig": map[string]any{"mode": callingMode(providers.ToolChoice(cfg, ov))},
		}
	}

	providers.MergeExtraBody(body, cfg.ExtraBody, ov.ExtraBody)
	return body, nil
}

func generationConfig(cfg config.ProviderConfig, ov llm.Overrides) map[string]any {
	gc := map[string]any{}

	temperature := config.DefaultTemperature
	if ov.Temperature != nil {
		temperature = *ov.Temperature
	} else if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	gc["temperature"] = temperature

	if v := firstInt(ov.MaxTokens, cfg.MaxTokens); v != nil {
		gc["maxOutputTokens"] = *v
	}
	if v := firstFloat(ov.TopP, cfg.TopP); v != nil {
		gc["topP"] = *v
	}
	if v := firstFloat(ov.PresencePenalty, cfg.PresencePenalty); v != nil {
		gc["presencePenalty"] = *v
	}
	if v := firstFloat(ov.FrequencyPenalty, cfg.FrequencyPenalty); v != nil {
		gc["frequencyPenalty"] = *v
	}
	if len(ov.Stop) > 0 {
		gc["stopSequences"] = ov.Stop
	}
	if ov.Seed != nil {
		gc["seed"] = *ov.Seed
	}
	return gc
}

// convertContents 提取 systemInstruction；tool 结果映射为 user 角色的 functionResponse，
// 连续同角色的内容合并为一条。
func (d *Dialect) convertContents(ctx context.Context, msgs []llm.Message, resolver *multimodal.ImageResolver) (*geminiContent, []geminiContent) {
	var systemParts []geminiPart
	var contents []geminiContent

	push := func(role string, parts []geminiPart) {
		if len(parts) == 0 {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if text := m.Content.PlainText(); text != "" {
				systemParts = append(systemParts, geminiPart{Text: text})
			}
		case llm.RoleTool:
			push("user", []geminiPart{{FunctionResponse: &geminiFunctionResponse{
				Name:     m.Name,
				Response: toolResponse(m.Content.PlainText()),
			}}})
		case llm.RoleAssistant:
			// Gemini 使用 "model" 而不是 "assistant"
			parts := d.parts(ctx, m.Content, resolver)
			for _, tc := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
					Name: tc.Function.Name,
					Args: tc.ParseArguments(),
				}})
			}
			push("model", parts)
		default:
			push("user", d.parts(ctx, m.Content, resolver))
		}
	}

	if len(systemParts) == 0 {
		return nil, contents
	}
	return &geminiContent{Parts: systemParts}, contents
}

func (d *Dialect) parts(ctx context.Context, c llm.Content, resolver *multimodal.ImageResolver) []geminiPart {
	if !c.IsParts() {
		if c.Text == "" {
			return nil
		}
		return []geminiPart{{Text: c.Text}}
	}

	parts := make([]geminiPart, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch {
		case p.Type == "text" && p.Text != "":
			parts = append(parts, geminiPart{Text: p.Text})
		case p.Type == "image_url" && p.ImageURL != nil:
			parts = append(parts, d.imagePart(ctx, p.ImageURL.URL, resolver))
		}
	}
	return parts
}

// imagePart 内联图片；解析失败时退化为占位文本。
func (d *Dialect) imagePart(ctx context.Context, ref string, resolver *multimodal.ImageResolver) geminiPart {
	img, err := resolver.Resolve(ctx, ref)
	if err != nil {
		d.logger.Debug("image inlining failed, sending placeholder", zap.Error(err))
		if strings.HasPrefix(ref, "data:") {
			return geminiPart{Text: "[image:inline]"}
		}
		return geminiPart{Text: fmt.Sprintf("[image:%s]", ref)}
	}
	return geminiPart{InlineData: &geminiInlineData{MimeType: img.MIMEType, Data: img.Data}}
}

// toolResponse wraps a tool result; JSON objects pass through, anything else becomes {"result": text}.
func toolResponse(text string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": text}
}

func convertTools(list []llm.Tool) []geminiFunctionDeclaration {
	out := make([]geminiFunctionDeclaration, 0, len(list))
	for _, t := range list {
		var params map[string]any
		if err := json.Unmarshal(t.Function.Parameters, &params); err != nil || params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, geminiFunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  cleanSchema(params).(map[string]any),
		})
	}
	return out
}

// Gemini 只接受 OpenAPI 子集，这些 JSON-Schema 关键字会被拒绝
var unsupportedSchemaKeys = []string{"$schema", "$id", "additionalProperties", "definitions", "$defs"}

func cleanSchema(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[k] = cleanSchema(val)
		}
		for _, k := range unsupportedSchemaKeys {
			delete(out, k)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			out[i] = cleanSchema(val)
		}
		return out
	default:
		return v
	}
}

// callingMode maps tool_choice to functionCallingConfig.mode.
func callingMode(choice any) string {
	s, _ := choice.(string)
	switch s {
	case "required", "any":
		return "ANY"
	case "none":
		return "NONE"
	default:
		return "AUTO"
	}
}

// =============================================================================
// 响应解析
// =============================================================================

// ParseResponse extracts text and functionCall parts of the first candidate.
func (d *Dialect) ParseResponse(data []byte) (streaming.Result, error) {
	var resp streaming.GeminiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streaming.Result{}, err
	}
	if resp.Error != nil {
		return streaming.Result{}, fmt.Errorf("gemini error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	res := streaming.Result{
		Content:   resp.Text(),
		ToolCalls: resp.ToolCalls(),
	}
	if len(resp.Candidates) > 0 {
		res.FinishReason = resp.Candidates[0].FinishReason
	}
	return res, nil
}

// ConsumeStream reads one SSE round of cumulative or incremental frames.
func (d *Dialect) ConsumeStream(ctx context.Context, body io.Reader, provider string, onText streaming.TextFunc) (streaming.Result, error) {
	return streaming.ConsumeGemini(ctx, body, provider, onText)
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
